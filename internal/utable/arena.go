// Copyright 2026 UFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utable

import (
	"ufs/internal/ustatus"
)

const arenaPrelude = 8

// StringArena is a NUL-terminated byte pool backing every File/Area
// name. Its first 8 bytes record how many bytes of the pool (not
// counting the prelude itself) are in use, the same self-describing
// trick uimage.Image uses for its own length.
type StringArena struct {
	region []byte
}

// NewArena reinterprets region as a string arena. region must be the
// exact byte slice uheader.TableRegion returns for uheader.TypeString.
func NewArena(region []byte) *StringArena {
	return &StringArena{region: region}
}

func (a *StringArena) used() uint64 {
	if len(a.region) < arenaPrelude {
		return 0
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(a.region[i]) << (8 * i)
	}
	return v
}

func (a *StringArena) setUsed(v uint64) {
	for i := 0; i < 8; i++ {
		a.region[i] = byte(v >> (8 * i))
	}
}

// Intern appends s (NUL-terminated) to the pool and returns its byte
// offset within the arena region. Every call allocates fresh space —
// the pool does not deduplicate repeated strings, so two slots with
// the same name hold two independent copies. Fails with OutOfMemory
// if the pool has no room left.
func (a *StringArena) Intern(s string) (uint64, error) {
	used := a.used()
	need := uint64(len(s)) + 1
	start := arenaPrelude + used
	if start+need > uint64(len(a.region)) {
		return 0, ustatus.New(ustatus.Set(ustatus.OutOfMemory))
	}

	copy(a.region[start:start+uint64(len(s))], s)
	a.region[start+uint64(len(s))] = 0
	a.setUsed(used + need)

	ustatus.Set(ustatus.NoError)
	return start, nil
}

// Lookup reads the NUL-terminated string stored at offset.
func (a *StringArena) Lookup(offset uint64) string {
	if offset >= uint64(len(a.region)) {
		return ""
	}
	end := offset
	for end < uint64(len(a.region)) && a.region[end] != 0 {
		end++
	}
	return string(a.region[offset:end])
}
