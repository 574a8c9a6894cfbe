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

// Package utable reinterprets a raw mmap'd byte region (as laid out by
// uheader) as a fixed-capacity slot array, and hands out/reclaims slot
// ids with a linear free-slot scan. There is no growth: capacity is
// fixed at image-creation time, matching the fixed-size tables the
// source's on-disk format describes.
package utable

import (
	"unsafe"

	"ufs/internal/ustatus"
)

// Slot is satisfied by the value type *T for any table element: File,
// Area, or Node slots all carry a live/free bit.
type Slot interface {
	IsOwned() bool
	SetOwned(bool)
}

// Table is a fixed-capacity array of T reinterpreted in place over a
// byte region, accessed through the pointer type PT which must
// implement Slot. This is the generic pointer-method-constraint
// pattern: T is the storage type, PT is always *T.
type Table[T any, PT interface {
	*T
	Slot
}] struct {
	slots []T
}

// New reinterprets region as a slice of T without copying. region must
// be exactly capacity*sizeof(T) bytes, as uheader.TableRegion
// guarantees.
func New[T any, PT interface {
	*T
	Slot
}](region []byte) *Table[T, PT] {
	var zero T
	elemSize := unsafe.Sizeof(zero)
	if elemSize == 0 || len(region) == 0 {
		return &Table[T, PT]{}
	}
	n := uintptr(len(region)) / elemSize
	slots := unsafe.Slice((*T)(unsafe.Pointer(&region[0])), n)
	return &Table[T, PT]{slots: slots}
}

// Len returns the table's fixed capacity.
func (tb *Table[T, PT]) Len() int64 {
	return int64(len(tb.slots))
}

// Alloc claims the first free slot, marks it owned, and returns its
// id. Fails with OutOfMemory if every slot is owned.
func (tb *Table[T, PT]) Alloc() (int64, PT, error) {
	for i := range tb.slots {
		p := PT(&tb.slots[i])
		if !p.IsOwned() {
			p.SetOwned(true)
			return int64(i), p, nil
		}
	}
	return -1, nil, ustatus.New(ustatus.Set(ustatus.OutOfMemory))
}

// Free releases id back to the pool. Fails with BadCall on an
// out-of-range id.
func (tb *Table[T, PT]) Free(id int64) error {
	p, err := tb.Raw(id)
	if err != nil {
		return err
	}
	p.SetOwned(false)
	ustatus.Set(ustatus.NoError)
	return nil
}

// Get returns the slot at id, failing with DoesNotExist if id is out
// of range or the slot is not currently owned.
func (tb *Table[T, PT]) Get(id int64) (PT, error) {
	if id < 0 || id >= int64(len(tb.slots)) {
		return nil, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	p := PT(&tb.slots[id])
	if !p.IsOwned() {
		return nil, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	ustatus.Set(ustatus.NoError)
	return p, nil
}

// Used counts currently-owned slots. It is a linear scan, intended for
// occasional introspection (e.g. a Stats report), not a hot path.
func (tb *Table[T, PT]) Used() int64 {
	var n int64
	for i := range tb.slots {
		if PT(&tb.slots[i]).IsOwned() {
			n++
		}
	}
	return n
}

// Raw returns the slot at id regardless of its owned bit. Used for
// the reserved roots-anchor node (see engine.go), which is never
// Alloc'd/Free'd through the normal pool.
func (tb *Table[T, PT]) Raw(id int64) (PT, error) {
	if id < 0 || id >= int64(len(tb.slots)) {
		return nil, ustatus.New(ustatus.Set(ustatus.BadCall))
	}
	return PT(&tb.slots[id]), nil
}
