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

// Package uheader lays out the fixed UFS header and its four
// sub-tables (Files, Areas, Nodes, Strings) over an uimage.Image at
// alignment-correct byte offsets, and validates the header's magic
// number and version on open.
//
// The offset arithmetic mirrors the source's ufsHeaderInit/mountHeader
// pair exactly, just computed from Go's own struct alignment via
// unsafe.Alignof/unsafe.Sizeof instead of C's _Alignof/sizeof.
package uheader

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"ufs/internal/ustatus"
	"ufs/internal/uimage"
)

// MagicNumber spells "ufs" followed by a NUL byte, little-endian.
const MagicNumber uint32 = 0x00736675

// IndexVersion is bumped whenever the on-disk layout changes in a way
// that breaks compatibility with older images.
const IndexVersion uint32 = 1

// Table type tags, fixed order per the wire format.
const (
	TypeFile = iota
	TypeArea
	TypeNode
	TypeString
	typeCount
)

const lengthPrelude = 8

// FileSlot is a named leaf storage element attached to a directory.
// Bit 0 of Owned is the live/free flag; bit 1 distinguishes a
// directory entry from a plain file within the shared File table (see
// IsDirectory), an additive refinement over the source's bare `bool
// isOwned` that does not change the wire size of the slot. ParentID is
// the engine-level bookkeeping the source spec alludes to but leaves
// unspecified (§3, §9): the public id (File-table slot index + 1) of
// the directory a file belongs to. Unused (zero) on directory slots.
type FileSlot struct {
	Owned      uint8
	NameOffset uint64
	ParentID   int64
}

const (
	flagOwned     uint8 = 1 << 0
	flagDirectory uint8 = 1 << 1
)

func (s *FileSlot) IsOwned() bool   { return s.Owned&flagOwned != 0 }
func (s *FileSlot) SetOwned(v bool) {
	if v {
		s.Owned |= flagOwned
	} else {
		s.Owned &^= (flagOwned | flagDirectory)
	}
}

// IsDirectory reports whether this File-table slot represents a
// directory rather than a plain file.
func (s *FileSlot) IsDirectory() bool { return s.Owned&flagDirectory != 0 }

// SetDirectory tags or untags a slot as a directory.
func (s *FileSlot) SetDirectory(v bool) {
	if v {
		s.Owned |= flagDirectory
	} else {
		s.Owned &^= flagDirectory
	}
}

// AreaSlot is a named projection namespace.
type AreaSlot struct {
	Owned      uint8
	NameOffset uint64
}

func (s *AreaSlot) IsOwned() bool   { return s.Owned&flagOwned != 0 }
func (s *AreaSlot) SetOwned(v bool) {
	if v {
		s.Owned |= flagOwned
	} else {
		s.Owned = 0
	}
}

// NodeSlot is a cell of the on-image ordered search tree. KeyCount
// tells a reader how to interpret Keys: 1 means Keys[0] alone is the
// key (the name indices over File/Area ids, and each owner's member
// subtree in a relation); 2 marks an anchor node of a relation, where
// Keys[0] is the owner id and Keys[1] holds the root of that owner's
// member subtree (see relation.go). The engine's reserved roots-anchor
// node also carries 2, with both Keys holding tree roots (see
// engine.go).
type NodeSlot struct {
	Owned    uint8
	Left     int64
	Right    int64
	Keys     [2]int64
	KeyCount uint8
}

func (s *NodeSlot) IsOwned() bool   { return s.Owned&flagOwned != 0 }
func (s *NodeSlot) SetOwned(v bool) {
	if v {
		s.Owned |= flagOwned
	} else {
		*s = NodeSlot{}
	}
}

// Header is the fixed-size prologue recorded at the start of every
// UFS image (after the 8-byte length prelude).
type Header struct {
	Magic   uint32
	Version uint32
	Sizes   [typeCount]uint64
	Offsets [typeCount]uint64
}

// SizeRequest names the slot capacity of each table, supplied to
// Init.
type SizeRequest struct {
	NumFiles    uint64
	NumAreas    uint64
	NumNodes    uint64
	NumStrBytes uint64
}

// DefaultSizeRequest mirrors the source's ufsDefaultSizeRequest.
var DefaultSizeRequest = SizeRequest{
	NumFiles:    256,
	NumAreas:    256,
	NumNodes:    512,
	NumStrBytes: 1024,
}

func alignUp(val, alignment uintptr) uintptr {
	return (val + alignment - 1) &^ (alignment - 1)
}

// layout is the single source of truth for where every table lives
// within an image of a given SizeRequest. Init, Get, and any external
// tool computing offsets independently must all agree with this
// function.
type layout struct {
	headerOffset uintptr
	offsets      [typeCount]uintptr
	total        uintptr
}

func computeLayout(req SizeRequest) layout {
	var l layout
	var file FileSlot
	var area AreaSlot
	var node NodeSlot
	var hdr Header

	off := uintptr(lengthPrelude)
	off = alignUp(off, unsafe.Alignof(hdr))
	l.headerOffset = off
	off += unsafe.Sizeof(hdr)

	off = alignUp(off, unsafe.Alignof(file))
	l.offsets[TypeFile] = off
	off += uintptr(req.NumFiles) * unsafe.Sizeof(file)

	off = alignUp(off, unsafe.Alignof(area))
	l.offsets[TypeArea] = off
	off += uintptr(req.NumAreas) * unsafe.Sizeof(area)

	off = alignUp(off, unsafe.Alignof(node))
	l.offsets[TypeNode] = off
	off += uintptr(req.NumNodes) * unsafe.Sizeof(node)

	// string arena is a raw byte region, alignment 1.
	l.offsets[TypeString] = off
	off += uintptr(req.NumStrBytes)

	l.total = alignUp(off, uintptr(unix.Getpagesize()))
	return l
}

// headerOffset computes where the Header struct begins; independent
// of the SizeRequest since it only depends on the length prelude and
// the Header's own alignment.
func headerOffset() uintptr {
	var hdr Header
	return alignUp(lengthPrelude, unsafe.Alignof(hdr))
}

// Init creates a brand-new image at path sized to hold req, writes the
// header, and returns it iff Validate subsequently accepts it.
//
// Fails with BadCall if path is empty or req has any zero field.
// Image-layer errors (CantCreateFile, UnknownError, ...) propagate
// unchanged.
func Init(path string, req SizeRequest) (*uimage.Image, error) {
	if path == "" || req.NumFiles == 0 || req.NumAreas == 0 || req.NumNodes == 0 || req.NumStrBytes == 0 {
		return nil, ustatus.New(ustatus.Set(ustatus.BadCall))
	}

	if _, err := os.Stat(path); err == nil {
		return nil, ustatus.New(ustatus.Set(ustatus.BadCall))
	}

	l := computeLayout(req)

	img, err := uimage.Create(path, uint64(l.total))
	if err != nil {
		return nil, err
	}

	hdr := Get(img)
	hdr.Magic = MagicNumber
	hdr.Version = IndexVersion
	hdr.Sizes[TypeFile] = req.NumFiles
	hdr.Sizes[TypeArea] = req.NumAreas
	hdr.Sizes[TypeNode] = req.NumNodes
	hdr.Sizes[TypeString] = req.NumStrBytes
	for t := 0; t < typeCount; t++ {
		hdr.Offsets[t] = uint64(l.offsets[t])
	}

	return Validate(img)
}

// Validate checks the header's magic number and version. Returns the
// image unchanged on success; otherwise sets ImageIsCorrupted or
// VersionMismatch and returns nil.
func Validate(img *uimage.Image) (*uimage.Image, error) {
	hdr := Get(img)

	if hdr.Magic != MagicNumber {
		return nil, ustatus.New(ustatus.Set(ustatus.ImageIsCorrupted))
	}
	if hdr.Version != IndexVersion {
		return nil, ustatus.New(ustatus.Set(ustatus.VersionMismatch))
	}

	ustatus.Set(ustatus.NoError)
	return img, nil
}

// Get returns a pointer to the Header living inside img's mapped
// region. Never fails: an image too small to contain a header is a
// contract violation by the caller, not a runtime condition this
// layer detects (callers reach Get only after Image.Open/Create
// already validated the minimum length).
func Get(img *uimage.Image) *Header {
	data := img.Bytes()
	return (*Header)(unsafe.Pointer(&data[headerOffset()]))
}

// TableRegion returns the byte sub-slice of img backing table t, sized
// exactly sizes[t]*elemSize as recorded in the header.
func TableRegion(img *uimage.Image, t int, elemSize uintptr) []byte {
	hdr := Get(img)
	start := hdr.Offsets[t]
	length := hdr.Sizes[t] * uint64(elemSize)
	data := img.Bytes()
	return data[start : start+length]
}
