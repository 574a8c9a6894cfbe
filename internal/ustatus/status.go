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

// Package ustatus defines the status vocabulary shared by every UFS
// layer: the legacy process-wide status word required by the source
// spec, and the Go-idiomatic sentinel errors built on top of it.
package ustatus

import (
	"fmt"
	"sync"
)

// Code is a signed status code. Zero means success; negative values
// name a specific failure. The source defines two constants
// (UFS_UNKNOWN_ERROR and UFS_IMAGE_TOO_SMALL) that collide numerically;
// here every kind gets its own code.
type Code int64

const (
	NoError Code = 0

	DoesNotExist            Code = -1
	ImageIsCorrupted        Code = -2
	VersionMismatch         Code = -3
	BadCall                 Code = -4
	AlreadyExists           Code = -5
	OutOfMemory             Code = -6
	MappingAlreadyExists    Code = -7
	CantCreateFile          Code = -8
	UnknownError            Code = -9
	ImageTooSmall           Code = -10
	ImageCouldNotSync       Code = -11
	ViewContainsDuplicates  Code = -12
	InvalidAreaInView       Code = -13
	DirectoryIsNotEmpty     Code = -14
	CannotResolveStorage    Code = -15
)

var names = map[Code]string{
	NoError:                "NO_ERROR",
	DoesNotExist:           "DOES_NOT_EXIST",
	ImageIsCorrupted:       "IMAGE_IS_CORRUPTED",
	VersionMismatch:        "VERSION_MISMATCH",
	BadCall:                "BAD_CALL",
	AlreadyExists:          "ALREADY_EXISTS",
	OutOfMemory:            "OUT_OF_MEMORY",
	MappingAlreadyExists:   "MAPPING_ALREADY_EXISTS",
	CantCreateFile:         "CANT_CREATE_FILE",
	UnknownError:           "UNKNOWN_ERROR",
	ImageTooSmall:          "IMAGE_TOO_SMALL",
	ImageCouldNotSync:      "IMAGE_COULD_NOT_SYNC",
	ViewContainsDuplicates: "VIEW_CONTAINS_DUPLICATES",
	InvalidAreaInView:      "INVALID_AREA_IN_VIEW",
	DirectoryIsNotEmpty:    "DIRECTORY_IS_NOT_EMPTY",
	CannotResolveStorage:   "CANNOT_RESOLVE_STORAGE",
}

// String renders the code using its source-level symbolic name.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN_CODE(%d)", int64(c))
}

// Error is the Go-idiomatic wrapper around a Code. Operations that
// fail return one of these (or a sentinel below) instead of a bare
// negative identifier.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("ufs: %s", e.Code)
}

// New builds an *Error for the given code. Returns nil for NoError so
// callers can write `return id, ustatus.New(code)` uniformly.
func New(c Code) error {
	if c == NoError {
		return nil
	}
	return &Error{Code: c}
}

// Sentinel errors for the common failure kinds, for errors.Is callers.
var (
	ErrDoesNotExist           = &Error{DoesNotExist}
	ErrImageIsCorrupted       = &Error{ImageIsCorrupted}
	ErrVersionMismatch        = &Error{VersionMismatch}
	ErrBadCall                = &Error{BadCall}
	ErrAlreadyExists          = &Error{AlreadyExists}
	ErrOutOfMemory            = &Error{OutOfMemory}
	ErrMappingAlreadyExists   = &Error{MappingAlreadyExists}
	ErrCantCreateFile         = &Error{CantCreateFile}
	ErrUnknownError           = &Error{UnknownError}
	ErrImageTooSmall          = &Error{ImageTooSmall}
	ErrImageCouldNotSync      = &Error{ImageCouldNotSync}
	ErrViewContainsDuplicates = &Error{ViewContainsDuplicates}
	ErrInvalidAreaInView      = &Error{InvalidAreaInView}
	ErrDirectoryIsNotEmpty    = &Error{DirectoryIsNotEmpty}
	ErrCannotResolveStorage   = &Error{CannotResolveStorage}
)

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code carried by err, UnknownError for any other
// non-nil error, and NoError for nil.
func CodeOf(err error) Code {
	if err == nil {
		return NoError
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return UnknownError
}

// word is the legacy process-wide status word. Every public UFS
// operation sets it before returning, including on success, so that
// callers ported from the C API can still consult a single global
// instead of a Go error value.
var (
	mu   sync.Mutex
	word Code = NoError
)

// Set records the outcome of the most recent operation and returns it
// unchanged, so callers can write `return id, Set(code)`-shaped code.
func Set(c Code) Code {
	mu.Lock()
	word = c
	mu.Unlock()
	return c
}

// Last returns the status word set by the most recently completed
// operation on this process.
func Last() Code {
	mu.Lock()
	defer mu.Unlock()
	return word
}
