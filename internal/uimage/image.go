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

// Package uimage implements the lowest layer of UFS: a file-backed,
// memory-mapped region that persists its own length as its first
// eight bytes. It has no notion of headers, tables, or UFS semantics
// — it offers "bytes backed by a file" the way the source's
// ufs_image.c does, just ported from raw mmap(2)/munmap(2)/msync(2)
// calls to golang.org/x/sys/unix.
package uimage

import (
	"context"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"ufs/internal/ustatus"
)

const lengthPrelude = 8

// Image is a shared, writable memory-mapped view over a backing file.
// The first 8 bytes of the mapping hold the mapping's own length.
type Image struct {
	path string
	file *os.File
	lock *flock.Flock
	data []byte
}

// Open maps an existing image file into the address space.
//
// Fails with DoesNotExist if path does not exist, ImageTooSmall if the
// file is smaller than the 8-byte length prelude, and UnknownError on
// any other I/O failure.
func Open(path string) (*Image, error) {
	if path == "" {
		return nil, ustatus.New(ustatus.Set(ustatus.BadCall))
	}

	if _, err := os.Stat(path); err != nil {
		return nil, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, ustatus.New(ustatus.Set(ustatus.UnknownError))
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ustatus.New(ustatus.Set(ustatus.UnknownError))
	}
	size := info.Size()
	if size < lengthPrelude {
		file.Close()
		return nil, ustatus.New(ustatus.Set(ustatus.ImageTooSmall))
	}

	lk := tryAcquireLock(path)

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		releaseLock(lk)
		file.Close()
		return nil, ustatus.New(ustatus.Set(ustatus.UnknownError))
	}

	putU64(data, uint64(size))

	ustatus.Set(ustatus.NoError)
	return &Image{path: path, file: file, lock: lk, data: data}, nil
}

// Create allocates a new backing file of exactly size bytes, maps it,
// and writes the length prelude.
//
// Fails with BadCall if path is empty or size is smaller than the
// length prelude, CantCreateFile if the file cannot be created due to
// permissions, and UnknownError on any other I/O failure.
func Create(path string, size uint64) (*Image, error) {
	if path == "" || size < lengthPrelude {
		return nil, ustatus.New(ustatus.Set(ustatus.BadCall))
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		if os.IsPermission(err) {
			return nil, ustatus.New(ustatus.Set(ustatus.CantCreateFile))
		}
		return nil, ustatus.New(ustatus.Set(ustatus.UnknownError))
	}

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, ustatus.New(ustatus.Set(ustatus.UnknownError))
	}

	lk := tryAcquireLock(path)

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		releaseLock(lk)
		file.Close()
		os.Remove(path)
		return nil, ustatus.New(ustatus.Set(ustatus.UnknownError))
	}

	putU64(data, size)

	ustatus.Set(ustatus.NoError)
	return &Image{path: path, file: file, lock: lk, data: data}, nil
}

// Sync flushes the entire mapped range to the backing device. After
// Sync returns true every write issued before the call is durable.
func (img *Image) Sync() (bool, error) {
	if img == nil {
		return false, nil
	}

	err := retry.Do(func() error {
		return unix.Msync(img.data, unix.MS_SYNC)
	}, retry.Attempts(3), retry.Delay(5*time.Millisecond),
		retry.RetryIf(isTransient), retry.Context(context.Background()))

	if err != nil {
		log.Errorf("[uimage] msync failed for %s: %v", img.path, err)
		return false, ustatus.New(ustatus.Set(ustatus.ImageCouldNotSync))
	}

	ustatus.Set(ustatus.NoError)
	return true, nil
}

// Close unmaps the region and releases the backing file descriptor.
// Idempotent, and a no-op on a nil Image.
func (img *Image) Close() error {
	if img == nil || img.data == nil {
		return nil
	}

	length := readU64(img.data)
	_ = length // extent already known via len(img.data); kept for parity with the source's "read length before unmap" contract

	err := unix.Munmap(img.data)
	img.data = nil
	if img.file != nil {
		img.file.Close()
		img.file = nil
	}
	releaseLock(img.lock)
	img.lock = nil

	if err != nil {
		return ustatus.New(ustatus.Set(ustatus.UnknownError))
	}
	ustatus.Set(ustatus.NoError)
	return nil
}

// Bytes returns the raw mapped region. Callers in uheader/utable
// reinterpret slices of it as typed tables.
func (img *Image) Bytes() []byte {
	return img.data
}

// Len returns the image's self-recorded length, read from its first
// 8 bytes.
func (img *Image) Len() uint64 {
	return readU64(img.data)
}

// Path returns the backing file path.
func (img *Image) Path() string {
	return img.path
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func readU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func isTransient(err error) bool {
	return err == unix.EINTR || err == unix.EAGAIN
}

// tryAcquireLock takes a best-effort, non-blocking advisory lock on
// path+".lock". Failing to acquire it does not fail the call: §5
// explicitly leaves concurrent-process access to the same image
// undefined, this is purely a diagnostic aid for the common case of
// one host running two UFS processes against the same image by
// accident.
func tryAcquireLock(path string) *flock.Flock {
	lk := flock.New(path + ".lock")
	locked, err := lk.TryLock()
	if err != nil || !locked {
		log.Warnf("[uimage] image already locked by another process, proceeding per shared-resource policy: path=%s", path)
		return nil
	}
	return lk
}

func releaseLock(lk *flock.Flock) {
	if lk == nil {
		return
	}
	_ = lk.Unlock()
}
