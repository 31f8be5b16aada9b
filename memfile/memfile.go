// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package memfile owns a growable memory-mapped file shared between many
// readers and a single writer.  Readers pin the current mapping through an
// Accessor; growing the file remaps the region and may move its base, so it
// runs under the exclusive half of the same lock.
package memfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/bitmark-inc/logger"
	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

func init() {
	// offsets are stored as 64-bit values and the whole file is mapped at
	// once, neither of which a 32-bit address space can hold
	if ^uint(0) == uint(^uint32(0)) {
		panic("memfile requires a 64-bit host")
	}
}

// File is an open, fully-mapped file.  The (data, size) pair is guarded by a
// reader-writer lock: Access holds it shared, growth holds it exclusive.
type File struct {
	path string
	log  *logger.L

	mu      sync.RWMutex // guards everything below
	file    *os.File
	data    mmap.MMap
	size    int64
	stopped bool
}

// Touch creates the file with a single zero byte, the minimum size that can
// be mapped.  Existing content is discarded.
func Touch(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	if _, err := f.Write([]byte{0}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write(%s): %w", path, err)
	}
	return f.Close()
}

// Open maps the file's current length read/write.
func Open(path string) (*File, error) {
	log := logger.New("memfile")

	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		log.Errorf("the file failed to open: %s error: %s", path, err)
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		log.Errorf("the file failed to stat: %s error: %s", path, err)
		return nil, fmt.Errorf("stat(%s): %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		_ = file.Close()
		return nil, fmt.Errorf("file size cannot be 0 bytes: %s", path)
	}

	f := &File{
		path: path,
		log:  log,
		file: file,
		size: size,
	}
	if err := f.mapRegion(size); err != nil {
		_ = file.Close()
		log.Errorf("the file failed to map: %s error: %s", path, err)
		return nil, err
	}

	log.Infof("mapping: %s", path)
	return f, nil
}

// Size is thread safe but only useful on initialisation.
func (f *File) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.size
}

// Access pins the current mapping for reading.  The returned accessor must be
// released, and no buffer obtained through it may be used afterwards.
func (f *File) Access() *Accessor {
	f.mu.RLock()
	return &Accessor{file: f}
}

// Reserve returns an accessor over a mapping of at least size bytes, growing
// the file first if it is currently smaller.  Growth is the only operation
// that blocks concurrent readers.
func (f *File) Reserve(size int64) (*Accessor, error) {
	f.mu.RLock()
	if size > f.size {
		f.mu.RUnlock()
		f.mu.Lock()
		// must retest under the exclusive lock
		if size > f.size {
			if err := f.reserve(size); err != nil {
				f.mu.Unlock()
				// there is no way to recover from a failed grow
				return nil, err
			}
		}
		f.mu.Unlock()
		f.mu.RLock()
	}
	return &Accessor{file: f}, nil
}

// Resize grows the file if its current size is less than requested.
func (f *File) Resize(size int64) error {
	a, err := f.Reserve(size)
	if err != nil {
		return err
	}
	a.Release()
	return nil
}

// Flush commits mapped changes to disk.
func (f *File) Flush() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.stopped {
		return nil
	}
	if err := f.data.Flush(); err != nil {
		f.log.Errorf("the file failed to flush: %s error: %s", f.path, err)
		return fmt.Errorf("flush(%s): %w", f.path, err)
	}
	return nil
}

// Stop unmaps, flushes and closes the file.  Idempotent.
func (f *File) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return nil
	}
	f.stopped = true

	f.log.Infof("unmapping: %s", f.path)

	err := f.data.Unmap()
	if err != nil {
		f.log.Errorf("the file failed to unmap: %s error: %s", f.path, err)
		err = fmt.Errorf("unmap(%s): %w", f.path, err)
	}
	f.data = nil
	f.size = 0

	if e := f.file.Sync(); e != nil {
		f.log.Errorf("the file failed to sync: %s error: %s", f.path, e)
		if err == nil {
			err = fmt.Errorf("sync(%s): %w", f.path, e)
		}
	}
	if e := f.file.Close(); e != nil {
		f.log.Errorf("the file failed to close: %s error: %s", f.path, e)
		if err == nil {
			err = fmt.Errorf("close(%s): %w", f.path, e)
		}
	}
	return err
}

// reserve grows the underlying file geometrically and remaps.  The caller
// holds the lock exclusively.
func (f *File) reserve(size int64) error {
	newSize := size + size/2

	if err := f.file.Truncate(newSize); err != nil {
		f.log.Criticalf("the file failed to resize: %s error: %s", f.path, err)
		return fmt.Errorf("truncate(%s): %w", f.path, err)
	}

	f.log.Debugf("resizing: %s [%d]", f.path, newSize)

	if err := f.data.Unmap(); err != nil {
		f.log.Criticalf("the file failed to unmap: %s error: %s", f.path, err)
		return fmt.Errorf("unmap(%s): %w", f.path, err)
	}
	if err := f.mapRegion(newSize); err != nil {
		f.log.Criticalf("the file failed to remap: %s error: %s", f.path, err)
		return err
	}
	return nil
}

// mapRegion sets data and size; the caller holds the lock exclusively or is
// the only goroutine with a reference.
func (f *File) mapRegion(size int64) error {
	data, err := mmap.MapRegion(f.file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("mmap(%s): %w", f.path, err)
	}
	// lookups jump all over the payload region
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		_ = data.Unmap()
		return fmt.Errorf("madvise(%s): %w", f.path, err)
	}
	f.data = data
	f.size = size
	return nil
}
