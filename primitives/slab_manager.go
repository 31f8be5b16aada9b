// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// payloadSizeSize is the 8-byte payload length stored after the control
// header.  It counts itself, so an empty payload has size 8 and the first
// slab sits at offset 8.
const payloadSizeSize = 8

var errSlabManagerInUse = errors.New("slab file is not empty")

// SlabManager allocates variable-size slabs in the payload region of a file:
//
//	[ control header ]  headerSize bytes, owned by the caller
//	[ payload size   ]  8 bytes, little-endian, includes itself
//	[ slabs          ]  caller-sized, appended only
//
// Slab positions are byte offsets relative to the end of the control header.
type SlabManager struct {
	file       *memfile.File
	headerSize int64

	mu          sync.Mutex // guards payloadSize
	payloadSize uint64
}

func NewSlabManager(file *memfile.File, headerSize int64) *SlabManager {
	return &SlabManager{
		file:        file,
		headerSize:  headerSize,
		payloadSize: payloadSizeSize,
	}
}

// Create initialises an empty payload.  It refuses to run once this manager
// has allocated slabs; it does not read the file, so a fresh manager over a
// file that already holds slabs resets its payload size to 8.
func (m *SlabManager) Create() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.payloadSize != payloadSizeSize {
		return errSlabManagerInUse
	}
	if err := m.file.Resize(m.headerSize + payloadSizeSize); err != nil {
		return err
	}
	return m.writeSize()
}

// Start loads the persisted payload size and checks the file can hold it.
func (m *SlabManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.readSize(); err != nil {
		return err
	}
	minimum := m.headerSize + int64(m.payloadSize)
	if m.payloadSize > math.MaxInt64 || minimum > m.file.Size() {
		return fmt.Errorf("payload size %d exceeds file size: corrupted", m.payloadSize)
	}
	return nil
}

// Sync writes the payload size back to the file.
func (m *SlabManager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeSize()
}

// PayloadSize returns the current payload length in bytes.
func (m *SlabManager) PayloadSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.payloadSize
}

// NewSlab reserves size bytes at the end of the payload, growing the file as
// needed, and returns the position of the new slab.
func (m *SlabManager) NewSlab(size int64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size <= 0 || m.payloadSize+uint64(size) < m.payloadSize {
		panic(fmt.Sprintf("invariant broken: payload size overflow (%d + %d)", m.payloadSize, size))
	}

	// always write after the last slab
	position := m.payloadSize

	required := m.headerSize + int64(m.payloadSize) + size
	if err := m.file.Resize(required); err != nil {
		return SlabNotFound, err
	}
	m.payloadSize += uint64(size)
	return position, nil
}

// Get returns an accessor positioned at a slab.  The caller must release it;
// buffers read from it are valid until then.
func (m *SlabManager) Get(position uint64) *memfile.Accessor {
	if position >= m.PayloadSize() {
		panic(fmt.Sprintf("invariant broken: slab %d read past end (%d)", position, m.PayloadSize()))
	}
	a := m.file.Access()
	a.Increment(m.headerSize + int64(position))
	return a
}

// callers hold mu

func (m *SlabManager) readSize() error {
	a := m.file.Access()
	defer a.Release()

	buffer := a.Buffer()
	if int64(len(buffer)) < m.headerSize+payloadSizeSize {
		return fmt.Errorf("file too small for payload size")
	}
	m.payloadSize = binary.LittleEndian.Uint64(buffer[m.headerSize:])
	return nil
}

func (m *SlabManager) writeSize() error {
	a, err := m.file.Reserve(m.headerSize + payloadSizeSize)
	if err != nil {
		return err
	}
	defer a.Release()

	binary.LittleEndian.PutUint64(a.Buffer()[m.headerSize:], m.payloadSize)
	return nil
}
