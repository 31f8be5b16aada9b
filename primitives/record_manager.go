// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// recordCountSize is the 4-byte record count stored after the control header.
const recordCountSize = 4

var errRecordManagerInUse = errors.New("record file is not empty")

// RecordManager allocates fixed-size records in the payload region of a
// file:
//
//	[ control header ]  headerSize bytes, owned by the caller
//	[ record count   ]  4 bytes, little-endian
//	[ records        ]  recordSize bytes each, appended only
//
// The count lives in memory between Start and Sync; Sync persists it.
type RecordManager struct {
	file       *memfile.File
	headerSize int64
	recordSize int64

	mu    sync.Mutex // guards count
	count uint32
}

func NewRecordManager(file *memfile.File, headerSize, recordSize int64) *RecordManager {
	if recordSize <= 0 {
		panic("invariant broken: record size must be positive")
	}
	return &RecordManager{
		file:       file,
		headerSize: headerSize,
		recordSize: recordSize,
	}
}

// Create initialises an empty payload.  It refuses to run once this manager
// has allocated records; it does not read the file, so a fresh manager over
// a file that already holds records resets its count to zero.
func (m *RecordManager) Create() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count != 0 {
		return errRecordManagerInUse
	}
	if err := m.file.Resize(m.headerSize + recordCountSize); err != nil {
		return err
	}
	return m.writeCount()
}

// Start loads the persisted record count and checks the file can hold it.
func (m *RecordManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.readCount(); err != nil {
		return err
	}
	minimum := m.headerSize + recordCountSize + int64(m.count)*m.recordSize
	if minimum > m.file.Size() {
		return fmt.Errorf("record count %d exceeds file size: corrupted", m.count)
	}
	return nil
}

// Sync writes the record count back to the file.
func (m *RecordManager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writeCount()
}

// Count returns the number of allocated records.
func (m *RecordManager) Count() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.count
}

// NewRecords reserves n consecutive records, growing the file as needed, and
// returns the index of the first.
func (m *RecordManager) NewRecords(n uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// the sentinel index must stay unreachable
	if n == 0 || RecordNotFound-m.count <= n {
		panic(fmt.Sprintf("invariant broken: record count overflow (%d + %d)", m.count, n))
	}

	first := m.count
	count := m.count + n
	required := m.headerSize + recordCountSize + int64(count)*m.recordSize
	if err := m.file.Resize(required); err != nil {
		return RecordNotFound, err
	}
	m.count = count
	return first, nil
}

// Get returns an accessor positioned at the start of a record.  The caller
// must release it; buffers read from it are valid until then.
func (m *RecordManager) Get(record uint32) *memfile.Accessor {
	if record >= m.Count() {
		panic(fmt.Sprintf("invariant broken: record %d read past end (%d)", record, m.Count()))
	}
	a := m.file.Access()
	a.Increment(m.headerSize + recordCountSize + int64(record)*m.recordSize)
	return a
}

// RecordSize returns the fixed record size, including key and next fields
// where the caller stores any.
func (m *RecordManager) RecordSize() int64 {
	return m.recordSize
}

// callers hold mu

func (m *RecordManager) readCount() error {
	a := m.file.Access()
	defer a.Release()

	buffer := a.Buffer()
	if int64(len(buffer)) < m.headerSize+recordCountSize {
		return fmt.Errorf("file too small for record count")
	}
	m.count = binary.LittleEndian.Uint32(buffer[m.headerSize:])
	return nil
}

func (m *RecordManager) writeCount() error {
	a, err := m.file.Reserve(m.headerSize + recordCountSize)
	if err != nil {
		return err
	}
	defer a.Release()

	binary.LittleEndian.PutUint32(a.Buffer()[m.headerSize:], m.count)
	return nil
}
