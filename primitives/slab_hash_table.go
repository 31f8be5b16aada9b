// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"sync"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// SlabHashTable is a chained hash table mapping keys to variable-size
// values.  It composes a bucket Header of 8-byte offsets and a SlabManager
// whose slabs are [key][next:8][value] rows.
//
// Semantics match RecordHashTable: push-front insertion, duplicates allowed,
// operations act on the most recently inserted match, unlink is single
// writer only.
type SlabHashTable struct {
	header      *Header[uint64]
	manager     *SlabManager
	keySize     int64
	fingerprint Fingerprint

	createMu sync.RWMutex
	updateMu sync.RWMutex
}

// NewSlabHashTable wires a header and manager into a table for keys of
// keySize bytes.  A nil fingerprint selects DefaultFingerprint.
func NewSlabHashTable(header *Header[uint64], manager *SlabManager, keySize int64, fingerprint Fingerprint) *SlabHashTable {
	if fingerprint == nil {
		fingerprint = DefaultFingerprint
	}
	if keySize <= 0 {
		panic("invariant broken: key size must be positive")
	}
	return &SlabHashTable{
		header:      header,
		manager:     manager,
		keySize:     keySize,
		fingerprint: fingerprint,
	}
}

// Store allocates a new slab of valueSize value bytes, fills it via write,
// and publishes it at the front of its bucket's chain.  Returns the new
// slab's offset.
func (t *SlabHashTable) Store(key []byte, valueSize int64, write func([]byte)) (uint64, error) {
	t.createMu.Lock()
	defer t.createMu.Unlock()

	row, err := createSlabRow(t.manager, t.keySize, key, valueSize, write)
	if err != nil {
		return SlabNotFound, err
	}

	bucket := t.bucketIndex(key)
	row.writeNext(t.readHead(bucket))

	t.updateMu.Lock()
	t.header.Write(bucket, row.position)
	t.updateMu.Unlock()

	return row.position, nil
}

// Update runs write over the value of the most recently stored slab matching
// key.  The callback sees the buffer from the value start to the end of the
// mapping: the caller knows its own value size.  Returns the slab's offset,
// or SlabNotFound.
func (t *SlabHashTable) Update(key []byte, write func([]byte)) uint64 {
	current := t.readHead(t.bucketIndex(key))
	for current != SlabNotFound {
		row := slabRow{manager: t.manager, keySize: t.keySize, position: current}
		if row.compare(key) {
			t.updateMu.Lock()
			a := row.data()
			write(a.Buffer())
			a.Release()
			t.updateMu.Unlock()
			return current
		}
		current = row.next()
	}
	return SlabNotFound
}

// Find returns an accessor positioned at the value of the most recently
// stored slab matching key, or nil.  The caller must release it.
func (t *SlabHashTable) Find(key []byte) *memfile.Accessor {
	current := t.readHead(t.bucketIndex(key))
	for current != SlabNotFound {
		row := slabRow{manager: t.manager, keySize: t.keySize, position: current}
		if row.compare(key) {
			return row.data()
		}
		current = row.next()
	}
	return nil
}

// Offset is Find returning the raw slab offset instead of an accessor.
func (t *SlabHashTable) Offset(key []byte) uint64 {
	current := t.readHead(t.bucketIndex(key))
	for current != SlabNotFound {
		row := slabRow{manager: t.manager, keySize: t.keySize, position: current}
		if row.compare(key) {
			return current
		}
		current = row.next()
	}
	return SlabNotFound
}

// Unlink removes the most recently stored slab matching key.  Single writer
// only.
func (t *SlabHashTable) Unlink(key []byte) bool {
	t.createMu.Lock()
	defer t.createMu.Unlock()

	bucket := t.bucketIndex(key)
	current := t.readHead(bucket)
	if current == SlabNotFound {
		return false
	}

	row := slabRow{manager: t.manager, keySize: t.keySize, position: current}
	if row.compare(key) {
		next := row.next()
		t.updateMu.Lock()
		t.header.Write(bucket, next)
		t.updateMu.Unlock()
		return true
	}

	previous := row
	current = row.next()
	for current != SlabNotFound {
		row := slabRow{manager: t.manager, keySize: t.keySize, position: current}
		if row.compare(key) {
			next := row.next()
			t.updateMu.Lock()
			previous.writeNext(next)
			t.updateMu.Unlock()
			return true
		}
		previous = row
		current = row.next()
	}
	return false
}

func (t *SlabHashTable) bucketIndex(key []byte) uint32 {
	return t.fingerprint(key, t.header.Buckets())
}

func (t *SlabHashTable) readHead(bucket uint32) uint64 {
	t.updateMu.RLock()
	defer t.updateMu.RUnlock()

	return t.header.Read(bucket)
}
