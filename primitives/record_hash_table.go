// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"sync"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// RecordHashTable is a chained hash table mapping keys to fixed-size values.
// It composes a bucket Header and a RecordManager whose records are
// [key][next:4][value] rows.
//
// Insertion is push-front: duplicates are permitted and later inserts shadow
// earlier ones.  Update, Find, Offset and Unlink all act on the most recently
// inserted match.
//
// Two locks keep concurrent use coherent: the create lock serialises Store
// (allocation order and head publication), the update lock serialises head
// and next pointer rewrites against reads of the same word.  Unlink is not
// safe under concurrent writers.
type RecordHashTable struct {
	header      *Header[uint32]
	manager     *RecordManager
	keySize     int64
	fingerprint Fingerprint

	createMu sync.RWMutex
	updateMu sync.RWMutex
}

// NewRecordHashTable wires a header and manager into a table for keys of
// keySize bytes.  The manager's record size must be
// keySize + 4 + value size.  A nil fingerprint selects DefaultFingerprint.
func NewRecordHashTable(header *Header[uint32], manager *RecordManager, keySize int64, fingerprint Fingerprint) *RecordHashTable {
	if fingerprint == nil {
		fingerprint = DefaultFingerprint
	}
	if keySize <= 0 || keySize+recordLinkSize >= manager.RecordSize() {
		panic("invariant broken: record size must hold key, next and value")
	}
	return &RecordHashTable{
		header:      header,
		manager:     manager,
		keySize:     keySize,
		fingerprint: fingerprint,
	}
}

// ValueSize is the exact buffer size handed to write callbacks.
func (t *RecordHashTable) ValueSize() int64 {
	return t.manager.RecordSize() - t.keySize - recordLinkSize
}

// Store allocates a new row, fills it via write, and publishes it at the
// front of its bucket's chain.  Returns the new row's link.
func (t *RecordHashTable) Store(key []byte, write func([]byte)) (uint32, error) {
	t.createMu.Lock()
	defer t.createMu.Unlock()

	row, err := createRecordRow(t.manager, t.keySize, key, write)
	if err != nil {
		return RecordNotFound, err
	}

	bucket := t.bucketIndex(key)
	row.writeNext(t.readHead(bucket))

	t.updateMu.Lock()
	t.header.Write(bucket, row.index)
	t.updateMu.Unlock()

	return row.index, nil
}

// Update runs write over the value of the most recently stored row matching
// key.  Returns the row's link, or RecordNotFound.
func (t *RecordHashTable) Update(key []byte, write func([]byte)) uint32 {
	current := t.readHead(t.bucketIndex(key))
	for current != RecordNotFound {
		row := recordRow{manager: t.manager, keySize: t.keySize, index: current}
		if row.compare(key) {
			t.updateMu.Lock()
			a := row.data()
			write(a.Buffer()[:t.ValueSize()])
			a.Release()
			t.updateMu.Unlock()
			return current
		}
		current = row.next()
	}
	return RecordNotFound
}

// Find returns an accessor positioned at the value of the most recently
// stored row matching key, or nil.  The caller must release it.
func (t *RecordHashTable) Find(key []byte) *memfile.Accessor {
	current := t.readHead(t.bucketIndex(key))
	for current != RecordNotFound {
		row := recordRow{manager: t.manager, keySize: t.keySize, index: current}
		if row.compare(key) {
			return row.data()
		}
		current = row.next()
	}
	return nil
}

// Offset is Find returning the raw link instead of an accessor.
func (t *RecordHashTable) Offset(key []byte) uint32 {
	current := t.readHead(t.bucketIndex(key))
	for current != RecordNotFound {
		row := recordRow{manager: t.manager, keySize: t.keySize, index: current}
		if row.compare(key) {
			return current
		}
		current = row.next()
	}
	return RecordNotFound
}

// Unlink removes the most recently stored row matching key by stitching its
// predecessor to its successor.  The row's space is not reclaimed.  Returns
// false if the key is absent.  Single writer only.
func (t *RecordHashTable) Unlink(key []byte) bool {
	t.createMu.Lock()
	defer t.createMu.Unlock()

	bucket := t.bucketIndex(key)
	current := t.readHead(bucket)
	if current == RecordNotFound {
		return false
	}

	row := recordRow{manager: t.manager, keySize: t.keySize, index: current}
	if row.compare(key) {
		next := row.next()
		t.updateMu.Lock()
		t.header.Write(bucket, next)
		t.updateMu.Unlock()
		return true
	}

	previous := row
	current = row.next()
	for current != RecordNotFound {
		row := recordRow{manager: t.manager, keySize: t.keySize, index: current}
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

func (t *RecordHashTable) bucketIndex(key []byte) uint32 {
	return t.fingerprint(key, t.header.Buckets())
}

func (t *RecordHashTable) readHead(bucket uint32) uint32 {
	t.updateMu.RLock()
	defer t.updateMu.RUnlock()

	return t.header.Read(bucket)
}
