// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"encoding/binary"
	"sync"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// RecordMultimap maps a key to an unbounded chain of fixed-size value rows.
//
// The outer table's value is a single 4-byte link: the head of a chain of
// [next:4][value] rows owned by a second record manager.  Insertion is
// push-front, so publication is one word write into the outer entry and
// iteration yields values in reverse insertion order.
type RecordMultimap struct {
	table *RecordHashTable
	rows  *RecordManager

	createMu sync.Mutex
}

// NewRecordMultimap layers a multimap over a hash table whose value size is
// exactly one record link, and a manager of [next:4][value] rows.
func NewRecordMultimap(table *RecordHashTable, rows *RecordManager) *RecordMultimap {
	if table.ValueSize() != recordLinkSize {
		panic("invariant broken: multimap table value must be a single link")
	}
	if rows.RecordSize() <= recordLinkSize {
		panic("invariant broken: multimap row must hold next and value")
	}
	return &RecordMultimap{
		table: table,
		rows:  rows,
	}
}

// ValueSize is the exact buffer size handed to write callbacks.
func (m *RecordMultimap) ValueSize() int64 {
	return m.rows.RecordSize() - recordLinkSize
}

// Store allocates a new value row, fills it via write, and publishes it as
// the new head of the key's chain.  Returns the new row's link.
func (m *RecordMultimap) Store(key []byte, write func([]byte)) (uint32, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	row, err := m.rows.NewRecords(1)
	if err != nil {
		return RecordNotFound, err
	}
	a := m.rows.Get(row)
	write(a.Buffer()[recordLinkSize:m.rows.RecordSize()])
	a.Release()

	head, found := m.head(key)
	if !found {
		m.writeRowNext(row, RecordNotFound)
		if _, err := m.table.Store(key, func(value []byte) {
			binary.LittleEndian.PutUint32(value, row)
		}); err != nil {
			return RecordNotFound, err
		}
		return row, nil
	}

	m.writeRowNext(row, head)
	m.table.Update(key, func(value []byte) {
		binary.LittleEndian.PutUint32(value, row)
	})
	return row, nil
}

// Find returns a lazy, forward-only iterator over the key's chain.  The
// iterator observes the head captured here; inserts that prepend new heads
// afterwards do not disturb it.
func (m *RecordMultimap) Find(key []byte) RecordIterator {
	head, found := m.head(key)
	if !found {
		head = RecordNotFound
	}
	return RecordIterator{multimap: m, next: head}
}

// Get returns an accessor positioned at a row's value.  The caller must
// release it.
func (m *RecordMultimap) Get(link uint32) *memfile.Accessor {
	a := m.rows.Get(link)
	a.Increment(recordLinkSize)
	return a
}

// Unlink removes the head row of the key's chain, the most recent insertion.
// When the chain empties the outer table entry is unlinked too.  The row's
// space is not reclaimed.  Single writer only.
func (m *RecordMultimap) Unlink(key []byte) bool {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	head, found := m.head(key)
	if !found {
		return false
	}

	next := m.readRowNext(head)
	if next == RecordNotFound {
		return m.table.Unlink(key)
	}
	m.table.Update(key, func(value []byte) {
		binary.LittleEndian.PutUint32(value, next)
	})
	return true
}

func (m *RecordMultimap) head(key []byte) (uint32, bool) {
	a := m.table.Find(key)
	if a == nil {
		return RecordNotFound, false
	}
	defer a.Release()

	return binary.LittleEndian.Uint32(a.Buffer()), true
}

func (m *RecordMultimap) readRowNext(row uint32) uint32 {
	a := m.rows.Get(row)
	defer a.Release()

	return binary.LittleEndian.Uint32(a.Buffer())
}

func (m *RecordMultimap) writeRowNext(row, next uint32) {
	a := m.rows.Get(row)
	defer a.Release()

	binary.LittleEndian.PutUint32(a.Buffer(), next)
}

// RecordIterator yields successive row links of one multimap chain until the
// end.  Forward-only and non-restartable.
type RecordIterator struct {
	multimap *RecordMultimap
	next     uint32
	link     uint32
}

// Next advances to the following row, reporting false at the end of the
// chain.
func (it *RecordIterator) Next() bool {
	if it.next == RecordNotFound {
		return false
	}
	it.link = it.next
	it.next = it.multimap.readRowNext(it.link)
	return true
}

// Link returns the current row's link.  Valid after a true Next.
func (it *RecordIterator) Link() uint32 {
	return it.link
}
