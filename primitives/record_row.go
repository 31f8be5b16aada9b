// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// recordLinkSize is the 4-byte next field of a record row.
const recordLinkSize = 4

// recordRow is a view of one chained hash table entry:
//
//	[ key  : keySize ]
//	[ next : 4       ]
//	[ value          ]
//
// Rows are thin views and must not outlive their manager.
type recordRow struct {
	manager *RecordManager
	keySize int64
	index   uint32
}

// createRecordRow allocates a new row and populates its key and value.  The
// next field is left for the caller to set before publication.
func createRecordRow(manager *RecordManager, keySize int64, key []byte, write func([]byte)) (recordRow, error) {
	index, err := manager.NewRecords(1)
	if err != nil {
		return recordRow{}, err
	}
	row := recordRow{
		manager: manager,
		keySize: keySize,
		index:   index,
	}

	a := manager.Get(index)
	defer a.Release()

	buffer := a.Buffer()
	copy(buffer[:keySize], key)
	if write != nil {
		write(buffer[keySize+recordLinkSize : manager.RecordSize()])
	}
	return row, nil
}

// compare reports whether the row's key matches, in constant time.
func (r recordRow) compare(key []byte) bool {
	a := r.manager.Get(r.index)
	defer a.Release()

	return subtle.ConstantTimeCompare(a.Buffer()[:r.keySize], key) == 1
}

// data returns an accessor positioned at the row's value, skipping key and
// next.  The caller must release it.
func (r recordRow) data() *memfile.Accessor {
	a := r.manager.Get(r.index)
	a.Increment(r.keySize + recordLinkSize)
	return a
}

func (r recordRow) next() uint32 {
	a := r.manager.Get(r.index)
	defer a.Release()

	return binary.LittleEndian.Uint32(a.Buffer()[r.keySize:])
}

// writeNext links the row to its successor; also used for unlink stitching.
func (r recordRow) writeNext(next uint32) {
	a := r.manager.Get(r.index)
	defer a.Release()

	binary.LittleEndian.PutUint32(a.Buffer()[r.keySize:], next)
}
