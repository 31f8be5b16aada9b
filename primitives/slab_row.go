// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// slabLinkSize is the 8-byte next field of a slab row.
const slabLinkSize = 8

// slabRow is a view of one chained hash table entry of caller-defined size:
//
//	[ key   : keySize ]
//	[ next  : 8       ]
//	[ value : variable ]
type slabRow struct {
	manager  *SlabManager
	keySize  int64
	position uint64
}

// createSlabRow allocates a new slab of keySize+8+valueSize bytes and
// populates its key and value.  The next field is left for the caller.
func createSlabRow(manager *SlabManager, keySize int64, key []byte, valueSize int64, write func([]byte)) (slabRow, error) {
	position, err := manager.NewSlab(keySize + slabLinkSize + valueSize)
	if err != nil {
		return slabRow{}, err
	}
	row := slabRow{
		manager:  manager,
		keySize:  keySize,
		position: position,
	}

	a := manager.Get(position)
	defer a.Release()

	buffer := a.Buffer()
	copy(buffer[:keySize], key)
	if write != nil {
		write(buffer[keySize+slabLinkSize : keySize+slabLinkSize+valueSize])
	}
	return row, nil
}

func (r slabRow) compare(key []byte) bool {
	a := r.manager.Get(r.position)
	defer a.Release()

	return subtle.ConstantTimeCompare(a.Buffer()[:r.keySize], key) == 1
}

func (r slabRow) data() *memfile.Accessor {
	a := r.manager.Get(r.position)
	a.Increment(r.keySize + slabLinkSize)
	return a
}

func (r slabRow) next() uint64 {
	a := r.manager.Get(r.position)
	defer a.Release()

	return binary.LittleEndian.Uint64(a.Buffer()[r.keySize:])
}

func (r slabRow) writeNext(next uint64) {
	a := r.manager.Get(r.position)
	defer a.Release()

	binary.LittleEndian.PutUint64(a.Buffer()[r.keySize:], next)
}
