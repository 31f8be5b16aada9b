// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package primitives builds linked-list structures over a memory-mapped
// file: fixed-size record and variable-size slab allocators, chained hash
// tables composed from them, and a record multimap.
//
// All on-disk integers are little-endian.  Chains terminate in an all-ones
// sentinel link.
package primitives

import (
	"encoding/binary"
	"unsafe"

	"github.com/dgryski/go-farm"
)

// Link is an on-disk reference to a row: a record index (4 bytes) or a byte
// offset into a slab payload (8 bytes).
type Link interface {
	~uint32 | ~uint64
}

const (
	// RecordNotFound terminates record chains and signals an absent key.
	RecordNotFound = ^uint32(0)

	// SlabNotFound terminates slab chains and signals an absent key.
	SlabNotFound = ^uint64(0)
)

func linkSize[L Link]() int64 {
	var link L
	return int64(unsafe.Sizeof(link))
}

func getLink[L Link](buffer []byte) L {
	if linkSize[L]() == 4 {
		return L(binary.LittleEndian.Uint32(buffer))
	}
	return L(binary.LittleEndian.Uint64(buffer))
}

func putLink[L Link](buffer []byte, value L) {
	if linkSize[L]() == 4 {
		binary.LittleEndian.PutUint32(buffer, uint32(value))
	} else {
		binary.LittleEndian.PutUint64(buffer, uint64(value))
	}
}

// Fingerprint reduces a key to a bucket index.  It must be deterministic and
// stable across process restarts: changing it invalidates existing files.
type Fingerprint func(key []byte, buckets uint32) uint32

// DefaultFingerprint buckets a key by its farm fingerprint.  Fingerprint64 is
// guaranteed never to change, which is exactly the stability the on-disk
// format needs.
func DefaultFingerprint(key []byte, buckets uint32) uint32 {
	return uint32(farm.Fingerprint64(key) % uint64(buckets))
}
