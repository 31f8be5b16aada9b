// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"encoding/binary"
	"fmt"

	"github.com/thecodefactory/libbitcoin-database/internal/fill"
	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// bucketCountSize is the 4-byte count field before the bucket array.
const bucketCountSize = 4

// Header is the fixed array of bucket heads at the front of a hash table
// file:
//
//	[ bucket_count : 4      ]
//	[ bucket       : 4 or 8 ] * bucket_count
//
// A bucket holds the head link of the chain of rows hashing to it, or the
// all-ones sentinel when empty.  Writing a bucket is a single word write: it
// is the atomic publication point for insertion and unlink.  Bucket words start at
// offset 4, so 4-byte links are word aligned while 8-byte links are not
// aligned to 8 bytes.
type Header[L Link] struct {
	file    *memfile.File
	buckets uint32
}

func NewHeader[L Link](file *memfile.File, buckets uint32) *Header[L] {
	if buckets == 0 {
		panic("invariant broken: hash table requires at least one bucket")
	}
	return &Header[L]{
		file:    file,
		buckets: buckets,
	}
}

// Create writes the bucket count and an empty sentinel into every bucket.
func (h *Header[L]) Create() error {
	size := h.Size()
	a, err := h.file.Reserve(size)
	if err != nil {
		return err
	}
	defer a.Release()

	buffer := a.Buffer()[:size]
	binary.LittleEndian.PutUint32(buffer, h.buckets)
	fill.Bytes(buffer[bucketCountSize:], 0xff)
	return nil
}

// Start validates the on-disk bucket count against construction parameters.
func (h *Header[L]) Start() error {
	a := h.file.Access()
	defer a.Release()

	buffer := a.Buffer()
	if int64(len(buffer)) < h.Size() {
		return fmt.Errorf("file too small for %d buckets", h.buckets)
	}
	count := binary.LittleEndian.Uint32(buffer)
	if count != h.buckets {
		return fmt.Errorf("bucket count mismatch: file has %d, expected %d", count, h.buckets)
	}
	return nil
}

// Read returns the head link of a bucket.
func (h *Header[L]) Read(bucket uint32) L {
	a := h.file.Access()
	defer a.Release()

	return getLink[L](a.Buffer()[h.bucketOffset(bucket):])
}

// Write publishes a head link.
func (h *Header[L]) Write(bucket uint32, value L) {
	a := h.file.Access()
	defer a.Release()

	putLink(a.Buffer()[h.bucketOffset(bucket):], value)
}

// Buckets returns the bucket count fixed at construction.
func (h *Header[L]) Buckets() uint32 {
	return h.buckets
}

// Size is the byte length of the header: the count field plus the array.
func (h *Header[L]) Size() int64 {
	return bucketCountSize + int64(h.buckets)*linkSize[L]()
}

func (h *Header[L]) bucketOffset(bucket uint32) int64 {
	if bucket >= h.buckets {
		panic(fmt.Sprintf("invariant broken: bucket %d out of range (%d)", bucket, h.buckets))
	}
	return bucketCountSize + int64(bucket)*linkSize[L]()
}
