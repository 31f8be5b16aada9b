// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderCreate(t *testing.T) {
	setup(t)

	f, _ := newTestFile(t, "header.data")
	h := NewHeader[uint32](f, 16)
	require.NoError(t, h.Create())
	require.EqualValues(t, 4+16*4, h.Size())

	// every bucket starts empty
	for bucket := uint32(0); bucket < 16; bucket++ {
		assert.Equal(t, RecordNotFound, h.Read(bucket))
	}

	h.Write(3, 42)
	assert.EqualValues(t, 42, h.Read(3))
	assert.Equal(t, RecordNotFound, h.Read(2))
	assert.Equal(t, RecordNotFound, h.Read(4))

	require.NoError(t, h.Start())
}

func TestHeaderSlabLinks(t *testing.T) {
	setup(t)

	f, _ := newTestFile(t, "header.data")
	h := NewHeader[uint64](f, 8)
	require.NoError(t, h.Create())
	require.EqualValues(t, 4+8*8, h.Size())

	for bucket := uint32(0); bucket < 8; bucket++ {
		assert.Equal(t, SlabNotFound, h.Read(bucket))
	}

	h.Write(7, 1<<40)
	assert.EqualValues(t, 1<<40, h.Read(7))

	assert.Panics(t, func() { h.Read(8) })
}

func TestHeaderBucketCountMismatch(t *testing.T) {
	setup(t)

	f, _ := newTestFile(t, "header.data")
	h := NewHeader[uint32](f, 16)
	require.NoError(t, h.Create())

	// the bucket count is fixed at creation
	other := NewHeader[uint32](f, 32)
	assert.Error(t, other.Start())
}
