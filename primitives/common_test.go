// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package primitives

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/thecodefactory/libbitcoin-database/memfile"
)

// configure for testing; teardown is registered first so that it runs
// after every other cleanup has released its files
func setup(t *testing.T) {
	removeLogFiles()

	_ = logger.Initialise(logger.Configuration{
		Directory: ".",
		File:      "test.log",
		Size:      50000,
		Count:     10,
	})

	t.Cleanup(func() {
		logger.Finalise()
		removeLogFiles()
	})
}

func removeLogFiles() {
	os.RemoveAll("test.log")
}

func newTestFile(t *testing.T, name string) (*memfile.File, string) {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, memfile.Touch(path))

	f, err := memfile.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = f.Stop()
	})
	return f, path
}

// a created record hash table over a single fresh file
type testRecordTable struct {
	table   *RecordHashTable
	manager *RecordManager
	file    *memfile.File
	path    string
}

func newTestRecordTable(t *testing.T, buckets uint32, keySize, valueSize int64, fingerprint Fingerprint) testRecordTable {
	f, path := newTestFile(t, "table.data")

	header := NewHeader[uint32](f, buckets)
	require.NoError(t, header.Create())

	manager := NewRecordManager(f, header.Size(), keySize+recordLinkSize+valueSize)
	require.NoError(t, manager.Create())

	return testRecordTable{
		table:   NewRecordHashTable(header, manager, keySize, fingerprint),
		manager: manager,
		file:    f,
		path:    path,
	}
}

// reopen a record hash table created by newTestRecordTable
func startTestRecordTable(t *testing.T, path string, buckets uint32, keySize, valueSize int64, fingerprint Fingerprint) *RecordHashTable {
	f, err := memfile.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.Stop()
	})

	header := NewHeader[uint32](f, buckets)
	require.NoError(t, header.Start())

	manager := NewRecordManager(f, header.Size(), keySize+recordLinkSize+valueSize)
	require.NoError(t, manager.Start())

	return NewRecordHashTable(header, manager, keySize, fingerprint)
}
