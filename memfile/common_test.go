// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package memfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"
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

// a freshly touched and opened file in a per-test directory
func testFile(t *testing.T) (*File, string) {
	path := filepath.Join(t.TempDir(), "test.data")
	require.NoError(t, Touch(path))

	f, err := Open(path)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = f.Stop()
	})
	return f, path
}
