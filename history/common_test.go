// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package history_test

import (
	"encoding/hex"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/thecodefactory/libbitcoin-database/history"
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

func shortHash(t *testing.T, s string) (key history.ShortHash) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != history.ShortHashSize {
		t.Fatalf("bad short hash literal: %s", s)
	}
	copy(key[:], b)
	return
}

func point(t *testing.T, s string, index uint32) (p history.Point) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		t.Fatalf("bad hash literal: %s", s)
	}
	copy(p.Hash[:], b)
	p.Index = index
	return
}
