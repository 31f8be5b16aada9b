// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package history_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thecodefactory/libbitcoin-database/history"
	"github.com/thecodefactory/libbitcoin-database/memfile"
)

func newTestDatabase(t *testing.T) (*history.Database, string, string) {
	dir := t.TempDir()
	lookupPath := filepath.Join(dir, "history_table")
	rowsPath := filepath.Join(dir, "history_rows")

	require.NoError(t, memfile.Touch(lookupPath))
	require.NoError(t, memfile.Touch(rowsPath))

	db, err := history.NewDatabase(lookupPath, rowsPath, 1000)
	require.NoError(t, err)
	require.NoError(t, db.Create())

	t.Cleanup(func() { _ = db.Close() })
	return db, lookupPath, rowsPath
}

func TestHistoryDatabase(t *testing.T) {
	setup(t)

	db, lookupPath, rowsPath := newTestDatabase(t)

	key1 := shortHash(t, "a006500b7ddfd568e2b036c65a4f4d6aaa0cbd9b")
	out11 := point(t, "4129e76f363f9742bc98dd3d40c99c9066e4d53b8e10e5097bd6f7b5059d7c53", 110)
	out12 := point(t, "eefa5d23968584be9d8d064bcf99c24666e4d53b8e10e5097bd6f7b5059d7c53", 4)
	out13 := point(t, "4129e76f363f9742bc98dd3d40c99c90eefa5d23968584be9d8d064bcf99c246", 8)
	spend11 := point(t, "4742b3eac32d35961f9da9d42d495ff1d90aba96944cac3e715047256f7016d1", 0)
	spend13 := point(t, "3cc768bbaef30587c72c6eba8dbf6aeec4ef24172ae6fe357f2e24c2b0fa44d5", 0)

	key2 := shortHash(t, "9c6b3bdaa612ceab88d49d4431ed58f26e69b90d")
	out21 := point(t, "80d9e7012b5b171bf78e75b52d2d149580d9e7012b5b171bf78e75b52d2d1495", 9)
	out22 := point(t, "4742b3eac32d35961f9da9d42d495ff13cc768bbaef30587c72c6eba8dbf6aee", 0)
	spend22 := point(t, "3cc768bbaef30587c72c6eba8dbfffffc4ef24172ae6fe357f2e24c2b0fa44d5", 0)

	key3 := shortHash(t, "3eb84f6a98478e516325b70fecf9903e1ce7528b")
	out31 := point(t, "d90aba96944cac3e715047256f7016d1d90aba96944cac3e715047256f7016d1", 0)

	// key1: three outputs then two spends
	require.NoError(t, db.AddOutput(key1, out11, 110, 4))
	require.NoError(t, db.AddOutput(key1, out12, 120, 8))
	require.NoError(t, db.AddOutput(key1, out13, 222, 6))
	require.NoError(t, db.AddSpend(key1, spend11, out11, 115))
	require.NoError(t, db.AddSpend(key1, spend13, out13, 320))

	require.NoError(t, db.AddOutput(key2, out21, 3982, 65))
	require.NoError(t, db.AddOutput(key2, out22, 78, 9))
	require.NoError(t, db.AddSpend(key2, spend22, out21, 900))

	require.NoError(t, db.AddOutput(key3, out31, 378, 34))

	verifyKey1 := func(rows []history.Row) {
		require.Len(t, rows, 5)

		// reverse insertion order: newest first
		assert.Equal(t, history.Row{Kind: history.Spend, Point: spend13, Height: 320, Data: history.Checksum(out13)}, rows[0])
		assert.Equal(t, history.Row{Kind: history.Spend, Point: spend11, Height: 115, Data: history.Checksum(out11)}, rows[1])
		assert.Equal(t, history.Row{Kind: history.Output, Point: out13, Height: 222, Data: 6}, rows[2])
		assert.Equal(t, history.Row{Kind: history.Output, Point: out12, Height: 120, Data: 8}, rows[3])
		assert.Equal(t, history.Row{Kind: history.Output, Point: out11, Height: 110, Data: 4}, rows[4])
	}
	verifyKey1(db.Fetch(key1))

	rows := db.Fetch(key2)
	require.Len(t, rows, 3)
	assert.Equal(t, history.Spend, rows[0].Kind)
	assert.Equal(t, history.Checksum(out21), rows[0].Data)
	assert.Equal(t, history.Row{Kind: history.Output, Point: out22, Height: 78, Data: 9}, rows[1])
	assert.Equal(t, history.Row{Kind: history.Output, Point: out21, Height: 3982, Data: 65}, rows[2])

	rows = db.Fetch(key3)
	require.Len(t, rows, 1)
	assert.Equal(t, history.Row{Kind: history.Output, Point: out31, Height: 378, Data: 34}, rows[0])

	assert.Empty(t, db.Fetch(shortHash(t, "d60db39ca8ce4caf0f7d2b7d3111535d9543473f")))

	// results survive a sync, close and restart
	require.NoError(t, db.Close())

	db2, err := history.NewDatabase(lookupPath, rowsPath, 1000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })
	require.NoError(t, db2.Start())

	verifyKey1(db2.Fetch(key1))
	assert.Len(t, db2.Fetch(key2), 3)

	// delete peels rows newest-first
	expect := []int{4, 3, 2, 1, 0}
	for _, remaining := range expect {
		require.True(t, db2.Delete(key1))
		assert.Len(t, db2.Fetch(key1), remaining)
	}
	assert.False(t, db2.Delete(key1))
	assert.Empty(t, db2.Fetch(key1))

	// other keys are untouched
	assert.Len(t, db2.Fetch(key2), 3)
}

func TestHistoryDatabaseStartRefusesTruncated(t *testing.T) {
	setup(t)

	dir := t.TempDir()
	lookupPath := filepath.Join(dir, "history_table")
	rowsPath := filepath.Join(dir, "history_rows")
	require.NoError(t, memfile.Touch(lookupPath))
	require.NoError(t, memfile.Touch(rowsPath))

	db, err := history.NewDatabase(lookupPath, rowsPath, 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// starting an uncreated store fails: the touched file is too small to
	// hold the bucket array
	assert.Error(t, db.Start())
}
