// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package history indexes the outputs and spends of a payment address,
// keyed by a 20-byte short hash.  It is built on a record multimap across
// two files: a lookup table of chain heads and a row store of the history
// entries themselves.
package history

import (
	"encoding/binary"
	"fmt"

	"github.com/bitmark-inc/logger"
	"github.com/spaolacci/murmur3"

	"github.com/thecodefactory/libbitcoin-database/memfile"
	"github.com/thecodefactory/libbitcoin-database/primitives"
)

const (
	// ShortHashSize is the RIPEMD-160 width of an address key.
	ShortHashSize = 20

	// PointSize is a 32-byte transaction hash plus a 4-byte index.
	PointSize = 36

	// RowSize is [kind:1][point:36][height:4][data:8].
	RowSize = 1 + PointSize + 4 + 8

	lookupRecordSize = ShortHashSize + 4 + 4
	rowRecordSize    = 4 + RowSize
)

// Kind distinguishes the two row flavours.
type Kind byte

const (
	// Output rows carry the output value in their data field.
	Output Kind = iota

	// Spend rows carry a checksum of the spent output point.
	Spend
)

// ShortHash is an address key.
type ShortHash [ShortHashSize]byte

// Point identifies a transaction output or input.
type Point struct {
	Hash  [32]byte
	Index uint32
}

// Row is one history entry for an address.
type Row struct {
	Kind   Kind
	Point  Point
	Height uint32
	Data   uint64
}

// Checksum reduces an output point to the 8-byte value stored in the spend
// row that consumes it, letting a caller pair spends with outputs without a
// second lookup.
func Checksum(point Point) uint64 {
	var buffer [PointSize]byte
	putPoint(buffer[:], point)
	return murmur3.Sum64(buffer[:])
}

// Database is the address-history index.
type Database struct {
	log        *logger.L
	lookupFile *memfile.File
	rowsFile   *memfile.File
	lookup     *primitives.RecordManager
	rows       *primitives.RecordManager
	header     *primitives.Header[uint32]
	multimap   *primitives.RecordMultimap
}

// NewDatabase opens both backing files, which must exist (memfile.Touch
// creates new ones), and wires the multimap.  Buckets must match the value
// used at creation time.
func NewDatabase(lookupPath, rowsPath string, buckets uint32) (*Database, error) {
	lookupFile, err := memfile.Open(lookupPath)
	if err != nil {
		return nil, err
	}
	rowsFile, err := memfile.Open(rowsPath)
	if err != nil {
		_ = lookupFile.Stop()
		return nil, err
	}

	header := primitives.NewHeader[uint32](lookupFile, buckets)
	lookup := primitives.NewRecordManager(lookupFile, header.Size(), lookupRecordSize)
	rows := primitives.NewRecordManager(rowsFile, 0, rowRecordSize)
	table := primitives.NewRecordHashTable(header, lookup, ShortHashSize, nil)

	return &Database{
		log:        logger.New("history"),
		lookupFile: lookupFile,
		rowsFile:   rowsFile,
		lookup:     lookup,
		rows:       rows,
		header:     header,
		multimap:   primitives.NewRecordMultimap(table, rows),
	}, nil
}

// Create initialises empty structures in freshly touched files.
func (db *Database) Create() error {
	if err := db.header.Create(); err != nil {
		return err
	}
	if err := db.lookup.Create(); err != nil {
		return err
	}
	return db.rows.Create()
}

// Start loads counters from files written by a prior run.
func (db *Database) Start() error {
	if err := db.header.Start(); err != nil {
		return err
	}
	if err := db.lookup.Start(); err != nil {
		return err
	}
	return db.rows.Start()
}

// AddOutput appends an output row for the address.
func (db *Database) AddOutput(key ShortHash, output Point, height uint32, value uint64) error {
	return db.add(key, Row{
		Kind:   Output,
		Point:  output,
		Height: height,
		Data:   value,
	})
}

// AddSpend appends a spend row for the address, recording the checksum of
// the output point it consumes.
func (db *Database) AddSpend(key ShortHash, spend Point, previous Point, height uint32) error {
	return db.add(key, Row{
		Kind:   Spend,
		Point:  spend,
		Height: height,
		Data:   Checksum(previous),
	})
}

// Fetch returns the address's rows, most recent first.
func (db *Database) Fetch(key ShortHash) []Row {
	var result []Row

	iter := db.multimap.Find(key[:])
	for iter.Next() {
		a := db.multimap.Get(iter.Link())
		row := getRow(a.Buffer())
		a.Release()
		result = append(result, row)
	}
	return result
}

// Delete removes the most recently added row for the address.  Returns false
// when the address has none.
func (db *Database) Delete(key ShortHash) bool {
	return db.multimap.Unlink(key[:])
}

// Sync persists both counters and flushes the mappings, making the files
// self-consistent for the next Start.
func (db *Database) Sync() error {
	if err := db.lookup.Sync(); err != nil {
		return err
	}
	if err := db.rows.Sync(); err != nil {
		return err
	}
	if err := db.lookupFile.Flush(); err != nil {
		return err
	}
	return db.rowsFile.Flush()
}

// Close syncs and releases both files.
func (db *Database) Close() error {
	if err := db.Sync(); err != nil {
		db.log.Errorf("sync on close failed: %s", err)
	}
	if err := db.lookupFile.Stop(); err != nil {
		return err
	}
	return db.rowsFile.Stop()
}

func (db *Database) add(key ShortHash, row Row) error {
	_, err := db.multimap.Store(key[:], func(value []byte) {
		putRow(value, row)
	})
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	return nil
}

func putPoint(buffer []byte, point Point) {
	copy(buffer[:32], point.Hash[:])
	binary.LittleEndian.PutUint32(buffer[32:36], point.Index)
}

func getPoint(buffer []byte) (point Point) {
	copy(point.Hash[:], buffer[:32])
	point.Index = binary.LittleEndian.Uint32(buffer[32:36])
	return
}

func putRow(buffer []byte, row Row) {
	buffer[0] = byte(row.Kind)
	putPoint(buffer[1:], row.Point)
	binary.LittleEndian.PutUint32(buffer[1+PointSize:], row.Height)
	binary.LittleEndian.PutUint64(buffer[1+PointSize+4:], row.Data)
}

func getRow(buffer []byte) (row Row) {
	row.Kind = Kind(buffer[0])
	row.Point = getPoint(buffer[1:])
	row.Height = binary.LittleEndian.Uint32(buffer[1+PointSize:])
	row.Data = binary.LittleEndian.Uint64(buffer[1+PointSize+4:])
	return
}
