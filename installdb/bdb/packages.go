package bdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
)

// PackageDB is the "Packages" primary store: a hash database keyed by
// transaction id (tid), with tid 0 reserved for the next-tid cursor rather
// than a real header.
type PackageDB struct {
	db hashdb
}

// Open parses the metadata page of r and returns a ready PackageDB.
func Open(r io.ReaderAt) (*PackageDB, error) {
	pdb := &PackageDB{}
	if err := pdb.db.parse(r); err != nil {
		return nil, err
	}
	return pdb, nil
}

// ByteOrder reports the byte order this database's integer keys were
// detected to be stored in.
func (pdb *PackageDB) ByteOrder() binary.ByteOrder { return pdb.db.ord }

// Record is one header blob keyed by its installed transaction id.
type Record struct {
	TID  uint32
	Data io.ReaderAt
}

// Records returns an iterator over every package header in the store, keyed
// by tid. Tid 0's record is the next-tid bookkeeping counter, not a header,
// and is skipped.
func (pdb *PackageDB) Records(_ context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for e, err := range pdb.db.entries() {
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			if len(e.Key) != 4 {
				if !yield(Record{}, fmt.Errorf("bdb: unexpected tid key length: %d", len(e.Key))) {
					return
				}
				continue
			}
			tid := pdb.db.ord.Uint32(e.Key)
			if tid == 0 {
				continue
			}
			if !yield(Record{TID: tid, Data: e.Value}, nil) {
				return
			}
		}
	}
}
