package bdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Ref points at one field of one installed package's header: the record
// keyed by TID, at position Index within whatever header tag the index is
// named after (Name, Providename, Requirename, ...).
type Ref struct {
	TID   uint32
	Index uint32
}

// SecondaryIndex is a term -> []Ref hash database: one of Basenames,
// Conflictname, Dirnames, Filemd5s, Group, Installtid, Name, Providename,
// Provideversion, Pubkeys, Requirename, Requireversion, Sha1header,
// Sigmd5, or Triggername.
type SecondaryIndex struct {
	db hashdb
}

// OpenIndex parses the metadata page of r and returns a ready
// SecondaryIndex.
func OpenIndex(r io.ReaderAt) (*SecondaryIndex, error) {
	idx := &SecondaryIndex{}
	if err := idx.db.parse(r); err != nil {
		return nil, err
	}
	return idx, nil
}

// TermEntry is one term and every package field that carries it.
type TermEntry struct {
	Term string
	Refs []Ref
}

// Entries returns an iterator over every term in the index.
func (idx *SecondaryIndex) Entries(_ context.Context) iter.Seq2[TermEntry, error] {
	return func(yield func(TermEntry, error) bool) {
		for e, err := range idx.db.entries() {
			if err != nil {
				if !yield(TermEntry{}, err) {
					return
				}
				continue
			}
			refs, err := decodeRefs(idx.db.ord, e.Value)
			if err != nil {
				if !yield(TermEntry{}, fmt.Errorf("bdb: error decoding index value for %q: %w", e.Key, err)) {
					return
				}
				continue
			}
			if !yield(TermEntry{Term: string(e.Key), Refs: refs}, nil) {
				return
			}
		}
	}
}

// sizer is implemented by both [*bytes.Reader] (plain key-data entries) and
// [*rope] (entries spread over overflow pages), the two concrete types
// [hashdb.entries] ever produces as a value.
type sizer interface {
	Size() int64
}

// DecodeRefs unpacks a secondary-index value: a concatenation of
// (tid:u32, index:u32) pairs in the database's detected byte order.
func decodeRefs(ord binary.ByteOrder, r io.ReaderAt) ([]Ref, error) {
	sz, ok := r.(sizer)
	if !ok {
		return nil, fmt.Errorf("bdb: index value has no known size: %T", r)
	}
	size := sz.Size()
	if size%8 != 0 {
		return nil, fmt.Errorf("bdb: odd-sized index value: %d bytes", size)
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	refs := make([]Ref, 0, size/8)
	for off := int64(0); off < size; off += 8 {
		refs = append(refs, Ref{
			TID:   ord.Uint32(buf[off : off+4]),
			Index: ord.Uint32(buf[off+4 : off+8]),
		})
	}
	return refs, nil
}
