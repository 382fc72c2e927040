// Package bdb reads the BerkeleyDB hash-database files an installed rpm
// database is built from: the primary "Packages" store and the secondary
// term indexes (Name, Providename, Requirename, ...).
package bdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/bits"
)

// Meta is the generic metadata shared by every BerkeleyDB page type, aka
// DBMETA in C.
type meta struct {
	LSN         uint64
	PageNo      uint32
	Magic       uint32
	Version     uint32
	PageSize    uint32
	EncryptAlg  byte
	Type        PageType
	Metaflags   byte
	_           byte
	Free        uint32
	LastPageNo  uint32
	NParts      uint32
	KeyCount    uint32
	RecordCount uint32
	Flags       uint32
	UID         [20]byte
}

// Hashmeta is the hash-database metadata page, aka HMETA in C.
type hashmeta struct {
	meta
	MaxBucket     uint32
	HighMask      uint32
	LowMask       uint32
	FillFactor    uint32
	NElem         uint32
	HashCharKey   uint32
	Spares        [32]uint32
	BlobThreshold uint32
	BlobFileLo    uint32
	BlobFileHi    uint32
	BlobSdbLo     uint32
	BlobSdbHi     uint32
	_             [54]uint32
	CryptoMagic   uint32
	_             [3]uint32
	IV            [16]byte
	Checksum      [20]byte
}

// Hash page header. Shared layout with overflow pages; the fields mean
// different things depending on Type.
type hashpage struct {
	LSN        uint64
	PageNo     uint32
	PrevPageNo uint32
	NextPageNo uint32
	Entries    uint16
	_          uint16
	_          byte
	Type       PageType
}

type overflowpage struct {
	LSN        uint64
	PageNo     uint32
	PrevPageNo uint32
	NextPageNo uint32
	_          uint16
	Length     uint16
	_          byte
	Type       PageType
}

// Hashoffpage describes where to find data stored off-page, aka HOFFPAGE in
// C.
type hashoffpage struct {
	Type   HashPageType
	_      [3]byte
	PageNo uint32
	Length uint32
}

const (
	hashmagic   = 0x00061561
	hashmagicBE = 0x61150600
)

// ZeroKey is the all-zeroes key libdb's hash access method reserves for
// bookkeeping (the cached key count); its paired value is never real data.
var zeroKey = []byte{0, 0, 0, 0}

// UnimplementedPageError is reported when a hash page entry's type is a kind
// this package doesn't decode.
type unimplementedPageError struct {
	Kind HashPageType
}

func (e *unimplementedPageError) Error() string {
	return fmt.Sprintf("bdb: unimplemented hash page type: %v", e.Kind)
}

func unknownPageType(k HashPageType) *unimplementedPageError {
	return &unimplementedPageError{Kind: k}
}

// Sentinel errors for hash page entry kinds this package doesn't implement.
var (
	ErrHashPageDuplicate error = unknownPageType(HashPageTypeDuplicate)
	ErrHashPageOffDup    error = unknownPageType(HashPageTypeOffDup)
	ErrHashPageBlob      error = unknownPageType(HashPageTypeBlob)
)

// Entry is one key/value pair read out of a hash database.
type Entry struct {
	Key   []byte
	Value io.ReaderAt
}

// Hashdb is the common page-walking machinery shared by the primary package
// store and the secondary term indexes: both are libdb hash databases, they
// just interpret the key and value bytes differently.
type hashdb struct {
	r   io.ReaderAt
	ord binary.ByteOrder
	m   hashmeta
}

// Parse reads and validates the metadata page, auto-detecting byte order.
func (db *hashdb) parse(r io.ReaderAt) error {
	db.ord = binary.LittleEndian
again:
	pg := io.NewSectionReader(r, 0, 512)
	if err := binary.Read(pg, db.ord, &db.m); err != nil {
		return fmt.Errorf("bdb: error reading metadata page: %w", err)
	}
	if db.m.Magic == hashmagicBE {
		db.ord = binary.BigEndian
		goto again
	}
	if db.m.Magic != hashmagic {
		return fmt.Errorf("bdb: nonsense magic: %08x", db.m.Magic)
	}
	if db.m.Type != PageTypeHashMeta {
		return fmt.Errorf("bdb: nonsense page type: %v", db.m.Type)
	}
	if db.m.EncryptAlg != 0 {
		return errors.New("bdb: database encryption not supported")
	}
	ok := false
	for i := range 8 {
		if db.m.PageSize == (1<<i)*512 {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("bdb: nonsense page size: %d", db.m.PageSize)
	}
	db.r = r
	return nil
}

func (db *hashdb) pageoffset(pageno uint32) int64 {
	return int64(pageno) * int64(db.m.PageSize)
}

func (db *hashdb) page(pageno uint32) *io.SectionReader {
	return io.NewSectionReader(db.r, db.pageoffset(pageno), int64(db.m.PageSize))
}

func (db *hashdb) bucketToPage(b uint32) *io.SectionReader {
	pn := b + db.m.Spares[bits.Len32(b)]
	return db.page(pn)
}

func (db *hashdb) rootPages() iter.Seq[*io.SectionReader] {
	return func(yield func(*io.SectionReader) bool) {
		for bn := uint32(0); bn <= db.m.MaxBucket; bn++ {
			if !yield(db.bucketToPage(bn)) {
				return
			}
		}
	}
}

func (db *hashdb) readHashpage(pg *io.SectionReader) (hashpage, error) {
	var h hashpage
	if err := binary.Read(pg, db.ord, &h); err != nil {
		return h, fmt.Errorf("bdb: error reading hashpage: %w", err)
	}
	if got, want := h.LSN, db.m.LSN; got != want {
		return h, fmt.Errorf("bdb: stale lsn: %016x != %016x", got, want)
	}
	if got, want := h.Type, PageType(PageTypeHash); got != want {
		return h, fmt.Errorf("bdb: unexpected page type: %v != %v", got, want)
	}
	return h, nil
}

func (db *hashdb) readOverflowpage(pg *io.SectionReader) (overflowpage, error) {
	var ov overflowpage
	if err := binary.Read(pg, db.ord, &ov); err != nil {
		return ov, fmt.Errorf("bdb: error reading overflowpage: %w", err)
	}
	if got, want := ov.LSN, db.m.LSN; got != want {
		return ov, fmt.Errorf("bdb: stale lsn: %016x != %016x", got, want)
	}
	if got, want := ov.Type, PageType(PageTypeOverflow); got != want {
		return ov, fmt.Errorf("bdb: unexpected page type: %v != %v", got, want)
	}
	return ov, nil
}

func (db *hashdb) overflow(start uint32) (*rope, error) {
	var r rope
	pgno := start
	for pgno != 0 {
		pg := db.page(pgno)
		ov, err := db.readOverflowpage(pg)
		if err != nil {
			return nil, err
		}
		const headerLen = 26
		data := io.NewSectionReader(db.r, db.pageoffset(ov.PageNo)+headerLen, int64(ov.Length))
		r.add(data)
		pgno = ov.NextPageNo
	}
	return &r, nil
}

// Entries walks every root page, returning every key/value pair. The
// all-zeroes bookkeeping key (and its paired value) is skipped.
func (db *hashdb) entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		peek := make([]byte, 1)
		var pendingKey []byte
		var skipValue bool
		var pg *io.SectionReader

	HandlePage:
		for pg = range db.rootPages() {
			for pg != nil {
				h, err := db.readHashpage(pg)
				if err != nil {
					if !yield(Entry{}, err) {
						return
					}
					continue HandlePage
				}
				entOffs := make([]uint16, int(h.Entries))
				if err := binary.Read(pg, db.ord, entOffs); err != nil {
					if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry pointer: %w", err)) {
						return
					}
					continue HandlePage
				}

			HandleEntry:
				for i := 0; i < int(h.Entries); i++ {
					isKey := (i & 1) == 0

					off := int64(entOffs[i])
					if _, err := pg.Seek(off, io.SeekStart); err != nil {
						if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry: %w", err)) {
							return
						}
						continue HandleEntry
					}
					if _, err := pg.Read(peek); err != nil {
						if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry pointer: %w", err)) {
							return
						}
						continue HandleEntry
					}
					if _, err := pg.Seek(-1, io.SeekCurrent); err != nil {
						if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry: %w", err)) {
							return
						}
						continue HandleEntry
					}

					typ := HashPageType(peek[0])
					switch typ {
					case HashPageTypeKeyData:
						var itemLen int64
						if i == 0 {
							itemLen = int64(db.m.PageSize) - off
						} else {
							itemLen = int64(entOffs[i-1]) - off
						}
						var buf bytes.Buffer
						buf.Grow(int(itemLen))
						if _, err := io.CopyN(&buf, pg, itemLen); err != nil {
							if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry: %w", err)) {
								return
							}
							continue HandleEntry
						}
						if _, err := buf.ReadByte(); err != nil {
							if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry: %w", err)) {
								return
							}
							continue HandleEntry
						}

						switch {
						case isKey:
							key := append([]byte(nil), buf.Bytes()...)
							pendingKey = key
							skipValue = bytes.Equal(key, zeroKey)
						case skipValue:
							skipValue = false
						default:
							if !yield(Entry{Key: pendingKey, Value: bytes.NewReader(buf.Bytes())}, nil) {
								return
							}
						}

					case HashPageTypeOffpage:
						var hoff hashoffpage
						if err := binary.Read(pg, db.ord, &hoff); err != nil {
							if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry: %w", err)) {
								return
							}
							continue HandleEntry
						}
						if isKey {
							// Keys here are always small fixed-size values
							// (tids, short terms); a key never lives offpage
							// in practice, but don't silently corrupt state
							// if it somehow does.
							if !yield(Entry{}, fmt.Errorf("bdb: unexpected offpage key")) {
								return
							}
							continue HandleEntry
						}
						r, err := db.overflow(hoff.PageNo)
						if err != nil {
							if !yield(Entry{}, fmt.Errorf("bdb: error reading hash entry: %w", err)) {
								return
							}
							continue HandleEntry
						}
						if skipValue {
							skipValue = false
							continue HandleEntry
						}
						if !yield(Entry{Key: pendingKey, Value: r}, nil) {
							return
						}
					case HashPageTypeDuplicate:
						if !yield(Entry{}, ErrHashPageDuplicate) {
							return
						}
					case HashPageTypeOffDup:
						if !yield(Entry{}, ErrHashPageOffDup) {
							return
						}
					case HashPageTypeBlob:
						if !yield(Entry{}, ErrHashPageBlob) {
							return
						}
					default:
						if !yield(Entry{}, unknownPageType(typ)) {
							return
						}
					}
				}

				if h.NextPageNo == 0 {
					pg = nil
				} else {
					pg = db.page(h.NextPageNo)
				}
			}
		}
	}
}

// Rope provides an [io.ReaderAt] over an ordered, append-only slice of
// [io.ReaderAt]s, for data spread across a chain of overflow pages.
type rope struct {
	rd  []*io.SectionReader
	off []int64
}

var _ io.ReaderAt = (*rope)(nil)

func (r *rope) ReadAt(b []byte, off int64) (int, error) {
	idx := 0
	for i, roff := range r.off {
		if roff > off {
			break
		}
		idx = i
	}

	n := 0
	rdoff := off - r.off[idx]
	for {
		rn, err := r.rd[idx].ReadAt(b[n:], rdoff)
		n += rn
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, io.EOF):
			idx++
			if idx != len(r.rd) {
				rdoff = 0
				break
			}
			fallthrough
		default:
			return n, err
		}
		if n == len(b) {
			break
		}
	}
	return n, nil
}

// Size reports the rope's total length, for callers that need to allocate a
// buffer up front instead of reading to EOF.
func (r *rope) Size() int64 {
	if len(r.rd) == 0 {
		return 0
	}
	last := len(r.rd) - 1
	return r.off[last] + r.rd[last].Size()
}

func (r *rope) add(rd *io.SectionReader) {
	var off int64
	for _, e := range r.rd {
		off += e.Size()
	}
	r.rd = append(r.rd, rd)
	r.off = append(r.off, off)
}
