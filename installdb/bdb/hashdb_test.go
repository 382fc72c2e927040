package bdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
)

// buildDB hand-assembles a minimal one-bucket, one-page hash database: a
// 512-byte metadata page followed by a single 512-byte hash page holding one
// key/value entry pair, in the given byte order.
func buildDB(t *testing.T, ord binary.ByteOrder, key, value []byte) []byte {
	t.Helper()
	const pageSize = 512

	var m hashmeta
	m.Magic = hashmagic
	m.Type = PageTypeHashMeta
	m.PageSize = pageSize
	m.MaxBucket = 0
	m.Spares[0] = 1 // bucket 0's root page is page 1

	var metaBuf bytes.Buffer
	if err := binary.Write(&metaBuf, ord, &m); err != nil {
		t.Fatalf("building metadata page: %v", err)
	}
	metaPage := make([]byte, pageSize)
	copy(metaPage, metaBuf.Bytes())

	hashPage := buildHashPage(t, ord, pageSize, m.LSN, key, value)

	out := make([]byte, 0, 2*pageSize)
	out = append(out, metaPage...)
	out = append(out, hashPage...)
	return out
}

func buildHashPage(t *testing.T, ord binary.ByteOrder, pageSize int, lsn uint64, key, value []byte) []byte {
	t.Helper()
	page := make([]byte, pageSize)

	keyItem := append([]byte{byte(HashPageTypeKeyData)}, key...)
	valItem := append([]byte{byte(HashPageTypeKeyData)}, value...)

	keyOff := pageSize - len(keyItem)
	valOff := keyOff - len(valItem)
	copy(page[keyOff:], keyItem)
	copy(page[valOff:], valItem)

	h := hashpage{
		LSN:     lsn,
		PageNo:  1,
		Entries: 2,
		Type:    PageTypeHash,
	}
	var hdr bytes.Buffer
	if err := binary.Write(&hdr, ord, &h); err != nil {
		t.Fatalf("building hash page header: %v", err)
	}
	copy(page, hdr.Bytes())

	entOffs := []uint16{uint16(keyOff), uint16(valOff)}
	var offBuf bytes.Buffer
	if err := binary.Write(&offBuf, ord, entOffs); err != nil {
		t.Fatalf("building entry offset table: %v", err)
	}
	copy(page[hdr.Len():], offBuf.Bytes())

	return page
}

func collectEntries(t *testing.T, db *hashdb) []Entry {
	t.Helper()
	var out []Entry
	for e, err := range db.entries() {
		if err != nil {
			t.Fatalf("entries: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func readAll(t *testing.T, r interface{ ReadAt([]byte, int64) (int, error) }, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	return buf
}

func TestHashdbParseDetectsByteOrder(t *testing.T) {
	for _, ord := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		raw := buildDB(t, ord, []byte("abcd"), []byte("XY"))
		var db hashdb
		if err := db.parse(bytes.NewReader(raw)); err != nil {
			t.Fatalf("parse (%v): %v", ord, err)
		}
		if db.ord != ord {
			t.Errorf("parse (%v): detected %v", ord, db.ord)
		}
	}
}

func TestHashdbEntriesReadsKeyValue(t *testing.T) {
	raw := buildDB(t, binary.LittleEndian, []byte("abcd"), []byte("XY"))
	var db hashdb
	if err := db.parse(bytes.NewReader(raw)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	entries := collectEntries(t, &db)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if got := string(entries[0].Key); got != "abcd" {
		t.Errorf("key = %q, want abcd", got)
	}
	if got := string(readAll(t, entries[0].Value, 2)); got != "XY" {
		t.Errorf("value = %q, want XY", got)
	}
}

func TestHashdbEntriesSkipsZeroKey(t *testing.T) {
	raw := buildDB(t, binary.LittleEndian, zeroKey, []byte("ct"))
	var db hashdb
	if err := db.parse(bytes.NewReader(raw)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	entries := collectEntries(t, &db)
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0 (zero-key bookkeeping pair skipped)", len(entries))
	}
}

func TestPackageDBRecords(t *testing.T) {
	tid := make([]byte, 4)
	binary.LittleEndian.PutUint32(tid, 7)
	raw := buildDB(t, binary.LittleEndian, tid, []byte("header-bytes"))

	pdb, err := Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var recs []Record
	for r, err := range pdb.Records(context.Background()) {
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	if recs[0].TID != 7 {
		t.Errorf("TID = %d, want 7", recs[0].TID)
	}
	if got := string(readAll(t, recs[0].Data, len("header-bytes"))); got != "header-bytes" {
		t.Errorf("Data = %q", got)
	}
}

func TestSecondaryIndexEntries(t *testing.T) {
	var refBuf bytes.Buffer
	binary.Write(&refBuf, binary.LittleEndian, uint32(7))
	binary.Write(&refBuf, binary.LittleEndian, uint32(2))
	raw := buildDB(t, binary.LittleEndian, []byte("bash"), refBuf.Bytes())

	idx, err := OpenIndex(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	var terms []TermEntry
	for e, err := range idx.Entries(context.Background()) {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		terms = append(terms, e)
	}
	if len(terms) != 1 {
		t.Fatalf("len(terms) = %d, want 1", len(terms))
	}
	if terms[0].Term != "bash" {
		t.Errorf("Term = %q, want bash", terms[0].Term)
	}
	if len(terms[0].Refs) != 1 || terms[0].Refs[0] != (Ref{TID: 7, Index: 2}) {
		t.Errorf("Refs = %+v, want [{7 2}]", terms[0].Refs)
	}
}
