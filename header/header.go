// Package header implements the RPM header codec: the tag/index/store
// binary layout shared by a package's signature header and main header, and
// by the trailer record embedded in installed-database entries.
package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var magic = [8]byte{0x8e, 0xad, 0xe8, 0x01, 0x00, 0x00, 0x00, 0x00}

const (
	tagsMax   = 0xffff
	dataMax   = 0x0fffffff
	sizeMax   = 256 * 1024 * 1024
	entrySize = 16

	regionTagCount = 16
)

// errNoRegion means the header has no leading region-marker entry. Some
// legacy installed-database headers lack one, so Decode accepts such a
// header and does not return this error; Header.Region reports whether a
// region was found.
var errNoRegion = errors.New("header: no immutable region")

// EntryInfo is one on-disk index entry: tag, type, store offset and element
// count, all big-endian (spec ยง4.2).
type EntryInfo struct {
	Tag    Tag
	Type   Kind
	Offset int32 // signed: the region trailer entry carries a negative offset
	Count  uint32
}

func (ei *EntryInfo) unmarshal(b []byte) {
	ei.Tag = Tag(int32(binary.BigEndian.Uint32(b[0:4])))
	ei.Type = Kind(binary.BigEndian.Uint32(b[4:8]))
	ei.Offset = int32(binary.BigEndian.Uint32(b[8:12]))
	ei.Count = binary.BigEndian.Uint32(b[12:16])
}

func (ei EntryInfo) marshal(b []byte) {
	binary.BigEndian.PutUint32(b[0:4], uint32(int32(ei.Tag)))
	binary.BigEndian.PutUint32(b[4:8], uint32(ei.Type))
	binary.BigEndian.PutUint32(b[8:12], uint32(ei.Offset))
	binary.BigEndian.PutUint32(b[12:16], ei.Count)
}

// Header is a decoded tag/index/store header: either a package's signature
// header, its main header, or the augmented record a package db stores.
type Header struct {
	Infos []EntryInfo
	store []byte

	region     Tag // 0 if verifyRegion found none
	regionSize int // indexNo recorded in the region trailer, for re-emission
	index      map[Tag]int // Tag -> index into Infos, honoring the *2 alias policy
}

// Decode reads one header (preamble, index, store) from r. It does not
// consume trailing pad bytes; callers that know the header's pad boundary
// (8 for a signature header, 1 for a main header) are responsible for
// skipping them.
func Decode(r io.Reader) (*Header, error) {
	var pre [16]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, fmt.Errorf("header: reading preamble: %w", err)
	}
	if !bytes.Equal(pre[:8], magic[:]) {
		return nil, fmt.Errorf("header: bad magic %x", pre[:8])
	}
	indexNo := binary.BigEndian.Uint32(pre[8:12])
	storeSize := binary.BigEndian.Uint32(pre[12:16])
	if indexNo < 1 || indexNo > tagsMax {
		return nil, fmt.Errorf("header: index count %d out of range", indexNo)
	}
	if storeSize > dataMax || int64(indexNo)*entrySize+int64(storeSize) > sizeMax {
		return nil, fmt.Errorf("header: store size %d out of range", storeSize)
	}

	idxBytes := make([]byte, int64(indexNo)*entrySize)
	if _, err := io.ReadFull(r, idxBytes); err != nil {
		return nil, fmt.Errorf("header: reading index: %w", err)
	}
	store := make([]byte, storeSize)
	if _, err := io.ReadFull(r, store); err != nil {
		return nil, fmt.Errorf("header: reading store: %w", err)
	}

	infos := make([]EntryInfo, indexNo)
	for i := range infos {
		infos[i].unmarshal(idxBytes[i*entrySize:])
	}

	h := &Header{Infos: infos, store: store}
	if err := h.verifyRegion(); err != nil && !errors.Is(err, errNoRegion) {
		return nil, err
	}
	if err := h.buildIndex(); err != nil {
		return nil, err
	}
	return h, nil
}

// verifyRegion checks and records the leading immutable-region marker, per
// spec ยง4.2's "Immutable region reconstruction".
func (h *Header) verifyRegion() error {
	first := h.Infos[0]
	if first.Tag != TagHeaderImmutable && first.Tag != TagHeaderSignatures {
		return errNoRegion
	}
	if first.Type != TypeBin || first.Count != regionTagCount {
		return fmt.Errorf("header: region marker %v has wrong type/count", first.Tag)
	}
	off := first.Offset
	if off < 0 || int64(off)+regionTagCount > int64(len(h.store)) {
		return fmt.Errorf("header: region marker offset %d out of range", off)
	}
	var trailer EntryInfo
	trailer.unmarshal(h.store[off:])
	// librpm writes legacy signature headers with TagHeaderImage in the
	// region trailer under a TagHeaderSignatures marker; both spellings are
	// accepted here as the same boundary.
	if first.Tag == TagHeaderSignatures && trailer.Tag == TagHeaderImage {
		trailer.Tag = TagHeaderSignatures
	}
	if trailer.Tag != first.Tag {
		return fmt.Errorf("header: region trailer tag %v != marker tag %v", trailer.Tag, first.Tag)
	}
	if trailer.Type != TypeBin || trailer.Count != regionTagCount {
		return fmt.Errorf("header: region trailer has wrong type/count")
	}
	if trailer.Offset >= 0 {
		return fmt.Errorf("header: region trailer offset %d not negative", trailer.Offset)
	}
	indexNo := -trailer.Offset / entrySize
	if indexNo < 1 || int(indexNo) > len(h.Infos) {
		return fmt.Errorf("header: region trailer claims %d entries, have %d", indexNo, len(h.Infos))
	}

	switch first.Tag {
	case TagHeaderSignatures:
		h.region = TagHeaderSignatures
	default:
		h.region = TagHeaderImmutable
	}
	h.regionSize = int(indexNo)
	return nil
}

// buildIndex walks Infos, checking each entry's bounds, and records a
// Tag -> Infos-index map. A tag seen twice binds its second occurrence to
// the registry's "*2" alias (spec ยง3, ยง9) when one is registered; otherwise
// the second occurrence is rejected.
func (h *Header) buildIndex() error {
	h.index = make(map[Tag]int, len(h.Infos))
	prevOffset := int32(-1)
	for i, info := range h.Infos {
		// The leading region entry's store bytes sit at the back of the
		// store, so it takes no part in the offset ordering check.
		if i > 0 || h.region == 0 {
			if info.Offset < prevOffset {
				return fmt.Errorf("header: entry %d (%v) offset %d not monotonic", i, info.Tag, info.Offset)
			}
			prevOffset = info.Offset
		}

		if info.Type < TypeMin || info.Type > TypeMax {
			return fmt.Errorf("header: entry %d (%v) has unknown type %d", i, info.Tag, info.Type)
		}
		n, err := valueLen(info, h.store)
		if err != nil {
			return fmt.Errorf("header: entry %d (%v): %w", i, info.Tag, err)
		}
		if info.Offset < 0 || int64(info.Offset)+int64(n) > int64(len(h.store)) {
			return fmt.Errorf("header: entry %d (%v) value runs past store", i, info.Tag)
		}
		if align := info.Type.Alignment(); align > 1 && int(info.Offset)%align != 0 {
			return fmt.Errorf("header: entry %d (%v) offset %d misaligned for %v", i, info.Tag, info.Offset, info.Type)
		}

		key := info.Tag
		if _, dup := h.index[key]; dup {
			if alias, ok := AliasOf(key); ok {
				key = alias
			} else {
				return fmt.Errorf("header: duplicate tag %v with no alias policy", info.Tag)
			}
		}
		h.index[key] = i
	}
	return nil
}

// valueLen returns the number of store bytes info's value occupies.
func valueLen(info EntryInfo, store []byte) (int, error) {
	switch info.Type {
	case TypeChar, TypeBin:
		return int(info.Count), nil
	case TypeInt8:
		return int(info.Count), nil
	case TypeInt16:
		return int(info.Count) * 2, nil
	case TypeInt32:
		return int(info.Count) * 4, nil
	case TypeInt64:
		return int(info.Count) * 8, nil
	case TypeString:
		if info.Count != 1 {
			return 0, fmt.Errorf("string tag with count %d != 1", info.Count)
		}
		return nulLen(store, int(info.Offset), 1)
	case TypeStringArray, TypeI18nString:
		return nulLen(store, int(info.Offset), int(info.Count))
	default:
		return 0, fmt.Errorf("unhandled type %v", info.Type)
	}
}

// nulLen scans forward from off for n NUL-terminated strings and returns
// their combined byte length, including terminators.
func nulLen(store []byte, off, n int) (int, error) {
	start := off
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(store[off:], 0)
		if idx < 0 {
			return 0, fmt.Errorf("unterminated string at offset %d", off)
		}
		off += idx + 1
	}
	return off - start, nil
}

// Tags returns every tag present in the header, including alias tags bound
// by the duplicate-tag policy.
func (h *Header) Tags() []Tag {
	tags := make([]Tag, 0, len(h.index))
	for t := range h.index {
		tags = append(tags, t)
	}
	return tags
}

// Region reports the header's immutable-region marker tag, and whether one
// was present.
func (h *Header) Region() (Tag, bool) { return h.region, h.region != 0 }

// Get decodes and returns the value stored under tag.
func (h *Header) Get(tag Tag) (Value, bool, error) {
	i, ok := h.index[tag]
	if !ok {
		return Value{}, false, nil
	}
	v, err := h.decode(h.Infos[i])
	if err != nil {
		return Value{}, false, fmt.Errorf("header: decoding %v: %w", tag, err)
	}
	return v, true, nil
}

func (h *Header) decode(info EntryInfo) (Value, error) {
	off, n := int(info.Offset), int(info.Count)
	switch info.Type {
	case TypeChar, TypeBin:
		b := make([]byte, n)
		copy(b, h.store[off:off+n])
		return NewBin(info.Type, b), nil
	case TypeInt8:
		v := make([]int8, n)
		for i := range v {
			v[i] = int8(h.store[off+i])
		}
		return NewInt8(v), nil
	case TypeInt16:
		v := make([]int16, n)
		for i := range v {
			v[i] = int16(binary.BigEndian.Uint16(h.store[off+2*i:]))
		}
		return NewInt16(v), nil
	case TypeInt32:
		if IsSigned32(info.Tag) {
			v := make([]int32, n)
			for i := range v {
				v[i] = int32(binary.BigEndian.Uint32(h.store[off+4*i:]))
			}
			return NewInt32Signed(v), nil
		}
		v := make([]uint32, n)
		for i := range v {
			v[i] = binary.BigEndian.Uint32(h.store[off+4*i:])
		}
		return NewInt32Unsigned(v), nil
	case TypeInt64:
		v := make([]uint64, n)
		for i := range v {
			v[i] = binary.BigEndian.Uint64(h.store[off+8*i:])
		}
		return NewInt64(v), nil
	case TypeString:
		s, _ := splitCString(h.store[off:])
		return NewString(s), nil
	case TypeStringArray, TypeI18nString:
		rest := h.store[off:]
		out := make([]string, n)
		for i := range out {
			var adv int
			out[i], adv = splitCString(rest)
			rest = rest[adv:]
		}
		return NewStringArray(info.Type, out), nil
	default:
		return Value{}, fmt.Errorf("unhandled type %v", info.Type)
	}
}

// splitCString returns the NUL-terminated string at the start of b and the
// number of bytes consumed including the terminator.
func splitCString(b []byte) (string, int) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b), len(b)
	}
	return string(b[:i]), i + 1
}
