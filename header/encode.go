package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Encode serializes tags into one on-disk tag/index/store header, wrapped
// in an immutable region under regionTag (TagHeaderImmutable for a main
// header, TagHeaderSignatures for a signature header), per spec ยง4.2.
//
// installOnly names tags that belong in the second, separately-sorted
// "install-only" emission group; callers with no such tags may pass nil.
// Encode does not append the trailing pad bytes a signature header needs
// to reach an 8-byte boundary: that is the caller's responsibility, since
// it depends on where the header lands in the surrounding file.
func Encode(tags map[Tag]Value, regionTag Tag, installOnly map[Tag]bool) ([]byte, error) {
	var normal, install []Tag
	for t := range tags {
		if installOnly[t] {
			install = append(install, t)
		} else {
			normal = append(normal, t)
		}
	}
	sort.Slice(normal, func(i, j int) bool { return normal[i] < normal[j] })
	sort.Slice(install, func(i, j int) bool { return install[i] < install[j] })

	order := make([]Tag, 0, len(normal)+len(install))
	order = append(order, normal...)
	order = append(order, install...)

	var store bytes.Buffer
	infos := make([]EntryInfo, 0, len(order)+1)
	for _, t := range order {
		v := tags[t]
		if pad := v.Kind().Alignment(); pad > 1 {
			if m := store.Len() % pad; m != 0 {
				store.Write(make([]byte, pad-m))
			}
		}
		offset := store.Len()
		b, count, err := v.encode()
		if err != nil {
			return nil, fmt.Errorf("header: encoding tag %v: %w", t, err)
		}
		store.Write(b)
		infos = append(infos, EntryInfo{Tag: t, Type: v.Kind(), Offset: int32(offset), Count: count})
	}

	total := len(infos) + 1 // + the region marker entry itself
	regionOffset := store.Len()
	trailer := EntryInfo{
		Tag:    regionTag,
		Type:   TypeBin,
		Offset: -int32(total * entrySize),
		Count:  regionTagCount,
	}
	var trailerBytes [entrySize]byte
	trailer.marshal(trailerBytes[:])
	store.Write(trailerBytes[:])

	regionEntry := EntryInfo{Tag: regionTag, Type: TypeBin, Offset: int32(regionOffset), Count: regionTagCount}
	allInfos := make([]EntryInfo, 0, total)
	allInfos = append(allInfos, regionEntry)
	allInfos = append(allInfos, infos...)

	var out bytes.Buffer
	out.Write(magic[:])
	var lenBuf [8]byte
	binary.BigEndian.PutUint32(lenBuf[0:4], uint32(len(allInfos)))
	binary.BigEndian.PutUint32(lenBuf[4:8], uint32(store.Len()))
	out.Write(lenBuf[:])
	for _, info := range allInfos {
		var b [entrySize]byte
		info.marshal(b[:])
		out.Write(b[:])
	}
	out.Write(store.Bytes())
	return out.Bytes(), nil
}
