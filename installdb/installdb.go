// Package installdb reads an installed rpm database: the primary store of
// package headers plus the secondary term indexes layered over it, cross-
// checking the two against each other and against the header codec's own
// round-trip guarantee (spec ยง4.9).
package installdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/quay/zlog"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/installdb/bdb"
	"github.com/quay/rpmplan/installdb/sqlite"
)

// PrimaryEntry is one header blob keyed by its primary-store identifier: a
// bdb transaction id or a sqlite header number. Both backends' record keys
// fit in a uint32 in practice (a 2^32 transaction count is not a thing a
// real system reaches).
type PrimaryEntry struct {
	Key  uint32
	Data io.ReaderAt
}

// BDBEntries adapts a bdb primary store to the common PrimaryEntry shape.
func BDBEntries(ctx context.Context, pdb *bdb.PackageDB) iter.Seq2[PrimaryEntry, error] {
	return func(yield func(PrimaryEntry, error) bool) {
		for rec, err := range pdb.Records(ctx) {
			if err != nil {
				if !yield(PrimaryEntry{}, err) {
					return
				}
				continue
			}
			if !yield(PrimaryEntry{Key: rec.TID, Data: rec.Data}, nil) {
				return
			}
		}
	}
}

// SQLiteEntries adapts a sqlite primary store to the common PrimaryEntry
// shape.
func SQLiteEntries(ctx context.Context, db *sqlite.DB) iter.Seq2[PrimaryEntry, error] {
	return func(yield func(PrimaryEntry, error) bool) {
		for rec, err := range db.Records(ctx) {
			if err != nil {
				if !yield(PrimaryEntry{}, err) {
					return
				}
				continue
			}
			if !yield(PrimaryEntry{Key: uint32(rec.HNum), Data: rec.Data}, nil) {
				return
			}
		}
	}
}

// Record is one decoded installed-package header, alongside the raw bytes
// it was stored as (needed for the re-emit check).
type Record struct {
	Key    uint32
	Header *header.Header
	Raw    []byte
}

// ReadAll decodes every header blob a primary-store iterator yields.
func ReadAll(_ context.Context, entries iter.Seq2[PrimaryEntry, error]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for e, err := range entries {
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			raw, err := readAll(e.Data)
			if err != nil {
				if !yield(Record{}, fmt.Errorf("installdb: reading record %d: %w", e.Key, err)) {
					return
				}
				continue
			}
			h, err := header.Decode(bytes.NewReader(raw))
			if err != nil {
				if !yield(Record{}, fmt.Errorf("installdb: decoding record %d: %w", e.Key, err)) {
					return
				}
				continue
			}
			if !yield(Record{Key: e.Key, Header: h, Raw: raw}, nil) {
				return
			}
		}
	}
}

// ReadAll reads r to EOF via a growing buffer; a generic io.ReaderAt gives
// no way to ask its total length up front.
func readAll(r io.ReaderAt) ([]byte, error) {
	const chunk = 4096
	var buf []byte
	var off int64
	for {
		buf = append(buf, make([]byte, chunk)...)
		n, err := r.ReadAt(buf[off:], off)
		off += int64(n)
		buf = buf[:off]
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return buf, nil
		default:
			return nil, err
		}
	}
}

// ReEmitCheck re-encodes h's tags through the header codec, grouping the
// known install-only tags into the second emission group, and reports
// whether the result matches the bytes the record was actually stored as
// (spec ยง4.9's "re-emit check"). A mismatch is a diagnostic, not
// necessarily a bug in this reader: the producing rpm may have written a
// tag not in the registry, or used non-canonical ordering.
func ReEmitCheck(h *header.Header, raw []byte) error {
	regionTag, hasRegion := h.Region()
	if !hasRegion {
		regionTag = header.TagHeaderImmutable
	}

	tags := make(map[header.Tag]header.Value, len(h.Tags()))
	for _, t := range h.Tags() {
		if hasRegion && t == regionTag {
			continue // Encode derives the region marker/trailer itself.
		}
		v, ok, err := h.Get(t)
		if err != nil {
			return fmt.Errorf("installdb: reading tag %v: %w", t, err)
		}
		if !ok {
			continue
		}
		tags[t] = v
	}

	enc, err := header.Encode(tags, regionTag, header.InstallOnlyTags(h))
	if err != nil {
		return fmt.Errorf("installdb: re-encoding: %w", err)
	}
	if !bytes.Equal(enc, raw) {
		return fmt.Errorf("installdb: re-emit mismatch: got %d bytes, want %d", len(enc), len(raw))
	}
	return nil
}

// CrossCheckError reports a secondary index entry whose referenced primary
// record doesn't carry the value the index claims it does.
type CrossCheckError struct {
	Index string
	Term  string
	Key   uint32 // the record's primary-store key (tid/hnum)
	At    uint32 // the position within the tag's array the index claims
	Want  string
	Got   string
}

func (e *CrossCheckError) Error() string {
	return fmt.Sprintf("installdb: cross-check %s: term %q, record %d[%d]: index says %q, header has %q",
		e.Index, e.Term, e.Key, e.At, e.Want, e.Got)
}

// indexTags maps each named secondary index to the main-header tag (and,
// where the installed-database duplicate-tag convention applies, its *2
// alias) whose string-array values the index's terms should match (spec
// ยง4.9).
var indexTags = map[string]header.Tag{
	"Basenames":      header.TagBasenames,
	"Conflictname":   header.TagConflictName,
	"Dirnames":       header.TagDirnames,
	"Filemd5s":       header.TagFileDigests,
	"Group":          header.TagGroup,
	"Installtid":     header.TagInstallTid,
	"Name":           header.TagName,
	"Providename":    header.TagProvideName,
	"Provideversion": header.TagProvideVersion,
	"Pubkeys":        header.TagPubKeys,
	"Requirename":    header.TagRequireName,
	"Requireversion": header.TagRequireVersion,
	"Sha1header":     header.TagSHA1Header,
	"Sigmd5":         header.TagSigMD5,
	"Triggername":    header.TagTriggerName,
}

// CrossCheck walks a secondary index's terms, confirming that every
// referenced record exposes the term at the claimed tag array position (or
// its *2 alias, per the installed-database's duplicate-tag policy). records
// is keyed by primary-store key (tid/hnum). Errors are accumulated and
// returned together rather than aborting at the first mismatch, matching
// spec ยง7's "resolution errors accumulated per tuple" propagation policy.
func CrossCheck(ctx context.Context, indexName string, entries iter.Seq2[bdb.TermEntry, error], records map[uint32]*header.Header) []error {
	tag, ok := indexTags[indexName]
	if !ok {
		return []error{fmt.Errorf("installdb: unknown secondary index %q", indexName)}
	}

	var errs []error
	ct := 0
	for e, err := range entries {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ref := range e.Refs {
			ct++
			h, ok := records[ref.TID]
			if !ok {
				errs = append(errs, fmt.Errorf("installdb: cross-check %s: term %q references unknown record %d", indexName, e.Term, ref.TID))
				continue
			}
			got, err := fieldAt(h, tag, ref.Index)
			if err != nil {
				errs = append(errs, fmt.Errorf("installdb: cross-check %s: record %d: %w", indexName, ref.TID, err))
				continue
			}
			if got != e.Term {
				errs = append(errs, &CrossCheckError{Index: indexName, Term: e.Term, Key: ref.TID, At: ref.Index, Want: e.Term, Got: got})
			}
		}
	}
	zlog.Debug(ctx).Str("index", indexName).Int("refs", ct).Int("mismatches", len(errs)).Msg("cross-checked secondary index")
	return errs
}

// FieldAt reads the string at position i of tag's array value in h, falling
// back to tag's *2 alias if tag itself isn't present (the installed
// database's duplicate-tag convention, spec ยง3/ยง9).
func fieldAt(h *header.Header, tag header.Tag, i uint32) (string, error) {
	v, ok, err := h.Get(tag)
	if err != nil {
		return "", err
	}
	if !ok {
		if alias, has := header.AliasOf(tag); has {
			v, ok, err = h.Get(alias)
			if err != nil {
				return "", err
			}
		}
	}
	if !ok {
		return "", fmt.Errorf("tag %v not present", tag)
	}
	switch v.Kind() {
	case header.TypeString:
		if i != 0 {
			return "", fmt.Errorf("tag %v is scalar, index %d out of range", tag, i)
		}
		return v.Str(), nil
	case header.TypeStringArray, header.TypeI18nString:
		arr := v.StrArray()
		if int(i) >= len(arr) {
			return "", fmt.Errorf("tag %v: index %d out of range (len %d)", tag, i, len(arr))
		}
		return arr[i], nil
	default:
		return "", fmt.Errorf("tag %v has non-string kind %v", tag, v.Kind())
	}
}
