// Package digest computes the two streaming checksums a package file's
// signature header asserts over its main header and payload (spec ยง4.3).
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
)

// Header is a streaming accumulator for the main-header sha1: it is fed the
// main header's 16-byte preamble, index bytes, and store bytes, in that
// order, exactly as they were read from the package file.
//
// The preceding lead is never part of this digest; "16 bytes" here names
// the main header's own magic+counts preamble, not the 96-byte lead (spec
// ยง4.3 resolved against the original reader's __verifyHdr, which hashes
// hdrdata[2:5] — the main header's preamble/index/store triple — and never
// touches the lead or the signature header).
type Header struct {
	h hash.Hash
}

// NewHeader returns a fresh main-header sha1 accumulator.
func NewHeader() *Header { return &Header{h: sha1.New()} }

// Write feeds bytes into the running sha1. Callers write the main header's
// preamble, index bytes, and store bytes in sequence.
func (d *Header) Write(p []byte) (int, error) { return d.h.Write(p) }

// Sum returns the running sha1 digest in hex, matching the signature
// header's sha1header tag format.
func (d *Header) Sum() string { return fmt.Sprintf("%x", d.h.Sum(nil)) }

// Package is a streaming accumulator for the package md5: main header
// preamble+index+store, followed by the entire compressed payload through
// EOF.
type Package struct {
	h hash.Hash
}

// NewPackage returns a fresh package md5 accumulator.
func NewPackage() *Package { return &Package{h: md5.New()} }

func (d *Package) Write(p []byte) (int, error) { return d.h.Write(p) }

// Sum returns the running md5 digest's raw 16 bytes, matching the
// signature header's md5 tag's binary encoding.
func (d *Package) Sum() []byte { return d.h.Sum(nil) }

// CopyPayload streams r (the package file positioned just after the main
// header) into d in chunks, without buffering the payload in memory.
func (d *Package) CopyPayload(r io.Reader) error {
	_, err := io.Copy(d.h, r)
	if err != nil {
		return fmt.Errorf("digest: streaming payload: %w", err)
	}
	return nil
}
