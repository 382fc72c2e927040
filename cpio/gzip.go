package cpio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// GzipReader decompresses a raw gzip stream, verifying its trailing CRC32
// and length against the bytes it produces (spec ยง4.4). Unlike
// compress/gzip it treats a trailer mismatch as a warning, since some
// packagers are known to emit a wrong uncompressed length for empty
// payloads — matching the original reader's PyGZIP.__del__.
type GzipReader struct {
	src     *bufio.Reader
	flate   io.ReadCloser
	crc     uint32
	length  uint32
	done    bool
	Warning error // set once Read reaches the end of the stream, if the trailer disagreed
}

// NewGzipReader parses the 10-byte gzip header, skipping any FEXTRA/FNAME/
// FCOMMENT/FHCRC fields, and prepares to decompress the raw DEFLATE stream
// that follows.
func NewGzipReader(r io.Reader) (*GzipReader, error) {
	br := bufio.NewReader(r)
	var hdr [10]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("cpio: gzip: reading header: %w", err)
	}
	if hdr[0] != 0x1f || hdr[1] != 0x8b || hdr[2] != 8 {
		return nil, fmt.Errorf("cpio: gzip: not a gzip stream")
	}
	flags := hdr[3]

	if flags&4 != 0 { // FEXTRA
		var xlenb [2]byte
		if _, err := io.ReadFull(br, xlenb[:]); err != nil {
			return nil, fmt.Errorf("cpio: gzip: reading extra field length: %w", err)
		}
		xlen := int(xlenb[0]) + 256*int(xlenb[1])
		if _, err := io.CopyN(io.Discard, br, int64(xlen)); err != nil {
			return nil, fmt.Errorf("cpio: gzip: skipping extra field: %w", err)
		}
	}
	if flags&8 != 0 { // FNAME
		if err := skipCString(br); err != nil {
			return nil, fmt.Errorf("cpio: gzip: skipping name: %w", err)
		}
	}
	if flags&16 != 0 { // FCOMMENT
		if err := skipCString(br); err != nil {
			return nil, fmt.Errorf("cpio: gzip: skipping comment: %w", err)
		}
	}
	if flags&2 != 0 { // FHCRC
		if _, err := io.CopyN(io.Discard, br, 2); err != nil {
			return nil, fmt.Errorf("cpio: gzip: skipping header crc: %w", err)
		}
	}

	return &GzipReader{src: br, flate: flate.NewReader(br)}, nil
}

func skipCString(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0 {
			return nil
		}
	}
}

func (g *GzipReader) Read(p []byte) (int, error) {
	n, err := g.flate.Read(p)
	if n > 0 {
		g.crc = crc32.Update(g.crc, crc32.IEEETable, p[:n])
		g.length += uint32(n)
	}
	if err == io.EOF {
		if cerr := g.finish(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// finish reads the 8-byte trailer and compares it against the running
// CRC32/length; a mismatch is recorded as a Warning, not returned as an
// error (spec ยง4.4).
func (g *GzipReader) finish() error {
	if g.done {
		return nil
	}
	g.done = true
	var trailer [8]byte
	if _, err := io.ReadFull(g.src, trailer[:]); err != nil {
		return fmt.Errorf("cpio: gzip: reading trailer: %w", err)
	}
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	wantLen := binary.LittleEndian.Uint32(trailer[4:8])
	if wantCRC != g.crc {
		g.Warning = fmt.Errorf("cpio: gzip: crc mismatch: header %08x, computed %08x", wantCRC, g.crc)
	} else if wantLen != g.length {
		g.Warning = fmt.Errorf("cpio: gzip: length mismatch: header %d, computed %d", wantLen, g.length)
	}
	return nil
}

// Close releases the underlying flate reader. It does not close the
// wrapped source.
func (g *GzipReader) Close() error { return g.flate.Close() }
