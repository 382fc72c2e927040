package cpio

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
)

// DecompressBzip2 buffers the entire remaining payload and decompresses it
// in one shot, per spec ยง4.4 ("streaming bzip2 is not required"). No
// example in the reference corpus imports a third-party bzip2 decoder (the
// ecosystem's options are all encoders or unmaintained); stdlib
// compress/bzip2 is itself what the corpus would reach for here, since
// decompression-only is all this ever needs.
func DecompressBzip2(r io.Reader) (io.Reader, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, bzip2.NewReader(r)); err != nil {
		return nil, fmt.Errorf("cpio: bzip2: decompressing: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
