package rpm

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/quay/zlog"

	"github.com/quay/rpmplan/header"
)

func hex8(v int64) string { return fmt.Sprintf("%08x", v) }

// buildCpioEntry renders one newc-format cpio record, matching the layout
// rpmplan/cpio parses.
func buildCpioEntry(name string, data []byte) []byte {
	const headerSize = 110
	var buf bytes.Buffer
	namesize := int64(len(name) + 1)
	fields := []int64{1, 0o100644, 0, 0, 1, 0, int64(len(data)), 0, 0, 0, 0, namesize, 0}
	buf.WriteString("070701")
	for _, f := range fields {
		buf.WriteString(hex8(f))
	}
	nameBuf := append([]byte(name), 0)
	pad := (4 - ((len(nameBuf) + headerSize) % 4)) % 4
	buf.Write(nameBuf)
	buf.Write(make([]byte, pad))
	buf.Write(data)
	dpad := (4 - (len(data) % 4)) % 4
	buf.Write(make([]byte, dpad))
	return buf.Bytes()
}

func buildCpioTrailer() []byte { return buildCpioEntry("TRAILER!!!", nil) }

// buildLead renders a 96-byte lead for a binary, linux, rpm4 package.
func buildLead(name string) []byte {
	raw := make([]byte, 96)
	copy(raw[0:4], []byte{0xed, 0xab, 0xee, 0xdb})
	raw[4] = 4 // major
	raw[5] = 0 // minor
	raw[6], raw[7] = 0, 0
	raw[8], raw[9] = 0, 1 // arch
	copy(raw[10:76], name)
	raw[76], raw[77] = 0, 1 // os: linux
	raw[78], raw[79] = 0, 5 // sigtype: header
	return raw
}

// buildRPM assembles a complete synthetic rpm file's bytes: lead, signature
// header (with real sha1/md5 asserted against the main header + payload),
// main header, and a gzip-compressed single-file cpio payload.
func buildRPM(t *testing.T) []byte {
	t.Helper()

	var payload bytes.Buffer
	fileData := []byte("#!/bin/sh\necho hi\n")
	payload.Write(buildCpioEntry("./usr/bin/hi", fileData))
	payload.Write(buildCpioTrailer())

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	if _, err := w.Write(payload.Bytes()); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	fileMD5 := fmt.Sprintf("%x", md5.Sum(fileData))

	mainEnc, err := header.Encode(map[header.Tag]header.Value{
		header.TagName:              header.NewString("hi"),
		header.TagVersion:           header.NewString("1.0"),
		header.TagRelease:           header.NewString("1"),
		header.TagArch:              header.NewString("x86_64"),
		header.TagPayloadFormat:     header.NewString("cpio"),
		header.TagPayloadCompressor: header.NewString("gzip"),
		header.TagBasenames:         header.NewStringArray(header.TypeStringArray, []string{"hi"}),
		header.TagDirnames:          header.NewStringArray(header.TypeStringArray, []string{"/usr/bin/"}),
		header.TagDirindexes:        header.NewInt32Signed([]int32{0}),
		header.TagFileModes:         header.NewInt32Unsigned([]uint32{0o100644}),
		header.TagFileSizes:         header.NewInt32Signed([]int32{int32(len(fileData))}),
		header.TagFileDigests:       header.NewStringArray(header.TypeStringArray, []string{fileMD5}),
		header.TagFileDevices:       header.NewInt32Signed([]int32{0}),
		header.TagFileFlags:         header.NewInt32Signed([]int32{0}),
	}, header.TagHeaderImmutable, nil)
	if err != nil {
		t.Fatalf("encoding main header: %v", err)
	}

	sha1sum := fmt.Sprintf("%x", sha1.Sum(mainEnc))
	h := md5.New()
	h.Write(mainEnc)
	h.Write(gz.Bytes())
	md5sum := h.Sum(nil)

	sigEnc, err := header.Encode(map[header.Tag]header.Value{
		header.TagSHA1Header: header.NewString(sha1sum),
		header.TagSigMD5:     header.NewBin(header.TypeBin, md5sum),
	}, header.TagHeaderSignatures, nil)
	if err != nil {
		t.Fatalf("encoding signature header: %v", err)
	}
	if pad := (8 - len(sigEnc)%8) % 8; pad != 0 {
		sigEnc = append(sigEnc, make([]byte, pad)...)
	}

	var out bytes.Buffer
	out.Write(buildLead("hi-1.0-1.x86_64"))
	out.Write(sigEnc)
	out.Write(mainEnc)
	out.Write(gz.Bytes())
	return out.Bytes()
}

func writeTempRPM(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "hi-1.0-1.x86_64.rpm")
	if err := os.WriteFile(p, buildRPM(t), 0o644); err != nil {
		t.Fatalf("writing rpm: %v", err)
	}
	return p
}

func TestOpenDecodesAndVerifiesDigests(t *testing.T) {
	p, err := Open(writeTempRPM(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := p.Record.Name(), "hi"; got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
	if p.Record.NVRA() != "hi-1.0-1.x86_64" {
		t.Errorf("NVRA = %q", p.Record.NVRA())
	}
}

func TestOpenDetectsDigestMismatch(t *testing.T) {
	path := writeTempRPM(t)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	raw[len(raw)-1] ^= 0xff // corrupt the last payload byte
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("rewriting: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("Open: want digest mismatch error, got nil")
	}
}

func TestOpenWithSkipDigestsIgnoresMismatch(t *testing.T) {
	path := writeTempRPM(t)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("rewriting: %v", err)
	}

	if _, err := Open(path, WithSkipDigests(true)); err != nil {
		t.Fatalf("Open with skipped digests: %v", err)
	}
}

func TestVerifyPayloadRoundTrips(t *testing.T) {
	p, err := Open(writeTempRPM(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.VerifyPayload(zlog.Test(context.Background(), t)); err != nil {
		t.Fatalf("VerifyPayload: %v", err)
	}
}
