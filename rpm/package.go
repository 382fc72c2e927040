package rpm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/quay/zlog"

	"github.com/quay/rpmplan/cpio"
	"github.com/quay/rpmplan/digest"
	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/lead"
	"github.com/quay/rpmplan/pkg"
)

// Package is one decoded, digest-verified rpm package file: lead,
// signature header, main header, and enough bookkeeping to later verify
// (but not necessarily extract) its payload.
type Package struct {
	path          string
	Lead          *lead.Lead
	Signature     *header.Header
	Header        *header.Header
	Record        *pkg.Record
	payloadOffset int64
	compressor    string
	format        string
}

// Open reads and structurally decodes path: lead, signature header, main
// header. Unless [WithSkipDigests] is set, it also verifies the main
// header's sha1 and the package's md5 against the signature header's
// assertions, streaming rather than buffering the payload (spec §4.3).
//
// A structural or integrity failure aborts this package only; per spec §7
// the caller is responsible for continuing a batch past one bad file.
func Open(path string, opts ...Option) (*Package, error) {
	cfg := buildConfig(opts)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rpm: opening %s: %w", path, err)
	}
	defer f.Close()

	l, err := lead.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("rpm: %s: %w", path, err)
	}
	// lead.Decode buffered ahead of what it consumed; reopen the count from
	// a known-good offset instead of trying to unread through bufio.
	if _, err := f.Seek(lead.Size, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rpm: %s: seeking past lead: %w", path, err)
	}

	sigCounter := &countingReader{r: f}
	sig, err := header.Decode(sigCounter)
	if err != nil {
		return nil, fmt.Errorf("rpm: %s: decoding signature header: %w", path, err)
	}
	if pad := (8 - sigCounter.n%8) % 8; pad != 0 {
		if _, err := io.CopyN(io.Discard, f, pad); err != nil {
			return nil, fmt.Errorf("rpm: %s: skipping signature padding: %w", path, err)
		}
	}

	sha1Acc := digest.NewHeader()
	md5Acc := digest.NewPackage()
	tee := io.TeeReader(f, io.MultiWriter(sha1Acc, md5Acc))
	mainHdr, err := header.Decode(tee)
	if err != nil {
		return nil, fmt.Errorf("rpm: %s: decoding main header: %w", path, err)
	}

	off, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("rpm: %s: locating payload: %w", path, err)
	}

	if !cfg.skipDigests {
		if err := md5Acc.CopyPayload(f); err != nil {
			return nil, fmt.Errorf("rpm: %s: %w", path, err)
		}
		if v, ok, _ := sig.Get(header.TagSHA1Header); ok {
			if err := digest.VerifyHeader(sha1Acc, v.Str()); err != nil {
				return nil, fmt.Errorf("rpm: %s: %w: %w", path, ErrDigestMismatch, err)
			}
		}
		if v, ok, _ := sig.Get(header.TagSigMD5); ok {
			if err := digest.VerifyPackage(md5Acc, v.Bytes()); err != nil {
				return nil, fmt.Errorf("rpm: %s: %w: %w", path, ErrDigestMismatch, err)
			}
		}
	}

	rec := pkg.New(mainHdr, l.IsSource())
	p := &Package{
		path:          path,
		Lead:          l,
		Signature:     sig,
		Header:        mainHdr,
		Record:        rec,
		payloadOffset: off,
	}
	if v, ok, _ := mainHdr.Get(header.TagPayloadCompressor); ok {
		p.compressor = v.Str()
	}
	if v, ok, _ := mainHdr.Get(header.TagPayloadFormat); ok {
		p.format = v.Str()
	}
	switch p.format {
	case "", "cpio":
	default:
		return nil, fmt.Errorf("rpm: %s: unsupported payload format %q", path, p.format)
	}
	switch p.compressor {
	case "", "gzip", "bzip2":
	default:
		return nil, fmt.Errorf("rpm: %s: unsupported payload compressor %q", path, p.compressor)
	}

	return p, nil
}

// countingReader tracks how many bytes have been read through it, used to
// compute the signature header's 8-byte pad (spec §4.2).
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// payloadReader opens path fresh and seeks to the payload, decompressing
// it according to the main header's recorded compressor.
func (p *Package) payloadReader() (io.Reader, func() error, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, nil, fmt.Errorf("rpm: %s: %w", p.path, err)
	}
	if _, err := f.Seek(p.payloadOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("rpm: %s: seeking to payload: %w", p.path, err)
	}
	switch p.compressor {
	case "gzip", "":
		gz, err := cpio.NewGzipReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("rpm: %s: %w", p.path, err)
		}
		return gz, f.Close, nil
	case "bzip2":
		r, err := cpio.DecompressBzip2(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("rpm: %s: %w", p.path, err)
		}
		return r, f.Close, nil
	default:
		f.Close()
		return nil, nil, fmt.Errorf("rpm: %s: unsupported payload compressor %q", p.path, p.compressor)
	}
}

// VerifyPayload decompresses and walks the payload's cpio archive in
// verification mode, cross-checking every entry against the main header's
// recorded file metadata (spec §4.4). It never materializes file content
// to disk.
func (p *Package) VerifyPayload(ctx context.Context) error {
	r, closeFn, err := p.payloadReader()
	if err != nil {
		return err
	}
	defer closeFn()

	names := p.Record.Filenames()
	modes := p.Record.FileModes()
	sizes := p.Record.FileSizes()
	devices := p.Record.FileDevices()
	digests := p.Record.FileDigests()
	flags := p.Record.FileFlags()
	linkTos := p.Record.FileLinkTos()

	cr := cpio.NewReader(r, p.Lead.IsSource())
	seen := make([]bool, len(names))
	var errs []error
	for {
		rec, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("rpm: %s: reading payload: %w", p.path, err)
		}

		i := indexOf(names, rec.Name)
		if i < 0 {
			errs = append(errs, fmt.Errorf("rpm: %s: %s: present in payload, not in header", p.path, rec.Name))
			continue
		}
		seen[i] = true

		want := cpio.Expectation{Name: rec.Name}
		if i < len(modes) {
			want.Mode = uint32(modes[i])
		}
		if i < len(sizes) {
			want.Size = int64(sizes[i])
		}
		if i < len(devices) {
			want.Dev = int64(devices[i])
		}
		if i < len(digests) {
			want.MD5 = digests[i]
		}
		if i < len(flags) {
			want.Flags = flags[i]
		}
		if i < len(linkTos) {
			want.LinkTo = linkTos[i]
		}

		if want.Skip() {
			continue
		}

		var gotMD5, gotLinkTo string
		switch {
		case rec.IsRegular():
			h := digest.NewPackage()
			if _, err := io.Copy(h, cr); err != nil {
				return fmt.Errorf("rpm: %s: %s: %w", p.path, rec.Name, err)
			}
			gotMD5 = fmt.Sprintf("%x", h.Sum())
		case rec.IsSymlink():
			b, err := io.ReadAll(cr)
			if err != nil {
				return fmt.Errorf("rpm: %s: %s: %w", p.path, rec.Name, err)
			}
			gotLinkTo = string(b)
		}

		errs = append(errs, cpio.Verify(*rec, want, gotMD5, gotLinkTo)...)
	}

	for i, ok := range seen {
		if !ok && i < len(flags) && !(cpio.Expectation{Flags: flags[i]}).Skip() {
			errs = append(errs, fmt.Errorf("rpm: %s: %s: present in header, not in payload", p.path, names[i]))
		}
	}

	if len(errs) != 0 {
		zlog.Debug(ctx).Int("mismatches", len(errs)).Str("package", p.Record.NVRA()).Msg("payload verification found mismatches")
		return errors.Join(errs...)
	}
	return nil
}

func indexOf(ss []string, s string) int {
	for i, x := range ss {
		if x == s {
			return i
		}
	}
	return -1
}
