package cpio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Extractor materializes cpio entries onto disk, per spec ยง4.4: parent
// directories are created on demand, regular file data lands via a
// randomly-named O_EXCL sibling that is renamed into place, and the mode
// (when Privileged) and mtime are set before the rename. File ownership is
// not changed.
type Extractor struct {
	Root       string
	Privileged bool
}

// Extract writes one cpio entry under e.Root. data is read fully for
// regular files and symlinks; it is ignored for directories, FIFOs, and
// device nodes. UNIX-domain sockets are rejected outright.
func (e *Extractor) Extract(rec *FileRecord, data io.Reader) error {
	if rec.IsSocket() {
		return fmt.Errorf("cpio: %s: refusing to extract a unix socket", rec.Name)
	}
	dst := filepath.Join(e.Root, rec.Name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("cpio: %s: creating parent directories: %w", rec.Name, err)
	}

	switch {
	case rec.Mode&typeMask == typeDir:
		return os.MkdirAll(dst, os.FileMode(rec.Mode&0o7777))
	case rec.IsSymlink():
		target, err := io.ReadAll(data)
		if err != nil {
			return fmt.Errorf("cpio: %s: reading link target: %w", rec.Name, err)
		}
		tmp := siblingName(dst)
		if err := os.Symlink(string(target), tmp); err != nil {
			return fmt.Errorf("cpio: %s: creating symlink: %w", rec.Name, err)
		}
		return finalize(tmp, dst, rec, e.Privileged)
	case rec.Mode&typeMask == typeFIFO:
		return e.extractSpecial(dst, rec, func(tmp string) error {
			return mkfifo(tmp, rec.Mode)
		})
	case rec.Mode&typeMask == typeChar || rec.Mode&typeMask == typeBlock:
		return e.extractSpecial(dst, rec, func(tmp string) error {
			return mknod(tmp, rec.Mode, rec.RDev)
		})
	default:
		return e.extractRegular(dst, rec, data)
	}
}

func (e *Extractor) extractRegular(dst string, rec *FileRecord, data io.Reader) error {
	tmp := siblingName(dst)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(rec.Mode&0o7777))
	if err != nil {
		return fmt.Errorf("cpio: %s: creating temp file: %w", rec.Name, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cpio: %s: writing data: %w", rec.Name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cpio: %s: closing temp file: %w", rec.Name, err)
	}
	return finalize(tmp, dst, rec, e.Privileged)
}

func (e *Extractor) extractSpecial(dst string, rec *FileRecord, create func(tmp string) error) error {
	tmp := siblingName(dst)
	if err := create(tmp); err != nil {
		return fmt.Errorf("cpio: %s: creating node: %w", rec.Name, err)
	}
	return finalize(tmp, dst, rec, e.Privileged)
}

// LinkOrCopy realizes a hardlink cluster member by linking to src, falling
// back to a full copy when the filesystem refuses the link with EXDEV or
// EPERM (spec ยง4.4).
func LinkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("cpio: %s: creating parent directories: %w", dst, err)
	}
	err := os.Link(src, dst)
	if err == nil {
		return nil
	}
	if !errIs(err, syscall.EXDEV) && !errIs(err, syscall.EPERM) {
		return fmt.Errorf("cpio: linking %s to %s: %w", dst, src, err)
	}
	s, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cpio: %s: opening hardlink source: %w", dst, err)
	}
	defer s.Close()
	tmp := siblingName(dst)
	d, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("cpio: %s: creating hardlink fallback copy: %w", dst, err)
	}
	if _, err := io.Copy(d, s); err != nil {
		d.Close()
		os.Remove(tmp)
		return fmt.Errorf("cpio: %s: copying hardlink fallback: %w", dst, err)
	}
	d.Close()
	return os.Rename(tmp, dst)
}

func errIs(err error, target syscall.Errno) bool {
	for {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
}

func siblingName(dst string) string {
	return dst + "." + uuid.NewString() + ".tmp"
}

func finalize(tmp, dst string, rec *FileRecord, privileged bool) error {
	if privileged {
		// Ownership fixup requires a real uid/gid, which the header's
		// fileusername/filegroupname tags resolve to at the caller's
		// level; cpio itself only knows the numeric mode.
		_ = os.Chmod(tmp, os.FileMode(rec.Mode&0o7777))
	}
	mtime := time.Unix(rec.MTime, 0)
	if err := os.Chtimes(tmp, mtime, mtime); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cpio: %s: setting mtime: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cpio: %s: renaming into place: %w", dst, err)
	}
	return nil
}
