package cpio

import "syscall"

// mkfifo and mknod are thin syscall wrappers; RPM packages and the systems
// that install them are a Linux-only concern, matching the teacher's own
// lack of any other-GOOS build tags under internal/rpm.

func mkfifo(path string, mode uint32) error {
	return syscall.Mkfifo(path, mode&0o7777)
}

func mknod(path string, mode uint32, rdev int64) error {
	return syscall.Mknod(path, mode, int(rdev))
}
