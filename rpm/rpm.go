// Package rpm assembles the lower-level codecs (lead, header, digest,
// cpio, installdb) into the module's entry points: reading a single
// package file, reading an installed package database, and planning a
// transaction. The codecs lead, header, digest, and cpio take no
// [context.Context] and do not log, so they stay usable from a cgo-free,
// non-logging caller.
package rpm

import "errors"

// ErrDigestMismatch is returned (wrapped) when a package file's computed
// sha1 or md5 disagrees with the value its signature header asserts (spec
// §4.3, an Integrity error per spec §7).
var ErrDigestMismatch = errors.New("rpm: digest mismatch")
