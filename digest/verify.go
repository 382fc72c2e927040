package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMismatch is returned by Verify* when a computed digest disagrees with
// the signature header's recorded value.
var ErrMismatch = errors.New("digest: mismatch")

// VerifyHeader compares got (the hex digest accumulated from NewHeader)
// against want, the signature header's sha1header tag value.
func VerifyHeader(got *Header, want string) error {
	if want == "" {
		return nil // signature header carries no sha1header tag: nothing to check
	}
	if sum := got.Sum(); sum != want {
		return fmt.Errorf("%w: header sha1 %s, want %s", ErrMismatch, sum, want)
	}
	return nil
}

// VerifyPackage compares got (the raw digest accumulated from NewPackage)
// against want, the signature header's md5 tag value (16 raw bytes).
func VerifyPackage(got *Package, want []byte) error {
	if len(want) == 0 {
		return nil // signature header carries no md5 tag: nothing to check
	}
	sum := got.Sum()
	if !equalBytes(sum, want) {
		return fmt.Errorf("%w: package md5 %s, want %s", ErrMismatch, hex.EncodeToString(sum), hex.EncodeToString(want))
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
