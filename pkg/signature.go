package pkg

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/openpgp/packet"
)

// SignatureKeyID extracts the issuer key id from a PGP signature packet,
// the way a caller would read the signature header's "pgp" or "gpg" tag
// without attempting cryptographic verification (spec ยง1's stated
// out-of-scope for PGP trust decisions; only the metadata is surfaced,
// matching internal/rpm/info.go's Hint).
func SignatureKeyID(sig []byte) (string, error) {
	if len(sig) == 0 {
		return "", nil
	}
	pr := packet.NewReader(bytes.NewReader(sig))
	for {
		p, err := pr.Next()
		if err != nil {
			break
		}
		switch p := p.(type) {
		case *packet.SignatureV3:
			if p.SigType != 0 {
				continue
			}
			return fmt.Sprintf("%016x", p.IssuerKeyId), nil
		case *packet.Signature:
			if p.SigType != 0 || p.IssuerKeyId == nil {
				continue
			}
			return fmt.Sprintf("%016x", *p.IssuerKeyId), nil
		}
	}
	return "", nil
}
