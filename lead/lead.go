// Package lead decodes the 96-byte fixed record at the start of every rpm
// package file: the oldest, most rigid part of the format, predating the
// tag/index/store header entirely (spec §6).
package lead

import (
	"encoding/binary"
	"fmt"
	"io"
)

const Size = 96

var magic = [4]byte{0xed, 0xab, 0xee, 0xdb}

// Type distinguishes a binary package from a source package. The cpio
// filename-normalization rule and [pkg.Record.Arch]'s "src" override both key
// off this.
type Type uint16

const (
	TypeBinary Type = 0
	TypeSource Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeBinary:
		return "binary"
	case TypeSource:
		return "source"
	default:
		return fmt.Sprintf("Type(%d)", uint16(t))
	}
}

// OS enumerates the values rpm has ever written to the lead's os field.
// Linux (1) is the only one seen in the wild for decades; the others are
// historical (rpm once targeted AIX, Irix, and a short-lived "Linux/ELF"
// distinction).
const (
	OSLinux     = 1
	OSIrix      = 21 // not a typo for 2: rpm's os table really skips straight to 21
	OSOther     = 255
	OSOtherWide = 256
)

// SigType is the only signature-header type rpm has ever shipped: the
// tag/index/store header form. Earlier experimental values (0, 1, 2) are
// rejected.
const SigTypeHeader = 5

// Lead is the decoded 96-byte lead record.
type Lead struct {
	Major, Minor byte
	Type         Type
	Arch         uint16
	Name         string
	OS           uint16
	SigType      uint16
}

// Decode reads and validates a 96-byte lead from r.
func Decode(r io.Reader) (*Lead, error) {
	var raw [Size]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("lead: reading record: %w", err)
	}

	if raw[0] != magic[0] || raw[1] != magic[1] || raw[2] != magic[2] || raw[3] != magic[3] {
		return nil, fmt.Errorf("lead: bad magic: %x", raw[:4])
	}

	l := &Lead{
		Major:   raw[4],
		Minor:   raw[5],
		Type:    Type(binary.BigEndian.Uint16(raw[6:8])),
		Arch:    binary.BigEndian.Uint16(raw[8:10]),
		Name:    splitCString(raw[10:76]),
		OS:      binary.BigEndian.Uint16(raw[76:78]),
		SigType: binary.BigEndian.Uint16(raw[78:80]),
	}
	// raw[80:96] is reserved, always zero in practice; not validated, since
	// rpm itself never checks it.

	switch l.Major {
	case 3, 4:
	default:
		return nil, fmt.Errorf("lead: unsupported major version %d", l.Major)
	}
	if l.Minor != 0 {
		return nil, fmt.Errorf("lead: unsupported minor version %d", l.Minor)
	}
	switch l.Type {
	case TypeBinary, TypeSource:
	default:
		return nil, fmt.Errorf("lead: unknown package type %d", l.Type)
	}
	switch l.OS {
	case OSLinux, OSIrix, OSOther, OSOtherWide:
	default:
		return nil, fmt.Errorf("lead: unknown os %d", l.OS)
	}
	if l.SigType != SigTypeHeader {
		return nil, fmt.Errorf("lead: unsupported signature type %d", l.SigType)
	}

	return l, nil
}

// IsSource reports whether the lead marks its package as a source rpm.
func (l *Lead) IsSource() bool { return l.Type == TypeSource }

func splitCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
