package header

// Kind is the on-disk type tag for a header entry.
//
// These values and their numbering are fixed by the RPM file format; unknown
// values must be rejected on decode and never produced on encode.
type Kind uint32

//go:generate go run golang.org/x/tools/cmd/stringer -type Kind

// Known entry kinds. TypeArgString and TypeGroup are synthetic: they never
// appear on disk, only as registry kinds at the API edge (spec ยง3). Encode
// does not resolve them to an on-disk kind: a Value of either kind is
// rejected by Encode with an error.
const (
	TypeNull        Kind = 0
	TypeChar        Kind = 1
	TypeInt8        Kind = 2
	TypeInt16       Kind = 3
	TypeInt32       Kind = 4
	TypeInt64       Kind = 5
	TypeString      Kind = 6
	TypeBin         Kind = 7
	TypeStringArray Kind = 8
	TypeI18nString  Kind = 9

	TypeArgString Kind = 12
	TypeGroup     Kind = 13

	// TypeMin and TypeMax bound the on-disk kinds accepted by Decode.
	TypeMin = TypeChar
	TypeMax = TypeI18nString

	// TypeRegionTag is the synthetic kind librpm uses for a region trailer
	// entry embedded in the BIN store bytes; it never appears as an
	// EntryInfo.Type in the index array itself.
	TypeRegionTag Kind = TypeBin
)

// Alignment reports the store-byte alignment this kind's values must be
// padded to before being written (spec ยง4.2).
func (k Kind) Alignment() int {
	switch k {
	case TypeInt16:
		return 2
	case TypeInt32:
		return 4
	case TypeInt64:
		return 8
	default:
		return 1
	}
}

// Class groups kinds that are interchangeable for type-checking purposes
// (spec ยง4.2's region typecheck treats a legacy-mistyped String/I18nString
// pair as compatible).
func (k Kind) class() Kind {
	if k == TypeI18nString {
		return TypeString
	}
	return k
}
