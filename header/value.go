package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Value is a decoded tag value: a tagged sum over the on-disk kinds plus the
// two synthetic API-edge kinds (spec ยง3).
//
// Exactly one accessor is meaningful for a given Kind(); callers should type
// switch on Kind() before reading. Int32 values carry a Signed bit because
// the same on-disk RPM_INT32 representation is reused for both signed and
// unsigned tags (spec ยง4.2, "Signed vs unsigned 32-bit tags").
type Value struct {
	kind   Kind
	signed bool // only meaningful when kind == TypeInt32

	bin      []byte
	i8       []int8
	i16      []int16
	i32      []int32
	u32      []uint32
	i64      []uint64
	str      string
	strArray []string
}

// Kind reports the storage kind of v.
func (v Value) Kind() Kind { return v.kind }

// Signed reports whether a TypeInt32 value should be interpreted and
// re-emitted as signed. Meaningless for any other Kind.
func (v Value) Signed() bool { return v.signed }

// Count is the on-disk "count" field: the number of elements for vector
// kinds, and always 1 for String.
func (v Value) Count() int {
	switch v.kind {
	case TypeChar, TypeBin:
		return len(v.bin)
	case TypeInt8:
		return len(v.i8)
	case TypeInt16:
		return len(v.i16)
	case TypeInt32:
		if v.signed {
			return len(v.i32)
		}
		return len(v.u32)
	case TypeInt64:
		return len(v.i64)
	case TypeString:
		return 1
	case TypeStringArray, TypeI18nString:
		return len(v.strArray)
	default:
		return 0
	}
}

// Bytes returns the raw byte slice for TypeChar/TypeBin values.
func (v Value) Bytes() []byte { return v.bin }

// Int8 returns the element slice for TypeInt8 values.
func (v Value) Int8() []int8 { return v.i8 }

// Int16 returns the element slice for TypeInt16 values.
func (v Value) Int16() []int16 { return v.i16 }

// Int32 returns the signed element slice for TypeInt32 values where
// Signed() is true.
func (v Value) Int32() []int32 { return v.i32 }

// Uint32 returns the unsigned element slice for TypeInt32 values where
// Signed() is false.
func (v Value) Uint32() []uint32 { return v.u32 }

// Int64 returns the element slice for TypeInt64 values.
func (v Value) Int64() []uint64 { return v.i64 }

// Str returns the string for TypeString values.
func (v Value) Str() string { return v.str }

// StrArray returns the element slice for TypeStringArray/TypeI18nString
// values.
func (v Value) StrArray() []string { return v.strArray }

// First returns the one string for TypeStringArray/TypeI18nString values
// that carry a single element, or "" if none.
func (v Value) First() string {
	if len(v.strArray) == 0 {
		return ""
	}
	return v.strArray[0]
}

// NewBin builds a TypeChar or TypeBin value. kind==TypeChar selects the
// byte-for-byte (no length-prefix alignment concerns) variant.
func NewBin(kind Kind, b []byte) Value { return Value{kind: kind, bin: b} }

// NewInt8 builds a TypeInt8 value.
func NewInt8(v []int8) Value { return Value{kind: TypeInt8, i8: v} }

// NewInt16 builds a TypeInt16 value.
func NewInt16(v []int16) Value { return Value{kind: TypeInt16, i16: v} }

// NewInt32Signed and NewInt32Unsigned build a TypeInt32 value, signed or
// unsigned; the caller picks the one matching the tag (see IsSigned32).
func NewInt32Signed(v []int32) Value  { return Value{kind: TypeInt32, signed: true, i32: v} }
func NewInt32Unsigned(v []uint32) Value { return Value{kind: TypeInt32, signed: false, u32: v} }

// NewInt64 builds a TypeInt64 value.
func NewInt64(v []uint64) Value { return Value{kind: TypeInt64, i64: v} }

// NewString builds a TypeString value.
func NewString(s string) Value { return Value{kind: TypeString, str: s} }

// NewStringArray builds a TypeStringArray or TypeI18nString value.
func NewStringArray(kind Kind, s []string) Value { return Value{kind: kind, strArray: s} }

// encode serializes v's store bytes (without alignment padding) and returns
// them with the entry's count; the caller applies Alignment()-based padding
// to the store before writing them.
func (v Value) encode() ([]byte, uint32, error) {
	switch v.kind {
	case TypeChar, TypeBin:
		return v.bin, uint32(len(v.bin)), nil
	case TypeInt8:
		b := make([]byte, len(v.i8))
		for i, x := range v.i8 {
			b[i] = byte(x)
		}
		return b, uint32(len(v.i8)), nil
	case TypeInt16:
		b := make([]byte, 2*len(v.i16))
		for i, x := range v.i16 {
			binary.BigEndian.PutUint16(b[2*i:], uint16(x))
		}
		return b, uint32(len(v.i16)), nil
	case TypeInt32:
		if v.signed {
			b := make([]byte, 4*len(v.i32))
			for i, x := range v.i32 {
				binary.BigEndian.PutUint32(b[4*i:], uint32(x))
			}
			return b, uint32(len(v.i32)), nil
		}
		b := make([]byte, 4*len(v.u32))
		for i, x := range v.u32 {
			binary.BigEndian.PutUint32(b[4*i:], x)
		}
		return b, uint32(len(v.u32)), nil
	case TypeInt64:
		b := make([]byte, 8*len(v.i64))
		for i, x := range v.i64 {
			binary.BigEndian.PutUint64(b[8*i:], x)
		}
		return b, uint32(len(v.i64)), nil
	case TypeString:
		return append([]byte(v.str), 0), 1, nil
	case TypeStringArray, TypeI18nString:
		var buf bytes.Buffer
		for _, s := range v.strArray {
			buf.WriteString(s)
			buf.WriteByte(0)
		}
		return buf.Bytes(), uint32(len(v.strArray)), nil
	default:
		return nil, 0, fmt.Errorf("header: cannot encode kind %v", v.kind)
	}
}
