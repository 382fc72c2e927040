// Package rpmver implements RPM's locale-independent version comparison.
package rpmver

import "strings"

// EVR is an epoch-version-release triple identifying a specific package
// instance.
type EVR struct {
	Epoch   string
	Version string
	Release string
}

// String formats the triple as "[epoch:]version-release", omitting the
// epoch when it is the default "0".
func (e EVR) String() string {
	var b strings.Builder
	if e.Epoch != "" && e.Epoch != "0" {
		b.WriteString(e.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(e.Version)
	if e.Release != "" {
		b.WriteByte('-')
		b.WriteString(e.Release)
	}
	return b.String()
}

// Split parses an "[epoch:]version[-release]" string into an EVR.
//
// The epoch defaults to "0" and the release defaults to "" when absent,
// matching oldpyrpm.py's evrSplit.
func Split(s string) EVR {
	e := EVR{Epoch: "0"}
	i := strings.IndexByte(s, ':')
	if i != -1 {
		e.Epoch = s[:i]
	}
	rest := s[i+1:]
	if j := strings.IndexByte(rest, '-'); j != -1 {
		e.Version = rest[:j]
		e.Release = rest[j+1:]
	} else {
		e.Version = rest
	}
	return e
}

// Compare compares two EVR tuples.
//
// Epoch is compared first, then version, then release — except that if
// either release is empty, release is ignored entirely for that
// comparison (spec ยง4.1).
func Compare(a, b EVR) int {
	if c := stringCompare(epochOrDefault(a.Epoch), epochOrDefault(b.Epoch)); c != 0 {
		return c
	}
	if c := stringCompare(a.Version, b.Version); c != 0 {
		return c
	}
	if a.Release == "" || b.Release == "" {
		return 0
	}
	return stringCompare(a.Release, b.Release)
}

func epochOrDefault(e string) string {
	if e == "" {
		return "0"
	}
	return e
}

// Sense flags used by Intersect, matching rpm's own RPMSENSE_LESS/
// RPMSENSE_GREATER/RPMSENSE_EQUAL bit positions so values read directly
// from a header's *flags tags (header.TagProvideFlags and friends) compare
// correctly against a synthesized flag like pkg.Record's self-provide.
// A requirement or provide must carry at least one of these three.
const (
	Less    = 1 << 1 // version must be strictly less than the reference
	Greater = 1 << 2 // version must be strictly greater than the reference
	Equal   = 1 << 3 // version must equal the reference
)

// Intersect reports whether the ranges (flag1, evr1) and (flag2, evr2)
// overlap, per spec ยง4.1.
func Intersect(flag1 int, evr1 EVR, flag2 int, evr2 EVR) bool {
	switch sense := Compare(evr1, evr2); {
	case sense < 0:
		return flag1&Greater != 0 || flag2&Less != 0
	case sense > 0:
		return flag1&Less != 0 || flag2&Greater != 0
	default:
		return (flag1&Equal != 0 && flag2&Equal != 0) ||
			(flag1&Less != 0 && flag2&Less != 0) ||
			(flag1&Greater != 0 && flag2&Greater != 0)
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isAlnum(b byte) bool { return isDigit(b) || isAlpha(b) }

// stringCompare is a port of rpm's rpmvercmp as it stood before the
// tilde/caret extensions: spec ยง4.1 and oldpyrpm.py's stringCompare both
// describe exactly this algorithm, with no special handling of "~" or "^".
func stringCompare(a, b string) int {
	if a == b {
		return 0
	}
	var i1, i2 int
	for i1 < len(a) && i2 < len(b) {
		for i1 < len(a) && !isAlnum(a[i1]) {
			i1++
		}
		for i2 < len(b) && !isAlnum(b[i2]) {
			i2++
		}

		j1, j2 := i1, i2
		var isNum bool
		if j1 < len(a) && isDigit(a[j1]) {
			isNum = true
			for j1 < len(a) && isDigit(a[j1]) {
				j1++
			}
			for j2 < len(b) && isDigit(b[j2]) {
				j2++
			}
		} else {
			for j1 < len(a) && isAlpha(a[j1]) {
				j1++
			}
			for j2 < len(b) && isAlpha(b[j2]) {
				j2++
			}
		}

		switch {
		case j1 == i1:
			// a has no run left (only separators remained after i1): the
			// side without a run loses.
			return -1
		case j2 == i2:
			if isNum {
				return 1
			}
			return -1
		}

		seg1, seg2 := a[i1:j1], b[i2:j2]
		if isNum {
			seg1 = strings.TrimLeft(seg1, "0")
			seg2 = strings.TrimLeft(seg2, "0")
			if len(seg1) != len(seg2) {
				if len(seg1) > len(seg2) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(seg1, seg2); c != 0 {
			return c
		}
		i1, i2 = j1, j2
	}
	switch {
	case i1 == len(a) && i2 == len(b):
		return 0
	case i1 == len(a):
		return -1
	default:
		return 1
	}
}
