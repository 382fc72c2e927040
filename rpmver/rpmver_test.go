package rpmver

import (
	"fmt"
	"testing"

	rpmversion "github.com/knqyf263/go-rpm-version"
)

func TestStringCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.01", "1.000001", 0},
		{"1.10", "1.9", 1},
		{"1.0a", "1.0", 1},
		{"5.5p1", "5.5p2", -1},
		{"5.5p10", "5.5p1", 1},
		{"10xyz", "10.1xyz", -1},
		{"xyz10", "xyz10.1", -1},
		{"xyz.4", "8", -1},
		{"", "0", -1},
		{"foo", "", 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_vs_%s", tt.a, tt.b), func(t *testing.T) {
			if got := stringCompare(tt.a, tt.b); got != tt.want {
				t.Errorf("stringCompare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// Antisymmetry.
			if got := stringCompare(tt.b, tt.a); got != -tt.want {
				t.Errorf("stringCompare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestEVRCompare(t *testing.T) {
	tests := []struct {
		a, b EVR
		want int
	}{
		{EVR{"0", "1.01", "1"}, EVR{"0", "1.000001", "1"}, 0},
		{EVR{"0", "1.10", "1"}, EVR{"0", "1.9", "1"}, 1},
		{EVR{"1", "1", "1"}, EVR{"0", "99", "99"}, 1},
		{EVR{"0", "1.0", "1"}, EVR{"0", "1.0", ""}, 0},
		{EVR{"0", "1.0", ""}, EVR{"0", "2.0", "1"}, -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareSelfEqual(t *testing.T) {
	for _, s := range []EVR{
		{"0", "1.2.3", "4"},
		{"2", "a.b.c", "el8"},
		{"0", "1.0", ""},
	} {
		if c := Compare(s, s); c != 0 {
			t.Errorf("Compare(%v, %v) = %d, want 0", s, s, c)
		}
	}
}

func TestIntersect(t *testing.T) {
	v1 := Split("0:2-1")
	v2 := Split("0:1-0")
	if !Intersect(Less|Equal, v1, Greater, v2) {
		t.Error("expected intersection")
	}
	v3 := Split("0:2-1")
	if Intersect(Less, v1, Greater|Equal, v3) {
		t.Error("expected no intersection")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want EVR
	}{
		{"1:1.2-3", EVR{"1", "1.2", "3"}},
		{"1.2-3", EVR{"0", "1.2", "3"}},
		{"1.2", EVR{"0", "1.2", ""}},
	}
	for _, tt := range tests {
		if got := Split(tt.in); got != tt.want {
			t.Errorf("Split(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

// TestAgreesWithGoRpmVersion runs a table of EVR pairs through both the
// bespoke comparator here and github.com/knqyf263/go-rpm-version, the
// ecosystem library the teacher itself depends on for a different matcher
// (rhel/matcher.go). The two must agree on ordering direction for
// unambiguous cases; this package's comparator remains the one actually
// used by the reader/resolver.
func TestAgreesWithGoRpmVersion(t *testing.T) {
	pairs := [][2]string{
		{"1.0-1", "1.0-2"},
		{"1.0-1", "2.0-1"},
		{"1:1.0-1", "2.0-1"},
		{"1.0.1-1", "1.0.10-1"},
		{"2.3.4-1", "2.3.4-1"},
	}
	for _, p := range pairs {
		a, b := Split(p[0]), Split(p[1])
		got := Compare(a, b)

		va, vb := rpmversion.NewVersion(p[0]), rpmversion.NewVersion(p[1])
		want := va.Compare(vb)

		gotSign, wantSign := sign(got), sign(want)
		if gotSign != wantSign {
			t.Errorf("Compare(%q, %q) disagreed with go-rpm-version: got %d want %d", p[0], p[1], gotSign, wantSign)
		}
	}
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	default:
		return 0
	}
}
