package transaction

import (
	"bytes"
	"context"
	"testing"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/pkg"
	"github.com/quay/rpmplan/resolver"
)

func buildPkg(t *testing.T, name string, requires []string, provides string) *pkg.Record {
	t.Helper()
	tags := map[header.Tag]header.Value{
		header.TagName:    header.NewString(name),
		header.TagVersion: header.NewString("1.0"),
		header.TagRelease: header.NewString("1"),
	}
	if len(requires) > 0 {
		flags := make([]int32, len(requires))
		versions := make([]string, len(requires))
		for i := range requires {
			flags[i] = 0
			versions[i] = ""
		}
		tags[header.TagRequireName] = header.NewStringArray(header.TypeStringArray, requires)
		tags[header.TagRequireFlags] = header.NewInt32Signed(flags)
		tags[header.TagRequireVersion] = header.NewStringArray(header.TypeStringArray, versions)
	}
	enc, err := header.Encode(tags, header.TagHeaderImmutable, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := header.Decode(bytes.NewReader(enc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return pkg.New(h, false)
}

func indexOfPkg(steps []Step, r *pkg.Record) int {
	for i, s := range steps {
		if s.Record == r {
			return i
		}
	}
	return -1
}

func TestOrderRespectsLinearDependency(t *testing.T) {
	a := buildPkg(t, "a", []string{"b"}, "")
	b := buildPkg(t, "b", nil, "")
	res := resolver.New([]*pkg.Record{a, b}, false)
	o := NewOrderer([]*pkg.Record{a, b}, nil, nil, nil, res)

	steps, err := o.Order(context.Background())
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	ia, ib := indexOfPkg(steps, a), indexOfPkg(steps, b)
	if ia == -1 || ib == -1 {
		t.Fatalf("missing package in order: %v", steps)
	}
	if ib > ia {
		t.Errorf("b (required by a) ordered after a: %v", steps)
	}
	for _, s := range steps {
		if s.Op != OpInstall {
			t.Errorf("step %+v: want OpInstall", s)
		}
	}
}

func TestOrderBreaksCycle(t *testing.T) {
	a := buildPkg(t, "a", []string{"b"}, "")
	b := buildPkg(t, "b", []string{"a"}, "")
	res := resolver.New([]*pkg.Record{a, b}, false)
	o := NewOrderer([]*pkg.Record{a, b}, nil, nil, nil, res)

	steps, err := o.Order(context.Background())
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}
}

func TestOrderErasesReverseOfInstallOrder(t *testing.T) {
	a := buildPkg(t, "a", []string{"b"}, "")
	b := buildPkg(t, "b", nil, "")
	res := resolver.New([]*pkg.Record{a, b}, false)
	o := NewOrderer(nil, nil, nil, []*pkg.Record{a, b}, res)

	steps, err := o.Order(context.Background())
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	for _, s := range steps {
		if s.Op != OpErase {
			t.Errorf("step %+v: want OpErase", s)
		}
	}
	ia, ib := indexOfPkg(steps, a), indexOfPkg(steps, b)
	if ia == -1 || ib == -1 {
		t.Fatalf("missing package in order: %v", steps)
	}
	if ia > ib {
		t.Errorf("a (which requires b) erased after b: %v", steps)
	}
}

func TestOrderInterleavesObsoletes(t *testing.T) {
	old := buildPkg(t, "old", nil, "")
	newPkg := buildPkg(t, "new", nil, "")
	res := resolver.New([]*pkg.Record{old, newPkg}, false)
	o := NewOrderer([]*pkg.Record{newPkg}, nil, map[*pkg.Record][]*pkg.Record{newPkg: {old}}, nil, res)

	steps, err := o.Order(context.Background())
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2: %v", len(steps), steps)
	}
	if steps[0].Record != newPkg || steps[0].Op != OpInstall {
		t.Errorf("steps[0] = %+v, want install new", steps[0])
	}
	if steps[1].Record != old || steps[1].Op != OpErase {
		t.Errorf("steps[1] = %+v, want erase old", steps[1])
	}
}

func TestOperationFlagClassifiesRPMLibAsHard(t *testing.T) {
	if got := operationFlag(senseRPMLib, OpInstall); got != Hard {
		t.Errorf("operationFlag(rpmlib) = %v, want Hard", got)
	}
	if got := operationFlag(0, OpInstall); got != Soft {
		t.Errorf("operationFlag(plain) = %v, want Soft", got)
	}
}

func TestHardnessString(t *testing.T) {
	if got, want := (Virtual | Hard).String(), "virtual|hard"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
