package resolver

import (
	"bytes"
	"testing"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/pkg"
	"github.com/quay/rpmplan/rpmver"
)

func build(t *testing.T, tags map[header.Tag]header.Value) *header.Header {
	t.Helper()
	enc, err := header.Encode(tags, header.TagHeaderImmutable, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := header.Decode(bytes.NewReader(enc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return h
}

func providerPkg(t *testing.T, name, version string) *pkg.Record {
	h := build(t, map[header.Tag]header.Value{
		header.TagName:    header.NewString(name),
		header.TagVersion: header.NewString(version),
		header.TagRelease: header.NewString("1"),
	})
	return pkg.New(h, false)
}

func requirerPkg(t *testing.T, name, reqName string, flags int32, reqVersion string) *pkg.Record {
	h := build(t, map[header.Tag]header.Value{
		header.TagName:           header.NewString(name),
		header.TagVersion:        header.NewString("1"),
		header.TagRelease:        header.NewString("1"),
		header.TagRequireName:    header.NewStringArray(header.TypeStringArray, []string{reqName}),
		header.TagRequireFlags:   header.NewInt32Signed([]int32{flags}),
		header.TagRequireVersion: header.NewStringArray(header.TypeStringArray, []string{reqVersion}),
	})
	return pkg.New(h, false)
}

func TestSearchProvidesSelfProvide(t *testing.T) {
	p := providerPkg(t, "libfoo", "2.0")
	r := New([]*pkg.Record{p}, false)

	got := r.SearchProvides("libfoo", rpmver.Equal, "2.0")
	if len(got) != 1 || got[0] != p {
		t.Fatalf("SearchProvides = %v", got)
	}

	if got := r.SearchProvides("libfoo", rpmver.Greater, "3.0"); len(got) != 0 {
		t.Errorf("SearchProvides(>3.0) = %v, want none", got)
	}
}

func TestSearchProvidesUnversionedMatchesAnyVersion(t *testing.T) {
	p := providerPkg(t, "libfoo", "1.5")
	r := New([]*pkg.Record{p}, false)
	got := r.SearchProvides("libfoo", 0, "")
	if len(got) != 1 || got[0] != p {
		t.Fatalf("SearchProvides unversioned = %v", got)
	}
}

func TestNewSkipsGPGPubkey(t *testing.T) {
	h := build(t, map[header.Tag]header.Value{
		header.TagName:    header.NewString("gpg-pubkey"),
		header.TagVersion: header.NewString("1"),
		header.TagRelease: header.NewString("1"),
	})
	gpg := pkg.New(h, false)

	r := New([]*pkg.Record{gpg}, false)
	if len(r.Packages()) != 0 {
		t.Errorf("expected gpg-pubkey to be skipped, got %d packages", len(r.Packages()))
	}
}

func TestNewSkipsSourcePackages(t *testing.T) {
	h := build(t, map[header.Tag]header.Value{
		header.TagName:    header.NewString("bash"),
		header.TagVersion: header.NewString("5.1"),
		header.TagRelease: header.NewString("1"),
	})
	srcRec := pkg.New(h, true)

	r := New([]*pkg.Record{srcRec}, false)
	if len(r.Packages()) != 0 {
		t.Errorf("expected source package to be skipped, got %d packages", len(r.Packages()))
	}
}

func TestSearchProvidesFileFallback(t *testing.T) {
	h := build(t, map[header.Tag]header.Value{
		header.TagName:       header.NewString("bash"),
		header.TagVersion:    header.NewString("5.1"),
		header.TagRelease:    header.NewString("1"),
		header.TagBasenames:  header.NewStringArray(header.TypeStringArray, []string{"sh"}),
		header.TagDirnames:   header.NewStringArray(header.TypeStringArray, []string{"/bin/"}),
		header.TagDirindexes: header.NewInt32Signed([]int32{0}),
	})
	p := pkg.New(h, false)
	r := New([]*pkg.Record{p}, false)

	got := r.SearchProvides("/bin/sh", 0, "")
	if len(got) != 1 || got[0] != p {
		t.Fatalf("SearchProvides(/bin/sh) = %v", got)
	}
}

func TestDepString(t *testing.T) {
	if got, want := DepString("foo", 0, ""), "foo"; got != want {
		t.Errorf("DepString() = %q, want %q", got, want)
	}
	if got, want := DepString("foo", rpmver.Greater|rpmver.Equal, "1.0"), "(foo >= 1.0)"; got != want {
		t.Errorf("DepString() = %q, want %q", got, want)
	}
}

func TestAddRemovePackage(t *testing.T) {
	p := providerPkg(t, "libfoo", "1.0")
	r := New(nil, false)
	r.AddPackage(p)
	if got := r.SearchProvides("libfoo", 0, ""); len(got) != 1 {
		t.Fatalf("after add: SearchProvides = %v", got)
	}
	r.RemovePackage(p)
	if got := r.SearchProvides("libfoo", 0, ""); len(got) != 0 {
		t.Fatalf("after remove: SearchProvides = %v, want none", got)
	}
}

func TestRequiresGroupsByExactTuple(t *testing.T) {
	req := requirerPkg(t, "app", "libfoo", rpmver.Greater|rpmver.Equal, "1.0")
	r := New([]*pkg.Record{req}, false)
	got := r.Requires(pkg.Dep{Name: "libfoo", Flags: rpmver.Greater | rpmver.Equal, Version: "1.0"})
	if len(got) != 1 || got[0] != req {
		t.Fatalf("Requires() = %v", got)
	}
}
