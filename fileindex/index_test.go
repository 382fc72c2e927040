package fileindex

import (
	"bytes"
	"context"
	"testing"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/pkg"
)

func buildRecord(t *testing.T, name string, files, digests []string) *pkg.Record {
	t.Helper()
	dirs := make([]string, len(files))
	bases := make([]string, len(files))
	for i, f := range files {
		dirs[i] = "/usr/bin/"
		bases[i] = f
	}
	modes := make([]int32, len(files))
	for i := range modes {
		modes[i] = 0o100644
	}
	tags := map[header.Tag]header.Value{
		header.TagName:        header.NewString(name),
		header.TagVersion:     header.NewString("1.0"),
		header.TagRelease:     header.NewString("1"),
		header.TagBasenames:   header.NewStringArray(header.TypeStringArray, bases),
		header.TagDirnames:    header.NewStringArray(header.TypeStringArray, []string{"/usr/bin/"}),
		header.TagDirindexes:  header.NewInt32Signed(make([]int32, len(files))),
		header.TagFileModes:   header.NewInt32Signed(modes),
		header.TagFileDigests: header.NewStringArray(header.TypeStringArray, digests),
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

func TestIndexSearch(t *testing.T) {
	r := buildRecord(t, "foo", []string{"foo", "bar"}, []string{"d1", "d2"})
	idx := New(false)
	idx.AddPackage(r)

	got := idx.Search("/usr/bin/foo")
	if len(got) != 1 || got[0] != r {
		t.Fatalf("Search(/usr/bin/foo) = %v", got)
	}
	if got := idx.Search("/usr/bin/missing"); got != nil {
		t.Errorf("Search(missing) = %v, want nil", got)
	}
}

func TestIndexRemovePackage(t *testing.T) {
	r := buildRecord(t, "foo", []string{"foo"}, []string{"d1"})
	idx := New(true)
	idx.AddPackage(r)
	idx.RemovePackage(r)
	if got := idx.Search("/usr/bin/foo"); got != nil {
		t.Errorf("Search after remove = %v, want nil", got)
	}
}

func TestIndexConflicts(t *testing.T) {
	a := buildRecord(t, "a", []string{"foo"}, []string{"digestA"})
	b := buildRecord(t, "b", []string{"foo"}, []string{"digestB"})
	idx := New(true)
	idx.AddPackage(a)
	idx.AddPackage(b)

	conflicts := idx.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("len(Conflicts()) = %d, want 1", len(conflicts))
	}
	if conflicts[0].Path != "/usr/bin/foo" {
		t.Errorf("Conflicts()[0].Path = %q", conflicts[0].Path)
	}
}

func TestIndexNoConflictWhenDigestsMatch(t *testing.T) {
	a := buildRecord(t, "a", []string{"foo"}, []string{"same"})
	b := buildRecord(t, "b", []string{"foo"}, []string{"same"})
	idx := New(true)
	idx.AddPackage(a)
	idx.AddPackage(b)
	if got := idx.Conflicts(); len(got) != 0 {
		t.Errorf("Conflicts() = %v, want none", got)
	}
}

func TestCacheSharesBuild(t *testing.T) {
	var c Cache
	calls := 0
	build := func() (*Index, error) {
		calls++
		return New(false), nil
	}
	ctx := context.Background()
	first, err := c.Get(ctx, "k", build)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(ctx, "k", build)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("expected cached Index to be reused")
	}
	if calls != 1 {
		t.Errorf("build called %d times, want 1", calls)
	}
}
