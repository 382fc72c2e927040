package rpm

import (
	"bytes"
	"context"
	"iter"
	"testing"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/installdb"
)

func encodeRecord(t *testing.T, key uint32, name string) installdb.PrimaryEntry {
	t.Helper()
	enc, err := header.Encode(map[header.Tag]header.Value{
		header.TagName:    header.NewString(name),
		header.TagVersion: header.NewString("1.0"),
		header.TagRelease: header.NewString("1"),
	}, header.TagHeaderImmutable, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return installdb.PrimaryEntry{Key: key, Data: bytes.NewReader(enc)}
}

func fakePrimary(entries ...installdb.PrimaryEntry) iter.Seq2[installdb.PrimaryEntry, error] {
	return func(yield func(installdb.PrimaryEntry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func TestDatabasePackagesSkipsGPGPubkey(t *testing.T) {
	db := &Database{
		dir: "testdb",
		primary: fakePrimary(
			encodeRecord(t, 1, "bash"),
			encodeRecord(t, 2, "gpg-pubkey"),
		),
	}

	var names []string
	for rec, err := range db.Packages(context.Background()) {
		if err != nil {
			t.Fatalf("Packages: %v", err)
		}
		names = append(names, rec.Name())
	}
	if len(names) != 1 || names[0] != "bash" {
		t.Fatalf("names = %v, want [bash]", names)
	}
}

func TestDatabaseCrossCheckIndexRejectsNonBDB(t *testing.T) {
	db := &Database{dir: "testdb", isBDB: false}
	if _, err := db.CrossCheckIndex(context.Background(), "Name"); err != errNotBDB {
		t.Fatalf("CrossCheckIndex: err = %v, want errNotBDB", err)
	}
}

func TestDatabaseString(t *testing.T) {
	db := &Database{dir: "/var/lib/rpm"}
	if got, want := db.String(), "/var/lib/rpm"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
