package rpm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/quay/zlog"

	"github.com/quay/rpmplan/header"
	"github.com/quay/rpmplan/installdb"
	"github.com/quay/rpmplan/installdb/bdb"
	"github.com/quay/rpmplan/installdb/sqlite"
	"github.com/quay/rpmplan/pkg"
)

// Database is a handle to an installed rpm database, auto-detected as
// either the legacy BerkeleyDB hash-file layout or the modern sqlite
// layout (spec §4.9, §6).
type Database struct {
	dir     string
	isBDB   bool
	cleanup io.Closer
	primary iter.Seq2[installdb.PrimaryEntry, error]
}

// OpenDatabase opens the rpm database rooted at dir, trying the bdb
// "Packages" file first and falling back to "rpmdb.sqlite", the same
// filename convention claircore's own backend auto-detection uses.
func OpenDatabase(dir string, _ ...Option) (*Database, error) {
	if p := filepath.Join(dir, "Packages"); fileExists(p) {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("rpm: opening %s: %w", p, err)
		}
		pdb, err := bdb.Open(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("rpm: parsing %s: %w", p, err)
		}
		return &Database{
			dir:     dir,
			isBDB:   true,
			cleanup: f,
			primary: installdb.BDBEntries(context.Background(), pdb),
		}, nil
	}
	if p := filepath.Join(dir, "rpmdb.sqlite"); fileExists(p) {
		db, err := sqlite.Open(p)
		if err != nil {
			return nil, fmt.Errorf("rpm: opening %s: %w", p, err)
		}
		return &Database{
			dir:     dir,
			cleanup: db,
			primary: installdb.SQLiteEntries(context.Background(), db),
		}, nil
	}
	return nil, fmt.Errorf("rpm: %s: no recognized rpm database found", dir)
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Close releases the database's open file handles.
func (db *Database) Close() error {
	if db.cleanup == nil {
		return nil
	}
	return db.cleanup.Close()
}

func (db *Database) String() string { return db.dir }

// Packages iterates every installed package record. Errors decoding one
// record are reported and the iteration continues with the next (spec §7:
// structural errors abort only the offending item).
func (db *Database) Packages(ctx context.Context) iter.Seq2[*pkg.Record, error] {
	return func(yield func(*pkg.Record, error) bool) {
		ct := 0
		defer func() {
			zlog.Debug(ctx).Int("packages", ct).Str("db", db.dir).Msg("processed installed rpm database")
		}()
		for rec, err := range installdb.ReadAll(ctx, db.primary) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if rec.Header == nil {
				continue
			}
			r := pkg.New(rec.Header, false)
			if r.Name() == "gpg-pubkey" {
				// Not a real package: the database's convention for storing
				// an imported public key (pkg.Record.Name is still callable
				// since a key's "header" is a genuine, if minimal, header).
				continue
			}
			ct++
			if !yield(r, nil) {
				return
			}
		}
	}
}

// CrossCheckIndex opens a secondary index file by name (one of the
// constants spec §4.9 lists) and cross-checks it against every primary
// record this database holds, per [installdb.CrossCheck]. Only the bdb
// backend carries separate secondary-index files; calling this against a
// sqlite-backed database returns an error.
func (db *Database) CrossCheckIndex(ctx context.Context, name string) ([]error, error) {
	if !db.isBDB {
		return nil, errNotBDB
	}
	p := filepath.Join(db.dir, name)
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("rpm: opening %s: %w", p, err)
	}
	defer f.Close()

	idx, err := bdb.OpenIndex(f)
	if err != nil {
		return nil, fmt.Errorf("rpm: parsing %s: %w", p, err)
	}

	records := make(map[uint32]*header.Header)
	for rec, err := range installdb.ReadAll(ctx, db.primary) {
		if err != nil {
			return nil, err
		}
		records[rec.Key] = rec.Header
	}

	return installdb.CrossCheck(ctx, name, idx.Entries(ctx), records), nil
}

var errNotBDB = errors.New("rpm: database is not bdb-backed")
