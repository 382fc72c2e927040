// Package sqlite reads the modern sqlite-backed alternative to the
// BerkeleyDB "Packages" primary store: a single table keyed by header
// number (hnum), holding the same header blobs the bdb reader yields.
//
// Unlike the bdb layout, the sqlite backend has no separate secondary-index
// files; callers needing the cross-check described by the installed-database
// reader's spec still build those term indexes from the same blobs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"runtime"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	_ "modernc.org/sqlite"
)

var dialect = goqu.Dialect("sqlite3")

// DB is a handle to a sqlite-backed rpm install database.
type DB struct {
	db *sql.DB
}

// Open opens the named sqlite file and readies it for reading.
//
// Must be a file on disk; this is a limitation of the underlying sqlite
// driver. The returned DB must have Close called on it.
func Open(path string) (*DB, error) {
	u := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {"foreign_keys(1)", "query_only(1)"},
		}.Encode(),
	}
	conn, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, fmt.Errorf("installdb/sqlite: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("installdb/sqlite: ping: %w", err)
	}
	rdb := &DB{db: conn}
	_, file, line, _ := runtime.Caller(1)
	runtime.SetFinalizer(rdb, func(rdb *DB) {
		panic(fmt.Sprintf("%s:%d: installdb/sqlite: database not closed", file, line))
	})
	return rdb, nil
}

// Close releases held resources. Must be called when the DB is no longer
// needed.
func (db *DB) Close() error {
	runtime.SetFinalizer(db, nil)
	return db.db.Close()
}

// Record is one header blob keyed by its sqlite header number.
type Record struct {
	HNum int64
	Data io.ReaderAt
}

// Records returns an iterator over every package header in the store, in
// ascending hnum order.
func (db *DB) Records(ctx context.Context) iter.Seq2[Record, error] {
	query, _, err := dialect.From("Packages").
		Select("hnum", "blob").
		Order(goqu.I("hnum").Asc()).
		ToSQL()
	if err != nil {
		return func(yield func(Record, error) bool) {
			yield(Record{}, fmt.Errorf("installdb/sqlite: building query: %w", err))
		}
	}

	return func(yield func(Record, error) bool) {
		rows, err := db.db.QueryContext(ctx, query)
		if err != nil {
			yield(Record{}, fmt.Errorf("installdb/sqlite: query: %w", err))
			return
		}
		defer rows.Close()

		var hnum int64
		for rows.Next() {
			blob := make([]byte, 0, 4*4096)
			if err := rows.Scan(&hnum, &blob); err != nil {
				yield(Record{}, fmt.Errorf("installdb/sqlite: scan: %w", err))
				return
			}
			// Wrap in a fresh reader each iteration; "blob" is reused by the
			// driver's buffer pool between Scan calls.
			data := append([]byte(nil), blob...)
			if !yield(Record{HNum: hnum, Data: byteReaderAt(data)}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("installdb/sqlite: rows: %w", err))
		}
	}
}

// Validate checks that the opened file looks like an rpm install database.
func (db *DB) Validate(ctx context.Context) error {
	if err := db.db.PingContext(ctx); err != nil {
		return fmt.Errorf("installdb/sqlite: database problem: %w", err)
	}
	query, _, err := dialect.From("Packages").Select(goqu.COUNT("*")).Limit(1).ToSQL()
	if err != nil {
		return fmt.Errorf("installdb/sqlite: building validate query: %w", err)
	}
	var ignore int64
	switch err := db.db.QueryRowContext(ctx, query).Scan(&ignore); {
	case errors.Is(err, nil):
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("installdb/sqlite: not an rpm database: %w", err)
	default:
		return err
	}
	return nil
}

// ByteReaderAt adapts a byte slice to [io.ReaderAt] without an extra copy on
// read.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("installdb/sqlite: negative offset")
	}
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
