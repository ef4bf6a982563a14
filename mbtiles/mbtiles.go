// Package mbtiles reads the sqlite tile archive produced by the external
// tile-set compiler. Rows are addressed in the archive (TMS) scheme.
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"

	"github.com/cadastral/tiler/tile"
	"github.com/cadastral/tiler/tileerr"
)

const (
	queryCount    = "SELECT COUNT(*) FROM tiles"
	queryScan     = "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles"
	queryTile     = "SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?"
	queryMetadata = "SELECT name, value FROM metadata"
	queryRelation = "SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?"
)

// Reader is a read-only handle on one archive. It is safe for concurrent use.
type Reader struct {
	path string
	db   *sql.DB
}

// dsn builds a read-only sqlite URI. The path is absolute and percent-escaped
// so that '#', '?' and '%' in a file name stay part of the name.
func dsn(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_query_only", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens path read-only and checks that the tiles and metadata relations exist.
// A missing or unopenable file is ArchiveUnavailable; a file that is not an
// archive is ArchiveCorrupt.
func Open(path string) (*Reader, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, tileerr.Wrapf(err, tileerr.CodeArchiveUnavailable, "open archive %s", path)
	}
	if fi.IsDir() {
		return nil, tileerr.Newf(tileerr.CodeArchiveUnavailable, "open archive %s: is a directory", path)
	}
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, tileerr.Wrapf(err, tileerr.CodeArchiveUnavailable, "open archive %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		code := tileerr.CodeArchiveUnavailable
		if isCorrupt(err) {
			code = tileerr.CodeArchiveCorrupt
		}
		return nil, tileerr.Wrapf(err, code, "open archive %s", path)
	}
	r := &Reader{path: path, db: db}
	for _, rel := range []string{"tiles", "metadata"} {
		if err := r.checkRelation(rel); err != nil {
			db.Close()
			return nil, err
		}
	}
	log.Debugf("opened archive %s", path)
	return r, nil
}

func (r *Reader) checkRelation(name string) error {
	var n int
	if err := r.db.QueryRow(queryRelation, name).Scan(&n); err != nil {
		return tileerr.Wrapf(err, tileerr.CodeArchiveCorrupt, "archive %s", r.path)
	}
	if n == 0 {
		return tileerr.Newf(tileerr.CodeArchiveCorrupt, "archive %s: missing %q relation", r.path, name)
	}
	return nil
}

// Path returns the file the reader was opened on.
func (r *Reader) Path() string {
	return r.path
}

// Count returns the number of tile rows.
func (r *Reader) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, queryCount).Scan(&n); err != nil {
		return 0, r.queryErr(err, "count tiles")
	}
	return uint64(n), nil
}

// Lookup returns the payload at an archive-scheme coordinate. found is false,
// with a nil error, when no row exists.
func (r *Reader) Lookup(ctx context.Context, t maptile.Tile) (data []byte, found bool, err error) {
	err = r.db.QueryRowContext(ctx, queryTile, uint32(t.Z), t.X, t.Y).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, r.queryErr(err, "lookup tile")
	}
	return data, true, nil
}

// Metadata returns the name/value rows. NULL values read as empty strings.
func (r *Reader) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, queryMetadata)
	if err != nil {
		return nil, r.queryErr(err, "read metadata")
	}
	defer rows.Close()

	md := make(map[string]string)
	for rows.Next() {
		var name, value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, tileerr.Wrapf(err, tileerr.CodeArchiveCorrupt, "archive %s: metadata row", r.path)
		}
		if !name.Valid {
			continue
		}
		md[name.String] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryErr(err, "read metadata")
	}
	return md, nil
}

// Scan starts a full pass over the tiles relation. Rows come back in storage
// order, each exactly once. The scanner must be closed.
func (r *Reader) Scan(ctx context.Context) (*Scanner, error) {
	rows, err := r.db.QueryContext(ctx, queryScan)
	if err != nil {
		return nil, r.queryErr(err, "scan tiles")
	}
	return &Scanner{rows: rows, path: r.path}, nil
}

// Close releases the database handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// isCorrupt reports whether sqlite rejected the file's contents rather than access to it.
func isCorrupt(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
}

// queryErr classifies a failed query. A context error passes through as is;
// anything else means the layout is not what the compiler writes.
func (r *Reader) queryErr(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return tileerr.Wrapf(err, tileerr.CodeArchiveCorrupt, "archive %s: %s", r.path, op)
}

// Scanner is a forward-only cursor over tile records.
type Scanner struct {
	rows *sql.Rows
	path string
	rec  tile.Record
	err  error
}

// Next advances to the next record. It returns false at the end of the scan
// or on the first error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		return false
	}
	var z, x, y int64
	var data []byte
	if err := s.rows.Scan(&z, &x, &y, &data); err != nil {
		s.err = tileerr.Wrapf(err, tileerr.CodeArchiveCorrupt, "archive %s: tile row", s.path)
		return false
	}
	if z < tile.ZoomMin || z > tile.ZoomMax || x < 0 || y < 0 || x > int64(^uint32(0)) || y > int64(^uint32(0)) {
		s.err = tileerr.Newf(tileerr.CodeArchiveCorrupt, "archive %s: tile row %d/%d/%d out of range", s.path, z, x, y)
		return false
	}
	t := tile.New(uint32(z), uint32(x), uint32(y))
	if err := tile.Validate(t); err != nil {
		s.err = tileerr.Wrap(err, tileerr.CodeArchiveCorrupt, "archive "+s.path)
		return false
	}
	s.rec = tile.Record{T: t, C: data}
	return true
}

// Record returns the record read by the last successful Next.
func (s *Scanner) Record() tile.Record {
	return s.rec
}

// Err returns the first error hit by Next, if any.
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) Close() error {
	return s.rows.Close()
}
