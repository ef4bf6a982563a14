package mbtiles

import (
	"database/sql"
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// Writer builds a small archive with the same layout the tile-set compiler
// emits. Fixtures and local tooling use it; the publish and serve paths only read.
type Writer struct {
	db *sql.DB
}

// Create 初始化配置MBTile库
func Create(path string) (*Writer, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"PRAGMA synchronous=0",
		"PRAGMA journal_mode=DELETE",
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
		"create table if not exists metadata (name text, value text);",
		"create unique index if not exists name on metadata (name);",
		"create unique index if not exists tile_index on tiles(zoom_level, tile_column, tile_row);",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create archive %s: %w", path, err)
		}
	}
	return &Writer{db: db}, nil
}

// WriteTile stores data at an archive-scheme (TMS) coordinate, replacing any existing row.
func (w *Writer) WriteTile(t maptile.Tile, data []byte) error {
	_, err := w.db.Exec("insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);",
		uint32(t.Z), t.X, t.Y, data)
	return err
}

func (w *Writer) WriteMetadata(name, value string) error {
	_, err := w.db.Exec("insert or replace into metadata (name, value) values (?, ?);", name, value)
	return err
}

func (w *Writer) Close() error {
	if _, err := w.db.Exec("ANALYZE;"); err != nil {
		w.db.Close()
		return err
	}
	return w.db.Close()
}
