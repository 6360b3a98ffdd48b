// Package mb reads and writes tiles and metadata in the MBTiles format.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/eak1mov/go-rasterpyramid/webtile"
)

var ErrInvalidFile = errors.New("rasterpyramid: not an mbtiles file")

// flipRow converts between XYZ and TMS rows; the mapping is its own inverse.
func flipRow(z, y uint32) uint32 {
	return (1 << z) - 1 - y
}

// Reader implements webtile.Reader, webtile.Visitor and
// webtile.MetadataReader for the MBTiles format.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader opens an MBTiles file read-only. It fails with ErrInvalidFile
// if the file lacks the tiles or metadata table.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	var tables int
	err = db.QueryRow(`SELECT count(*) FROM sqlite_master
		WHERE type IN ('table', 'view') AND name IN ('tiles', 'metadata')`).Scan(&tables)
	if err == nil && tables != 2 {
		err = fmt.Errorf("%w: %s", ErrInvalidFile, filePath)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

// ZoomRange returns the smallest and largest zoom holding tiles. ok is
// false for a file without tiles.
func (r *Reader) ZoomRange() (minZoom, maxZoom uint32, ok bool, err error) {
	var lo, hi sql.NullInt64
	if err := r.db.QueryRow("SELECT MIN(zoom_level), MAX(zoom_level) FROM tiles").Scan(&lo, &hi); err != nil {
		return 0, 0, false, err
	}
	if !lo.Valid {
		return 0, 0, false, nil
	}
	return uint32(lo.Int64), uint32(hi.Int64), true, nil
}

// ReadTile returns an empty slice for a missing tile.
func (r *Reader) ReadTile(tileID webtile.ID) ([]byte, error) {
	var tileData []byte
	err := r.stmt.QueryRow(tileID.Z, tileID.X, flipRow(tileID.Z, tileID.Y)).Scan(&tileData)
	if errors.Is(err, sql.ErrNoRows) {
		return make([]byte, 0), nil
	}
	return tileData, err
}

// VisitTiles visits every tile ordered by zoom, column and row.
func (r *Reader) VisitTiles(visitor func(webtile.ID, []byte) error) error {
	return r.visit(visitor, "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles ORDER BY zoom_level, tile_column, tile_row")
}

// VisitZoom visits the tiles of one zoom level.
func (r *Reader) VisitZoom(zoom uint32, visitor func(webtile.ID, []byte) error) error {
	return r.visit(visitor, "SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles WHERE zoom_level = ?", zoom)
}

func (r *Reader) visit(visitor func(webtile.ID, []byte) error, query string, args ...any) error {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var x, y, z uint32
		var tileData []byte
		if err := rows.Scan(&z, &x, &y, &tileData); err != nil {
			return err
		}
		if err := visitor(webtile.ID{X: x, Y: flipRow(z, y), Z: z}, tileData); err != nil {
			return err
		}
	}
	return rows.Err()
}
