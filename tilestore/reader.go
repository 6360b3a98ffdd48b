// Package tilestore reads and writes tiled level directories.
//
// A level directory holds the header file spec.HeaderFile and one file per
// tile named "{x}-{y}.{ext}", see spec.Format.
package tilestore

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

// Reader is a raster.Image backed by a level directory.
type Reader struct {
	dir    string
	header spec.Header
}

// Open loads the header of the level directory dir. Tiles are read on
// demand.
func Open(dir string) (*Reader, error) {
	data, err := os.ReadFile(filepath.Join(dir, spec.HeaderFile))
	if err != nil {
		return nil, err
	}
	header, err := spec.DeserializeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return &Reader{dir: dir, header: *header}, nil
}

func (r *Reader) Dir() string             { return r.dir }
func (r *Reader) Header() spec.Header     { return r.header }
func (r *Reader) Format() spec.Format     { return r.header.TileFormat }
func (r *Reader) Layout() raster.Layout   { return r.header.Layout() }
func (r *Reader) Bounds() image.Rectangle { return r.header.Bounds() }
func (r *Reader) Grid() raster.Grid       { return r.header.Grid() }

// TilePath returns the path of a tile file.
func (r *Reader) TilePath(id raster.TileID) string {
	return filepath.Join(r.dir, r.header.TileFormat.TileName(id))
}

// Tile reads and decodes one tile. Errors concern that tile only.
func (r *Reader) Tile(id raster.TileID) (*raster.Raster, error) {
	if err := raster.CheckTile(r, id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.TilePath(id))
	if err != nil {
		return nil, err
	}
	tile, err := r.header.TileFormat.Decode(id, data, r.Layout(), raster.TileRect(r, id))
	if err != nil {
		return nil, fmt.Errorf("tile %v: %w", id, err)
	}
	return tile, nil
}
