package raster

import (
	"errors"
	"fmt"
	"image"
)

var ErrTileOutOfRange = errors.New("rasterpyramid: tile out of range")

// TileID identifies a tile within the tile grid of one image.
type TileID struct {
	X int
	Y int
}

func (t TileID) String() string {
	return fmt.Sprintf("%d-%d", t.X, t.Y)
}

// Grid describes how an image is split into tiles. Tile (0,0) has its
// origin at (OffsetX, OffsetY).
type Grid struct {
	OffsetX    int
	OffsetY    int
	TileWidth  int
	TileHeight int
}

// TileRect returns the unclipped pixel rectangle of a tile.
func (g Grid) TileRect(id TileID) image.Rectangle {
	x := g.OffsetX + id.X*g.TileWidth
	y := g.OffsetY + id.Y*g.TileHeight
	return image.Rect(x, y, x+g.TileWidth, y+g.TileHeight)
}

// TileRange returns the range of tiles overlapping a pixel rectangle,
// Min inclusive and Max exclusive, in tile units.
func (g Grid) TileRange(rect image.Rectangle) image.Rectangle {
	if rect.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(
		floorDiv(rect.Min.X-g.OffsetX, g.TileWidth),
		floorDiv(rect.Min.Y-g.OffsetY, g.TileHeight),
		floorDiv(rect.Max.X-1-g.OffsetX, g.TileWidth)+1,
		floorDiv(rect.Max.Y-1-g.OffsetY, g.TileHeight)+1,
	)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Image is a tiled single-band raster, typically one pyramid level.
type Image interface {
	Layout() Layout
	Bounds() image.Rectangle
	Grid() Grid

	// Tile computes a single tile. The returned raster covers the tile
	// rectangle clipped to Bounds. Failures affect that tile only.
	Tile(id TileID) (*Raster, error)
}

// TileRect returns the rectangle of a tile clipped to the image bounds.
func TileRect(img Image, id TileID) image.Rectangle {
	return img.Grid().TileRect(id).Intersect(img.Bounds())
}

// TileBounds returns the tile range covering the whole image.
func TileBounds(img Image) image.Rectangle {
	return img.Grid().TileRange(img.Bounds())
}

// CheckTile returns ErrTileOutOfRange if id is not part of the image.
func CheckTile(img Image, id TileID) error {
	if !(image.Point{id.X, id.Y}).In(TileBounds(img)) {
		return fmt.Errorf("%w: %v", ErrTileOutOfRange, id)
	}
	return nil
}

// Read assembles the samples of rect from the tiles of img. Parts of rect
// outside the image bounds are zero.
func Read(img Image, rect image.Rectangle) (*Raster, error) {
	result := New(img.Layout(), rect)
	tiles := img.Grid().TileRange(rect.Intersect(img.Bounds()))
	for ty := tiles.Min.Y; ty < tiles.Max.Y; ty++ {
		for tx := tiles.Min.X; tx < tiles.Max.X; tx++ {
			tile, err := img.Tile(TileID{X: tx, Y: ty})
			if err != nil {
				return nil, err
			}
			if err := result.CopyFrom(tile); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

type memoryImage struct {
	raster *Raster
	grid   Grid
}

// NewMemory exposes an in-memory raster as a tiled image.
func NewMemory(r *Raster, grid Grid) Image {
	return &memoryImage{raster: r, grid: grid}
}

func (m *memoryImage) Layout() Layout          { return m.raster.Layout }
func (m *memoryImage) Bounds() image.Rectangle { return m.raster.Rect }
func (m *memoryImage) Grid() Grid              { return m.grid }

func (m *memoryImage) Tile(id TileID) (*Raster, error) {
	if err := CheckTile(m, id); err != nil {
		return nil, err
	}
	return m.raster.SubRaster(TileRect(m, id)), nil
}

type retiledImage struct {
	src  Image
	grid Grid
}

// Retile exposes img with another tile grid. Tiles are assembled from the
// tiles of img on demand.
func Retile(img Image, grid Grid) Image {
	if img.Grid() == grid {
		return img
	}
	return &retiledImage{src: img, grid: grid}
}

func (m *retiledImage) Layout() Layout          { return m.src.Layout() }
func (m *retiledImage) Bounds() image.Rectangle { return m.src.Bounds() }
func (m *retiledImage) Grid() Grid              { return m.grid }

func (m *retiledImage) Tile(id TileID) (*Raster, error) {
	if err := CheckTile(m, id); err != nil {
		return nil, err
	}
	return Read(m.src, TileRect(m, id))
}
