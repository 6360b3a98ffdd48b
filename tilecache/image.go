package tilecache

import (
	"image"

	"github.com/eak1mov/go-rasterpyramid/raster"
)

// Image serves the tiles of another image through a cache.
type Image struct {
	src   raster.Image
	cache *Cache
	owner Owner
}

// Wrap returns an image that serves tiles of src from cache and computes
// and caches them on a miss. Close releases the cached tiles.
func Wrap(src raster.Image, cache *Cache, name string) *Image {
	return &Image{
		src:   src,
		cache: cache,
		owner: cache.Register(name),
	}
}

func (m *Image) Layout() raster.Layout   { return m.src.Layout() }
func (m *Image) Bounds() image.Rectangle { return m.src.Bounds() }
func (m *Image) Grid() raster.Grid       { return m.src.Grid() }
func (m *Image) Owner() Owner            { return m.owner }

func (m *Image) Tile(id raster.TileID) (*raster.Raster, error) {
	if tile, ok := m.cache.Get(m.owner, id); ok {
		return tile, nil
	}
	tile, err := m.src.Tile(id)
	if err != nil {
		return nil, err
	}
	m.cache.Add(m.owner, id, tile)
	return tile, nil
}

func (m *Image) Close() error {
	m.cache.Release(m.owner)
	return nil
}
