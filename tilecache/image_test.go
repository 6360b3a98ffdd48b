package tilecache_test

import (
	"image"
	"testing"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilecache"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type countingImage struct {
	raster.Image
	calls int
}

func (m *countingImage) Tile(id raster.TileID) (*raster.Raster, error) {
	m.calls++
	return m.Image.Tile(id)
}

func TestWrap(t *testing.T) {
	src := raster.New(raster.Layout{DataType: raster.Int16}, image.Rect(0, 0, 20, 20))
	for y := range 20 {
		for x := range 20 {
			src.Set(x, y, float64(x*y-100))
		}
	}
	counting := &countingImage{Image: raster.NewMemory(src, raster.Grid{TileWidth: 8, TileHeight: 8})}

	c := newCache(t, 1<<20)
	img := tilecache.Wrap(counting, c, "wrapped")

	for range 2 {
		for id := range raster.Tiles(img) {
			got, err := img.Tile(id)
			require.NoError(t, err)
			if want := src.SubRaster(raster.TileRect(img, id)); !cmp.Equal(got, want) {
				t.Errorf("tile %v mismatch", id)
			}
		}
	}
	require.Equal(t, 9, counting.calls)
	require.Equal(t, int64(9), c.Stats().Hits)

	require.NoError(t, img.Close())
	require.Equal(t, 0, c.Stats().Entries)
}
