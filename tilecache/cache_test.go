package tilecache_test

import (
	"cmp"
	"errors"
	"image"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilecache"
	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func makeTile(width, height int, value float64) *raster.Raster {
	r := raster.New(raster.Layout{DataType: raster.Uint8}, image.Rect(0, 0, width, height))
	r.Fill(value)
	return r
}

func newCache(t *testing.T, capacity int64, opts ...tilecache.Option) *tilecache.Cache {
	t.Helper()
	c, err := tilecache.New(t.TempDir(), capacity, opts...)
	require.NoError(t, err)
	return c
}

func TestNewInvalid(t *testing.T) {
	_, err := tilecache.New("", 10)
	require.True(t, errors.Is(err, tilecache.ErrInvalidConfig))
	_, err = tilecache.New(t.TempDir(), -1)
	require.True(t, errors.Is(err, tilecache.ErrInvalidConfig))
	for _, threshold := range []float64{0, -0.5, 1.5} {
		_, err = tilecache.New(t.TempDir(), 10, tilecache.WithThreshold(threshold))
		require.Truef(t, errors.Is(err, tilecache.ErrInvalidConfig), "threshold %v", threshold)
	}
}

func TestEvictionScenario(t *testing.T) {
	c := newCache(t, 100000, tilecache.WithThreshold(0.75))
	owner := c.Register("scenario")

	first := raster.TileID{X: 0, Y: 0}
	second := raster.TileID{X: 1, Y: 0}
	c.Add(owner, first, makeTile(256, 256, 1))
	require.Equal(t, int64(65536), c.Usage())

	c.Add(owner, second, makeTile(256, 256, 2))
	require.Equal(t, int64(65536), c.Usage())
	require.LessOrEqual(t, c.Usage(), int64(75000))

	_, ok := c.Get(owner, first)
	require.False(t, ok, "first tile must be evicted")
	tile, ok := c.Get(owner, second)
	require.True(t, ok)
	require.Equal(t, 2.0, tile.At(10, 10))
	require.Equal(t, int64(1), c.Stats().Evictions)
}

func TestAddIdempotent(t *testing.T) {
	c := newCache(t, 10000)
	owner := c.Register("idempotent")
	tile := makeTile(10, 10, 7)

	c.Add(owner, raster.TileID{X: 3, Y: 4}, tile)
	once := c.Stats()
	c.Add(owner, raster.TileID{X: 3, Y: 4}, tile)
	twice := c.Stats()

	require.Equal(t, once.Usage, twice.Usage)
	require.Equal(t, 1, twice.Entries)

	got, ok := c.Get(owner, raster.TileID{X: 3, Y: 4})
	require.True(t, ok)
	if !gocmp.Equal(got, tile) {
		t.Errorf("Get returned %v, want = %v", got, tile)
	}
}

func TestOverwrite(t *testing.T) {
	c := newCache(t, 10000)
	owner := c.Register("overwrite")
	id := raster.TileID{X: 1, Y: 1}

	c.Add(owner, id, makeTile(10, 10, 1))
	c.Add(owner, id, makeTile(5, 4, 9))

	got, ok := c.Get(owner, id)
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 5, 4), got.Rect)
	require.Equal(t, 9.0, got.At(2, 2))
	require.Equal(t, int64(20), c.Usage())
}

func TestEvictionBound(t *testing.T) {
	c := newCache(t, 5000, tilecache.WithThreshold(0.5))
	owners := []tilecache.Owner{c.Register("a"), c.Register("b")}
	rng := rand.New(rand.NewPCG(1, 2))

	for i := range 500 {
		owner := owners[rng.IntN(len(owners))]
		id := raster.TileID{X: rng.IntN(8), Y: rng.IntN(8)}
		c.Add(owner, id, makeTile(1+rng.IntN(40), 1+rng.IntN(40), float64(i%200)))
		if got, budget := c.Usage(), c.Stats().Budget; got > budget {
			t.Fatalf("step %d: usage %d exceeds budget %d", i, got, budget)
		}
	}
}

func TestOversizedTileNotCached(t *testing.T) {
	dir := t.TempDir()
	c, err := tilecache.New(dir, 10000)
	require.NoError(t, err)
	owner := c.Register("big")

	for x := range 5 {
		c.Add(owner, raster.TileID{X: x}, makeTile(10, 10, float64(x)))
	}
	require.Equal(t, int64(500), c.Usage())

	c.Add(owner, raster.TileID{X: 9}, makeTile(100, 100, 1))
	_, ok := c.Get(owner, raster.TileID{X: 9})
	require.False(t, ok)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Rejected)
	require.Equal(t, int64(0), stats.Evictions)
	require.Equal(t, 5, stats.Entries)
	require.Equal(t, int64(500), c.Usage())
	for x := range 5 {
		_, ok := c.Get(owner, raster.TileID{X: x})
		require.Truef(t, ok, "tile %d must survive", x)
	}

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 5)
}

func TestOversizedOverwriteDropsEntry(t *testing.T) {
	c := newCache(t, 10000)
	owner := c.Register("grow")
	c.Add(owner, raster.TileID{X: 0}, makeTile(10, 10, 1))
	c.Add(owner, raster.TileID{X: 1}, makeTile(10, 10, 2))

	c.Add(owner, raster.TileID{X: 0}, makeTile(100, 100, 3))
	_, ok := c.Get(owner, raster.TileID{X: 0})
	require.False(t, ok, "stale tile must not be served")
	_, ok = c.Get(owner, raster.TileID{X: 1})
	require.True(t, ok)
	require.Equal(t, int64(100), c.Usage())
}

func TestLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, 400)
	owner := c.Register("lru")
	for x := range 3 {
		c.Add(owner, raster.TileID{X: x}, makeTile(10, 10, float64(x)))
	}
	_, ok := c.Get(owner, raster.TileID{X: 0})
	require.True(t, ok)

	c.Add(owner, raster.TileID{X: 3}, makeTile(10, 10, 3))

	for x, want := range []bool{true, false, true, true} {
		_, ok := c.Get(owner, raster.TileID{X: x})
		require.Equalf(t, want, ok, "tile %d", x)
	}
}

func TestCustomOrder(t *testing.T) {
	byCost := func(a, b *tilecache.Entry) int { return cmp.Compare(a.Cost, b.Cost) }
	c := newCache(t, 400, tilecache.WithOrder(byCost))
	owner := c.Register("cost")

	c.AddWithCost(owner, raster.TileID{X: 0}, makeTile(10, 10, 0), 5)
	c.AddWithCost(owner, raster.TileID{X: 1}, makeTile(10, 10, 1), 1)
	c.AddWithCost(owner, raster.TileID{X: 2}, makeTile(10, 10, 2), 9)
	c.AddWithCost(owner, raster.TileID{X: 3}, makeTile(10, 10, 3), 7)

	_, ok := c.Get(owner, raster.TileID{X: 1})
	require.False(t, ok, "cheapest tile must be evicted")
	require.Len(t, c.Entries(), 3)
}

func TestCacheFileNames(t *testing.T) {
	dir := t.TempDir()
	c, err := tilecache.New(dir, 10000)
	require.NoError(t, err)
	owner := c.Register("names")
	require.Len(t, owner.ID(), 16)

	c.Add(owner, raster.TileID{X: 4, Y: 7}, makeTile(3, 3, 1))
	_, err = os.Stat(filepath.Join(dir, owner.ID()+"-4-7"))
	require.NoError(t, err)

	other := c.Register("names")
	require.NotEqual(t, owner.ID(), other.ID())
}

func TestReadFailureIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := tilecache.New(dir, 10000)
	require.NoError(t, err)
	owner := c.Register("broken")

	c.Add(owner, raster.TileID{X: 1, Y: 2}, makeTile(10, 10, 1))
	require.NoError(t, os.Remove(filepath.Join(dir, owner.ID()+"-1-2")))

	_, ok := c.Get(owner, raster.TileID{X: 1, Y: 2})
	require.False(t, ok)
	require.Equal(t, int64(0), c.Usage())
	require.Equal(t, 0, c.Stats().Entries)
}

func TestReleaseAndRemove(t *testing.T) {
	dir := t.TempDir()
	c, err := tilecache.New(dir, 10000)
	require.NoError(t, err)
	a := c.Register("a")
	b := c.Register("b")

	for x := range 3 {
		c.Add(a, raster.TileID{X: x}, makeTile(4, 4, 1))
		c.Add(b, raster.TileID{X: x}, makeTile(4, 4, 2))
	}

	c.Remove(b, raster.TileID{X: 0})
	require.Equal(t, 5, c.Stats().Entries)

	c.Release(a)
	require.Equal(t, 2, c.Stats().Entries)
	c.Add(a, raster.TileID{X: 9}, makeTile(4, 4, 1))
	require.Equal(t, 2, c.Stats().Entries, "released owner must be ignored")

	c.RemoveAll(b)
	require.Equal(t, int64(0), c.Usage())
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestShrinkCapacity(t *testing.T) {
	c := newCache(t, 4000)
	owner := c.Register("shrink")
	for x := range 20 {
		c.Add(owner, raster.TileID{X: x}, makeTile(10, 10, 1))
	}
	require.Equal(t, int64(2000), c.Usage())

	require.NoError(t, c.SetCapacity(1000))
	require.LessOrEqual(t, c.Usage(), int64(750))

	require.NoError(t, c.SetThreshold(0.2))
	require.LessOrEqual(t, c.Usage(), int64(200))
	require.True(t, errors.Is(c.SetThreshold(2), tilecache.ErrInvalidConfig))

	c.Flush()
	require.Equal(t, int64(0), c.Usage())
}
