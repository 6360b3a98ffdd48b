package pyramid_test

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/resample"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func makeImage(width, height int) (*raster.Raster, raster.Image) {
	src := raster.New(raster.Layout{DataType: raster.Uint16}, image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			src.Set(x, y, float64(x+y*width))
		}
	}
	return src, raster.NewMemory(src, raster.Grid{TileWidth: 64, TileHeight: 64})
}

func TestNewInvalid(t *testing.T) {
	derive := func(level.Geometry) (raster.Image, error) { return nil, nil }
	for _, tc := range []struct {
		LevelCount int
		Scales     []float64
	}{
		{0, nil},
		{2, []float64{1}},
		{3, []float64{1, 4, 2}},
		{2, []float64{0.5, 1}},
	} {
		_, err := pyramid.New(tc.LevelCount, derive, pyramid.WithScales(tc.Scales))
		require.Truef(t, errors.Is(err, pyramid.ErrInvalidArgument), "%v: %v", tc, err)
	}
}

func TestScales(t *testing.T) {
	derive := func(level.Geometry) (raster.Image, error) { return nil, nil }

	p, err := pyramid.New(4, derive)
	require.NoError(t, err)
	for index, want := range []float64{1, 2, 4, 8} {
		got, err := p.Scale(index)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	p, err = pyramid.New(3, derive, pyramid.WithScales([]float64{1, 3, 3}))
	require.NoError(t, err)
	got, err := p.Scale(2)
	require.NoError(t, err)
	require.Equal(t, 3.0, got)

	_, err = p.Scale(3)
	require.True(t, errors.Is(err, pyramid.ErrInvalidArgument))
	_, err = p.Image(-1)
	require.True(t, errors.Is(err, pyramid.ErrInvalidArgument))
}

func TestImageDerivedOnce(t *testing.T) {
	_, img := makeImage(10, 10)
	var calls [3]atomic.Int32
	p, err := pyramid.New(3, func(g level.Geometry) (raster.Image, error) {
		calls[g.Index()].Add(1)
		return img, nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Image(1); err != nil {
				t.Errorf("Image failed: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(0), calls[0].Load())
	require.Equal(t, int32(1), calls[1].Load())
	require.Equal(t, int32(0), calls[2].Load())
}

func TestImageRetriesFailure(t *testing.T) {
	_, img := makeImage(10, 10)
	failures := 1
	p, err := pyramid.New(1, func(level.Geometry) (raster.Image, error) {
		if failures > 0 {
			failures--
			return nil, os.ErrNotExist
		}
		return img, nil
	})
	require.NoError(t, err)

	_, err = p.Image(0)
	require.True(t, errors.Is(err, os.ErrNotExist))
	got, err := p.Image(0)
	require.NoError(t, err)
	require.Equal(t, img, got)
}

type closingImage struct {
	raster.Image
	closed bool
}

func (m *closingImage) Close() error {
	m.closed = true
	return nil
}

func TestDispose(t *testing.T) {
	_, img := makeImage(10, 10)
	closing := &closingImage{Image: img}
	p, err := pyramid.New(2, func(level.Geometry) (raster.Image, error) { return closing, nil })
	require.NoError(t, err)

	_, err = p.Image(1)
	require.NoError(t, err)
	require.NoError(t, p.Dispose())
	require.True(t, closing.closed)

	_, err = p.Image(0)
	require.True(t, errors.Is(err, pyramid.ErrDisposed))
}

func TestFromImage(t *testing.T) {
	_, img := makeImage(1000, 600)
	for _, kernel := range []resample.Kernel{resample.Nearest, resample.Bilinear} {
		p, err := pyramid.FromImage(img, 4, pyramid.WithKernel(kernel))
		require.NoError(t, err)

		level0, err := p.Image(0)
		require.NoError(t, err)
		require.Equal(t, img, level0)

		for index, want := range []image.Point{{1000, 600}, {500, 300}, {250, 150}, {125, 75}} {
			got, err := p.Size(index)
			require.NoError(t, err)
			require.Equalf(t, want, got, "%v level %d", kernel, index)
		}
	}
}

func TestFromImageNearest(t *testing.T) {
	src, img := makeImage(100, 100)
	p, err := pyramid.FromImage(img, 3, pyramid.WithScales([]float64{1, 2.5, 5}))
	require.NoError(t, err)

	level1, err := p.Image(1)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 40, 40), level1.Bounds())

	g, err := p.Geometry(1)
	require.NoError(t, err)
	got, err := raster.Read(level1, level1.Bounds())
	require.NoError(t, err)
	for y := range 40 {
		for x := range 40 {
			want := src.At(g.SourceCoord(x, 0, 99), g.SourceCoord(y, 0, 99))
			require.Equal(t, want, got.At(x, y))
		}
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	src, img := makeImage(200, 100)
	built, err := pyramid.FromImage(img, 3)
	require.NoError(t, err)
	for index := range built.LevelCount() {
		levelImage, err := built.Image(index)
		require.NoError(t, err)
		require.NoError(t, tilestore.Write(pyramid.LevelDir(root, index), levelImage, spec.Raw))
	}
	require.NoError(t, os.Mkdir(filepath.Join(root, "notes"), 0755))

	p, err := pyramid.Open(root)
	require.NoError(t, err)
	require.Equal(t, 3, p.LevelCount())

	level0, err := p.Image(0)
	require.NoError(t, err)
	got, err := raster.Read(level0, level0.Bounds())
	require.NoError(t, err)
	if !cmp.Equal(got, src) {
		t.Errorf("level 0 differs from source")
	}

	size, err := p.Size(2)
	require.NoError(t, err)
	require.Equal(t, image.Pt(50, 25), size)
}

func TestOpenStoredScales(t *testing.T) {
	root := t.TempDir()
	_, img := makeImage(300, 120)
	built, err := pyramid.FromImage(img, 3, pyramid.WithScales([]float64{1, 1.5, 3}))
	require.NoError(t, err)
	for index := range built.LevelCount() {
		levelImage, err := built.Image(index)
		require.NoError(t, err)
		require.NoError(t, tilestore.Write(pyramid.LevelDir(root, index), levelImage, spec.Raw))
	}
	require.NoError(t, pyramid.WriteScales(root, built))

	p, err := pyramid.Open(root)
	require.NoError(t, err)
	for index, want := range []float64{1, 1.5, 3} {
		scale, err := p.Scale(index)
		require.NoError(t, err)
		require.Equal(t, want, scale)
	}
	size, err := p.Size(1)
	require.NoError(t, err)
	require.Equal(t, image.Pt(200, 80), size)

	scales, err := pyramid.ReadScales(root, 2)
	require.Nil(t, scales)
	require.True(t, errors.Is(err, pyramid.ErrInvalidArgument))

	require.NoError(t, os.WriteFile(filepath.Join(root, pyramid.ScalesFile), []byte("levelCount=3\nscale.0=1\nscale.1=x\n"), 0644))
	_, err = pyramid.Open(root)
	require.True(t, errors.Is(err, pyramid.ErrInvalidArgument))
}

func TestOpenErrors(t *testing.T) {
	root := t.TempDir()
	_, err := pyramid.Open(root)
	require.True(t, errors.Is(err, pyramid.ErrInvalidArgument))

	require.NoError(t, os.Mkdir(filepath.Join(root, "0"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "2"), 0755))
	_, err = pyramid.Open(root)
	require.True(t, errors.Is(err, pyramid.ErrInvalidArgument))

	require.NoError(t, os.Remove(filepath.Join(root, "2")))
	p, err := pyramid.Open(root)
	require.NoError(t, err)
	_, err = p.Image(0)
	require.True(t, errors.Is(err, os.ErrNotExist))
}
