package scaler_test

import (
	"errors"
	"image"
	"testing"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/resample"
	"github.com/eak1mov/go-rasterpyramid/scaler"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func makePyramid(t *testing.T, width, height, levelCount int) (*raster.Raster, *pyramid.Pyramid) {
	t.Helper()
	src := raster.New(raster.Layout{DataType: raster.Int32}, image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			src.Set(x, y, float64(x*1000+y))
		}
	}
	p, err := pyramid.FromImage(raster.NewMemory(src, raster.Grid{TileWidth: 50, TileHeight: 50}), levelCount)
	require.NoError(t, err)
	return src, p
}

func readLevel(t *testing.T, p *pyramid.Pyramid, index int) *raster.Raster {
	t.Helper()
	img, err := p.Image(index)
	require.NoError(t, err)
	r, err := raster.Read(img, img.Bounds())
	require.NoError(t, err)
	return r
}

func TestIdentity(t *testing.T) {
	for _, opts := range []scaler.Options{
		{},
		{ScaleX: 1, ScaleY: 1},
		{ScaleX: 1, ScaleY: 1, OffsetX: 1e-13, OffsetY: -1e-14, Kernel: resample.Bicubic},
	} {
		_, src := makePyramid(t, 400, 300, 3)
		target, err := scaler.New(src, opts)
		require.NoError(t, err)
		require.Equal(t, src.LevelCount(), target.LevelCount())

		for index := range src.LevelCount() {
			want, err := src.Image(index)
			require.NoError(t, err)
			got, err := target.Image(index)
			require.NoError(t, err)
			require.Equalf(t, want, got, "%+v level %d", opts, index)
			if !cmp.Equal(readLevel(t, target, index), readLevel(t, src, index)) {
				t.Errorf("%+v level %d: samples differ", opts, index)
			}
		}
	}
}

func TestIdentityExplicitScales(t *testing.T) {
	src := raster.New(raster.Layout{DataType: raster.Int32}, image.Rect(0, 0, 300, 300))
	for y := range 300 {
		for x := range 300 {
			src.Set(x, y, float64(x*1000+y))
		}
	}
	p, err := pyramid.FromImage(raster.NewMemory(src, raster.Grid{TileWidth: 64, TileHeight: 64}), 3,
		pyramid.WithScales([]float64{1, 1.5, 3}))
	require.NoError(t, err)

	target, err := scaler.New(p, scaler.Options{ScaleX: 1, ScaleY: 1})
	require.NoError(t, err)
	for index, wantSize := range []image.Point{{300, 300}, {200, 200}, {100, 100}} {
		scale, err := target.Scale(index)
		require.NoError(t, err)
		wantScale, err := p.Scale(index)
		require.NoError(t, err)
		require.Equal(t, wantScale, scale, "level %d", index)

		size, err := target.Size(index)
		require.NoError(t, err)
		require.Equal(t, wantSize, size, "level %d", index)
		if !cmp.Equal(readLevel(t, target, index), readLevel(t, p, index)) {
			t.Errorf("level %d: samples differ", index)
		}
	}
}

func TestSourceLevel(t *testing.T) {
	_, src := makePyramid(t, 64, 64, 4)
	for _, tc := range []struct {
		TargetScale, ScaleX, ScaleY float64
		Want                        int
	}{
		{1, 1, 1, 0},
		{2, 1, 1, 1},
		{1, 0.5, 0.5, 1},
		{2, 0.5, 0.5, 2},
		{1, 0.3, 0.3, 2},
		{1, 1, 0.5, 0},
		{8, 0.5, 0.5, 3},
		{1, 4, 4, 0},
	} {
		got, err := scaler.SourceLevel(src, tc.TargetScale, tc.ScaleX, tc.ScaleY)
		require.NoError(t, err)
		require.Equalf(t, tc.Want, got, "%+v", tc)
	}

	tie, err := pyramid.New(2, func(level.Geometry) (raster.Image, error) { return nil, nil },
		pyramid.WithScales([]float64{1, 3}))
	require.NoError(t, err)
	got, err := scaler.SourceLevel(tie, 1, 0.5, 0.5)
	require.NoError(t, err)
	require.Equal(t, 0, got, "ties must pick the finer level")
}

func TestDownscaleUsesCoarserLevel(t *testing.T) {
	_, src := makePyramid(t, 400, 200, 3)
	target, err := scaler.New(src, scaler.Options{ScaleX: 0.5, ScaleY: 0.5})
	require.NoError(t, err)

	for index, want := range []image.Point{{200, 100}, {100, 50}, {50, 25}} {
		size, err := target.Size(index)
		require.NoError(t, err)
		require.Equal(t, want, size, "level %d", index)
	}
	if !cmp.Equal(readLevel(t, target, 0), readLevel(t, src, 1)) {
		t.Errorf("target level 0 must equal source level 1")
	}
}

func TestAnisotropic(t *testing.T) {
	_, src := makePyramid(t, 400, 200, 2)
	target, err := scaler.New(src, scaler.Options{ScaleX: 1, ScaleY: 0.5, Kernel: resample.Bilinear})
	require.NoError(t, err)

	for index, want := range []image.Point{{400, 100}, {200, 50}} {
		size, err := target.Size(index)
		require.NoError(t, err)
		require.Equal(t, want, size, "level %d", index)
	}
}

func TestOffsetAndFill(t *testing.T) {
	src, p := makePyramid(t, 100, 80, 2)
	target, err := scaler.New(p, scaler.Options{OffsetX: 2, OffsetY: -1, Width: 110, Height: 80, Fill: -7})
	require.NoError(t, err)

	got := readLevel(t, target, 0)
	require.Equal(t, image.Rect(0, 0, 110, 80), got.Rect)
	for y := range 80 {
		for x := range 110 {
			want := -7.0
			if pt := image.Pt(x-2, y+1); pt.In(src.Rect) {
				want = src.At(pt.X, pt.Y)
			}
			if got.At(x, y) != want {
				t.Fatalf("At(%d, %d) = %v, want = %v", x, y, got.At(x, y), want)
			}
		}
	}

	size, err := target.Size(1)
	require.NoError(t, err)
	require.Equal(t, image.Pt(55, 40), size)
}

func TestInvalidOptions(t *testing.T) {
	_, src := makePyramid(t, 10, 10, 1)
	for _, opts := range []scaler.Options{
		{ScaleX: -1},
		{ScaleY: -0.5},
		{Width: -3},
	} {
		_, err := scaler.New(src, opts)
		require.Truef(t, errors.Is(err, pyramid.ErrInvalidArgument), "%+v: %v", opts, err)
	}
}
