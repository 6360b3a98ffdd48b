// Package scaler re-grids a pyramid: it produces a pyramid of the same
// scene with independent per-axis scale factors and a sub-pixel offset.
package scaler

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/resample"
)

// Offsets smaller than this are treated as zero.
const offsetEpsilon = 1e-12

type Options struct {
	// ScaleX and ScaleY are target pixels per level-0 source pixel.
	// Zero means 1.
	ScaleX float64
	ScaleY float64

	// OffsetX and OffsetY translate the target in level-0 target pixels.
	OffsetX float64
	OffsetY float64

	// Width and Height declare the level-0 target size. Zero derives it
	// from the source size and the scale.
	Width  int
	Height int

	Kernel resample.Kernel
	Fill   float64 // value of target samples not covered by the source
	Logger *slog.Logger
}

// New returns the target pyramid. It has the level count and the level
// scales of src; levels are derived on first use.
func New(src *pyramid.Pyramid, opts Options) (*pyramid.Pyramid, error) {
	if opts.ScaleX == 0 {
		opts.ScaleX = 1
	}
	if opts.ScaleY == 0 {
		opts.ScaleY = 1
	}
	for _, s := range []float64{opts.ScaleX, opts.ScaleY} {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: scale %v", pyramid.ErrInvalidArgument, s)
		}
	}
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("%w: size %dx%d", pyramid.ErrInvalidArgument, opts.Width, opts.Height)
	}
	if math.Abs(opts.OffsetX) < offsetEpsilon {
		opts.OffsetX = 0
	}
	if math.Abs(opts.OffsetY) < offsetEpsilon {
		opts.OffsetY = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	scales := make([]float64, src.LevelCount())
	for index := range scales {
		scale, err := src.Scale(index)
		if err != nil {
			return nil, err
		}
		scales[index] = scale
	}

	s := &scaler{src: src, opts: opts}
	return pyramid.New(src.LevelCount(), s.derive,
		pyramid.WithScales(scales),
		pyramid.WithLogger(opts.Logger))
}

// SourceLevel picks the level of src to derive a target level of scale
// targetScale from: the one whose residual resampling ratio
// sourceScale*axisScale/targetScale is closest to 1 on both axes. Ties go
// to the finer level.
func SourceLevel(src *pyramid.Pyramid, targetScale, scaleX, scaleY float64) (int, error) {
	best, bestDistance := -1, math.Inf(1)
	for index := range src.LevelCount() {
		sourceScale, err := src.Scale(index)
		if err != nil {
			return 0, err
		}
		rx := sourceScale * scaleX / targetScale
		ry := sourceScale * scaleY / targetScale
		distance := max(math.Abs(rx-1), math.Abs(ry-1))
		if distance < bestDistance {
			best, bestDistance = index, distance
		}
	}
	return best, nil
}

type scaler struct {
	src  *pyramid.Pyramid
	opts Options
}

// size returns the declared level-0 target size.
func (s *scaler) size() (image.Point, error) {
	width, height := s.opts.Width, s.opts.Height
	if width > 0 && height > 0 {
		return image.Pt(width, height), nil
	}
	level0, err := s.src.Image(0)
	if err != nil {
		return image.Point{}, err
	}
	size := level0.Bounds().Size()
	if width == 0 {
		width = max(1, int(math.Round(float64(size.X)*s.opts.ScaleX)))
	}
	if height == 0 {
		height = max(1, int(math.Round(float64(size.Y)*s.opts.ScaleY)))
	}
	return image.Pt(width, height), nil
}

func (s *scaler) derive(g level.Geometry) (raster.Image, error) {
	opts := s.opts
	targetScale := g.Scale()

	index, err := SourceLevel(s.src, targetScale, opts.ScaleX, opts.ScaleY)
	if err != nil {
		return nil, err
	}
	source, err := s.src.Image(index)
	if err != nil {
		return nil, err
	}
	sourceScale, err := s.src.Scale(index)
	if err != nil {
		return nil, err
	}
	size0, err := s.size()
	if err != nil {
		return nil, err
	}

	rx := sourceScale * opts.ScaleX / targetScale
	ry := sourceScale * opts.ScaleY / targetScale
	scaled, err := resample.Scale(source, rx, ry, opts.Kernel)
	if err != nil {
		return nil, err
	}

	offsetX, offsetY := opts.OffsetX/targetScale, opts.OffsetY/targetScale
	if math.Abs(offsetX) < offsetEpsilon {
		offsetX = 0
	}
	if math.Abs(offsetY) < offsetEpsilon {
		offsetY = 0
	}

	target := image.Rectangle{
		Min: scaled.Bounds().Min,
		Max: scaled.Bounds().Min.Add(image.Pt(g.LevelSize(size0.X), g.LevelSize(size0.Y))),
	}

	opts.Logger.Debug("rasterpyramid: scaling level",
		"level", g.Index(), "sourceLevel", index, "ratioX", rx, "ratioY", ry,
		"offsetX", offsetX, "offsetY", offsetY, "size", target.Size())

	// Shift pads past the source with Fill and crops to target, so a
	// result larger than the declared size needs no trailing padding.
	if offsetX == 0 && offsetY == 0 && target == scaled.Bounds() {
		return scaled, nil
	}
	return resample.Shift(scaled, offsetX, offsetY, target, opts.Fill, opts.Kernel)
}
