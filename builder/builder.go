// Package builder materializes every level of a pyramid into tiled level
// directories.
package builder

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/resample"
	"github.com/eak1mov/go-rasterpyramid/tilecache"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

const (
	DefaultTileSize = 256
	MinTileSize     = 32
)

// Progress receives tile counts of every written level.
type Progress = tilestore.Progress

type Options struct {
	TileWidth  int // DefaultTileSize if zero
	TileHeight int // DefaultTileSize if zero
	LevelCount int
	Scales     []float64 // default doubling
	Format     spec.Format
	Kernel     resample.Kernel
	Cache      *tilecache.Cache // optional
	Progress   Progress         // optional
	Logger     *slog.Logger     // optional
}

// Level describes one written level.
type Level struct {
	Index    int
	Scale    float64
	Dir      string
	Size     image.Point
	TileSize image.Point
}

// TileSize picks the on-disk tile size of one axis: requested if the
// dimension is larger and divisible by it, else requested halved until it
// divides the dimension. A dimension not larger than requested, or one no
// candidate above MinTileSize divides, is covered by a single tile. Such a
// level, e.g. 1000 pixels wide with 256 requested, is written as one tile
// and is assembled in memory while writing.
func TileSize(requested, dimension int) int {
	if dimension <= requested {
		return dimension
	}
	size := requested
	for size > MinTileSize && dimension%size != 0 {
		size /= 2
	}
	if dimension%size != 0 {
		return dimension
	}
	return size
}

// Build writes every level of the pyramid over src to outDir/{level}.
// Any error aborts the build.
func Build(src raster.Image, outDir string, opts Options) ([]Level, error) {
	opts, err := normalize(opts)
	if err != nil {
		return nil, err
	}
	if err := opts.Format.Validate(src.Layout()); err != nil {
		return nil, err
	}

	p, err := pyramid.FromImage(src, opts.LevelCount,
		pyramid.WithScales(opts.Scales),
		pyramid.WithKernel(opts.Kernel),
		pyramid.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	defer p.Dispose()

	return writeLevels(p, outDir, opts)
}

// WritePyramid writes every level of an existing pyramid, such as one
// returned by scaler.New, to outDir/{level}. LevelCount, Scales and
// Kernel of opts are ignored.
func WritePyramid(p *pyramid.Pyramid, outDir string, opts Options) ([]Level, error) {
	opts, err := normalize(opts)
	if err != nil {
		return nil, err
	}
	return writeLevels(p, outDir, opts)
}

func normalize(opts Options) (Options, error) {
	if opts.TileWidth == 0 {
		opts.TileWidth = DefaultTileSize
	}
	if opts.TileHeight == 0 {
		opts.TileHeight = DefaultTileSize
	}
	if opts.TileWidth < 0 || opts.TileHeight < 0 {
		return opts, fmt.Errorf("%w: tile size %dx%d", pyramid.ErrInvalidArgument, opts.TileWidth, opts.TileHeight)
	}
	if opts.Format == (spec.Format{}) {
		opts.Format = spec.Raw
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts, nil
}

func writeLevels(p *pyramid.Pyramid, outDir string, opts Options) ([]Level, error) {
	levels := make([]Level, 0, p.LevelCount())
	for index := range p.LevelCount() {
		level, err := buildLevel(p, index, outDir, opts)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", index, err)
		}
		levels = append(levels, level)
	}
	if err := pyramid.WriteScales(outDir, p); err != nil {
		return nil, err
	}
	return levels, nil
}

func buildLevel(p *pyramid.Pyramid, index int, outDir string, opts Options) (Level, error) {
	img, err := p.Image(index)
	if err != nil {
		return Level{}, err
	}
	scale, err := p.Scale(index)
	if err != nil {
		return Level{}, err
	}

	if opts.Cache != nil {
		cached := tilecache.Wrap(img, opts.Cache, fmt.Sprintf("%s/level-%d", outDir, index))
		defer cached.Close()
		img = cached
	}

	size := img.Bounds().Size()
	tileSize := image.Pt(TileSize(opts.TileWidth, size.X), TileSize(opts.TileHeight, size.Y))
	dir := pyramid.LevelDir(outDir, index)

	writeOpts := []tilestore.WriterOption{
		tilestore.WithTileSize(tileSize.X, tileSize.Y),
		tilestore.WithLogger(opts.Logger),
	}
	if opts.Progress != nil {
		writeOpts = append(writeOpts, tilestore.WithProgress(opts.Progress))
	}
	if err := tilestore.Write(dir, img, opts.Format, writeOpts...); err != nil {
		return Level{}, err
	}

	opts.Logger.Info("rasterpyramid: level written",
		"level", index, "scale", scale, "size", size, "tileSize", tileSize, "dir", dir)
	return Level{Index: index, Scale: scale, Dir: dir, Size: size, TileSize: tileSize}, nil
}
