package tilestore

import (
	"image"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

// Progress receives the number of tiles to write and written.
type Progress interface {
	Start(total int)
	Add(n int)
	Finish()
}

type writerConfig struct {
	TileSize image.Point
	Order    func(raster.Image) iter.Seq[raster.TileID]
	Progress Progress
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

// WithTileSize re-tiles the image before writing. The grid origin is
// moved to the image origin.
func WithTileSize(width, height int) WriterOption {
	return func(c *writerConfig) { c.TileSize = image.Pt(width, height) }
}

// WithOrder sets the order tiles are computed and written in. The default
// is raster.HilbertTiles.
func WithOrder(order func(raster.Image) iter.Seq[raster.TileID]) WriterOption {
	return func(c *writerConfig) { c.Order = order }
}

func WithProgress(progress Progress) WriterOption {
	return func(c *writerConfig) { c.Progress = progress }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

type noProgress struct{}

func (noProgress) Start(int) {}
func (noProgress) Add(int)   {}
func (noProgress) Finish()   {}

// Write stores img into the level directory dir: the header first, then
// every tile. The first error aborts the write.
func Write(dir string, img raster.Image, format spec.Format, opts ...WriterOption) error {
	config := writerConfig{
		Order:    raster.HilbertTiles,
		Progress: noProgress{},
		Logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	if size := config.TileSize; size.X > 0 && size.Y > 0 {
		bounds := img.Bounds()
		img = raster.Retile(img, raster.Grid{
			OffsetX:    bounds.Min.X,
			OffsetY:    bounds.Min.Y,
			TileWidth:  size.X,
			TileHeight: size.Y,
		})
	}

	header := spec.NewHeader(img, format)
	headerData, err := spec.SerializeHeader(&header)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, spec.HeaderFile), headerData, 0644); err != nil {
		return err
	}

	tiles := raster.TileBounds(img)
	config.Logger.Debug("rasterpyramid: writing level",
		"dir", dir, "format", format, "size", img.Bounds().Size(), "tiles", tiles.Size())

	config.Progress.Start(tiles.Dx() * tiles.Dy())
	defer config.Progress.Finish()

	return raster.VisitTiles(img, config.Order(img), func(id raster.TileID, tile *raster.Raster) error {
		data, err := format.Encode(id, tile)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, format.TileName(id)), data, 0644); err != nil {
			return err
		}
		config.Progress.Add(1)
		return nil
	})
}
