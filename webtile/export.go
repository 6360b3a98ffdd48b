package webtile

import (
	"fmt"
	"image"
	"log/slog"
	"math/bits"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

const DefaultTileSize = 256

type exportConfig struct {
	Name     string
	TileSize int
	Format   spec.Format
	Progress tilestore.Progress
	Logger   *slog.Logger
}

type ExportOption func(*exportConfig)

func WithName(name string) ExportOption {
	return func(c *exportConfig) { c.Name = name }
}

// WithTileSize sets the size of the square tiles of the tileset.
func WithTileSize(size int) ExportOption {
	return func(c *exportConfig) { c.TileSize = size }
}

// WithFormat sets the tile encoding. The default is the png codec.
func WithFormat(format spec.Format) ExportOption {
	return func(c *exportConfig) { c.Format = format }
}

func WithProgress(progress tilestore.Progress) ExportOption {
	return func(c *exportConfig) { c.Progress = progress }
}

func WithLogger(logger *slog.Logger) ExportOption {
	return func(c *exportConfig) { c.Logger = logger }
}

type noProgress struct{}

func (noProgress) Start(int) {}
func (noProgress) Add(int)   {}
func (noProgress) Finish()   {}

// Export writes every level of p to w, re-tiled to square tiles. Level L
// goes to zoom MaxZoom-L; MinZoom is the smallest zoom whose 2^z grid
// holds the tiles of the coarsest level, and every finer level one more.
// Metadata is written first if w implements MetadataWriter. Export does
// not finalize w.
func Export(p *pyramid.Pyramid, w Writer, opts ...ExportOption) (*Metadata, error) {
	config := exportConfig{
		TileSize: DefaultTileSize,
		Format:   spec.Codec("png"),
		Progress: noProgress{},
		Logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.TileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d", pyramid.ErrInvalidArgument, config.TileSize)
	}

	levels := make([]raster.Image, p.LevelCount())
	for index := range levels {
		img, err := p.Image(index)
		if err != nil {
			return nil, err
		}
		if err := config.Format.Validate(img.Layout()); err != nil {
			return nil, err
		}
		bounds := img.Bounds()
		levels[index] = raster.Retile(img, raster.Grid{
			OffsetX:    bounds.Min.X,
			OffsetY:    bounds.Min.Y,
			TileWidth:  config.TileSize,
			TileHeight: config.TileSize,
		})
	}

	metadata, err := newMetadata(p, levels, config)
	if err != nil {
		return nil, err
	}
	if mw, ok := w.(MetadataWriter); ok {
		if err := mw.WriteMetadata(metadata.Map()); err != nil {
			return nil, err
		}
	}

	total := 0
	for _, img := range levels {
		tiles := raster.TileBounds(img)
		total += tiles.Dx() * tiles.Dy()
	}
	config.Progress.Start(total)
	defer config.Progress.Finish()

	for index, img := range levels {
		zoom := metadata.Zoom(index)
		config.Logger.Debug("rasterpyramid: exporting level", "level", index, "zoom", zoom)

		err := raster.VisitTiles(img, raster.HilbertTiles(img), func(id raster.TileID, tile *raster.Raster) error {
			data, err := config.Format.Encode(id, tile)
			if err != nil {
				return err
			}
			tileID := ID{X: uint32(id.X), Y: uint32(id.Y), Z: zoom}
			if err := w.WriteTile(tileID, data); err != nil {
				return fmt.Errorf("tile %v: %w", tileID, err)
			}
			config.Progress.Add(1)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", index, err)
		}
	}
	return metadata, nil
}

func newMetadata(p *pyramid.Pyramid, levels []raster.Image, config exportConfig) (*Metadata, error) {
	metadata := &Metadata{
		Name:     config.Name,
		Format:   config.Format,
		Layout:   levels[0].Layout(),
		TileSize: config.TileSize,
	}

	// Each finer level is one zoom deeper; find the base zoom that fits
	// every level into its 2^z by 2^z grid.
	base := 0
	for index, img := range levels {
		tiles := raster.TileBounds(img)
		scale, err := p.Scale(index)
		if err != nil {
			return nil, err
		}
		metadata.Scales = append(metadata.Scales, scale)
		metadata.LevelSizes = append(metadata.LevelSizes, img.Bounds().Size())

		side := max(tiles.Dx(), tiles.Dy(), 1)
		need := bits.Len(uint(side - 1)) // smallest z with 2^z >= side
		depth := len(levels) - 1 - index
		base = max(base, need-depth)
	}
	metadata.MinZoom = base
	metadata.MaxZoom = base + len(levels) - 1
	if metadata.MaxZoom >= 32 {
		return nil, fmt.Errorf("%w: zoom %d out of range", pyramid.ErrInvalidArgument, metadata.MaxZoom)
	}
	return metadata, nil
}

// levelImage is one level of a tileset read back through a Reader.
type levelImage struct {
	reader   Reader
	format   spec.Format
	layout   raster.Layout
	bounds   image.Rectangle
	tileSize int
	zoom     uint32
}

func (m *levelImage) Layout() raster.Layout   { return m.layout }
func (m *levelImage) Bounds() image.Rectangle { return m.bounds }
func (m *levelImage) Grid() raster.Grid {
	return raster.Grid{TileWidth: m.tileSize, TileHeight: m.tileSize}
}

func (m *levelImage) Tile(id raster.TileID) (*raster.Raster, error) {
	if err := raster.CheckTile(m, id); err != nil {
		return nil, err
	}
	tileID := ID{X: uint32(id.X), Y: uint32(id.Y), Z: m.zoom}
	data, err := m.reader.ReadTile(tileID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: tile %v is missing", spec.ErrInvalidTile, tileID)
	}
	return m.format.Decode(id, data, m.layout, raster.TileRect(m, id))
}

// Import returns the pyramid stored in a tileset written by Export.
// Level images have their origin at (0, 0).
func Import(r Reader, metadata *Metadata, opts ...pyramid.Option) (*pyramid.Pyramid, error) {
	opts = append([]pyramid.Option{pyramid.WithScales(metadata.Scales)}, opts...)
	return pyramid.New(len(metadata.LevelSizes), func(g level.Geometry) (raster.Image, error) {
		size := metadata.LevelSizes[g.Index()]
		return &levelImage{
			reader:   r,
			format:   metadata.Format,
			layout:   metadata.Layout,
			bounds:   image.Rectangle{Max: size},
			tileSize: metadata.TileSize,
			zoom:     metadata.Zoom(g.Index()),
		}, nil
	}, opts...)
}
