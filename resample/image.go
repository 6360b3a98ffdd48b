package resample

import (
	"fmt"
	"image"
	"math"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/raster"
)

// Transform maps source pixel centres to destination pixel centres:
// dst + 0.5 = (src + 0.5) * Scale + Offset, per axis.
type Transform struct {
	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64
}

type resampleConfig struct {
	fill    float64
	hasFill bool
	tile    image.Point
}

type Option func(*resampleConfig)

// WithFill makes samples outside the source bounds take value fill.
// By default the nearest edge sample is replicated.
func WithFill(fill float64) Option {
	return func(c *resampleConfig) { c.fill, c.hasFill = fill, true }
}

// WithTileSize sets the tile size of the resampled image. The default is
// the tile size of the source.
func WithTileSize(width, height int) Option {
	return func(c *resampleConfig) { c.tile = image.Pt(width, height) }
}

// Resample returns a lazy view of img transformed by t, covering bounds.
func Resample(img raster.Image, t Transform, bounds image.Rectangle, kernel Kernel, opts ...Option) (raster.Image, error) {
	for _, s := range []float64{t.ScaleX, t.ScaleY} {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: scale %v", level.ErrInvalidArgument, s)
		}
	}
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: empty bounds %v", level.ErrInvalidArgument, bounds)
	}

	config := resampleConfig{tile: image.Pt(img.Grid().TileWidth, img.Grid().TileHeight)}
	for _, opt := range opts {
		opt(&config)
	}

	src := img.Bounds()
	clamp := !config.hasFill
	return &view{
		src:    img,
		bounds: bounds,
		grid:   gridAt(bounds, config.tile),
		x:      linearAxis(t.ScaleX, t.OffsetX, src.Min.X, src.Max.X, kernel, clamp),
		y:      linearAxis(t.ScaleY, t.OffsetY, src.Min.Y, src.Max.Y, kernel, clamp),
		fill:   config.fill,
	}, nil
}

// Scale resamples img by the factors scaleX and scaleY. The origin is
// scaled too; the size is rounded and never less than one pixel.
func Scale(img raster.Image, scaleX, scaleY float64, kernel Kernel, opts ...Option) (raster.Image, error) {
	if scaleX == 1 && scaleY == 1 {
		return img, nil
	}
	src := img.Bounds()
	minX := int(math.Round(float64(src.Min.X) * scaleX))
	minY := int(math.Round(float64(src.Min.Y) * scaleY))
	bounds := image.Rect(minX, minY,
		minX+max(1, int(math.Round(float64(src.Dx())*scaleX))),
		minY+max(1, int(math.Round(float64(src.Dy())*scaleY))))

	t := Transform{
		ScaleX:  scaleX,
		ScaleY:  scaleY,
		OffsetX: float64(minX) - float64(src.Min.X)*scaleX,
		OffsetY: float64(minY) - float64(src.Min.Y)*scaleY,
	}
	return Resample(img, t, bounds, kernel, opts...)
}

// Shift translates img by (dx, dy) pixels and crops or pads the result to
// bounds. Samples outside img take value fill.
func Shift(img raster.Image, dx, dy float64, bounds image.Rectangle, fill float64, kernel Kernel, opts ...Option) (raster.Image, error) {
	if dx == 0 && dy == 0 && bounds == img.Bounds() {
		return img, nil
	}
	t := Transform{ScaleX: 1, ScaleY: 1, OffsetX: dx, OffsetY: dy}
	return Resample(img, t, bounds, kernel, append(opts, WithFill(fill))...)
}

// Level returns the nearest-neighbour view of a level-0 image at geometry
// g. Source samples are picked with g.SourceCoord.
func Level(img raster.Image, g level.Geometry, opts ...Option) raster.Image {
	if g.IsLevel0() {
		return img
	}
	config := resampleConfig{tile: image.Pt(img.Grid().TileWidth, img.Grid().TileHeight)}
	for _, opt := range opts {
		opt(&config)
	}

	src := img.Bounds()
	bounds := g.LevelBounds(src)
	return &view{
		src:    img,
		bounds: bounds,
		grid:   gridAt(bounds, config.tile),
		x: func(dst int) []tap {
			return []tap{{index: g.SourceCoord(dst, src.Min.X, src.Max.X-1), weight: 1}}
		},
		y: func(dst int) []tap {
			return []tap{{index: g.SourceCoord(dst, src.Min.Y, src.Max.Y-1), weight: 1}}
		},
	}
}

func gridAt(bounds image.Rectangle, tile image.Point) raster.Grid {
	return raster.Grid{
		OffsetX:    bounds.Min.X,
		OffsetY:    bounds.Min.Y,
		TileWidth:  max(1, tile.X),
		TileHeight: max(1, tile.Y),
	}
}

type view struct {
	src    raster.Image
	bounds image.Rectangle
	grid   raster.Grid
	x, y   axis
	fill   float64
}

func (m *view) Layout() raster.Layout   { return m.src.Layout() }
func (m *view) Bounds() image.Rectangle { return m.bounds }
func (m *view) Grid() raster.Grid       { return m.grid }

func (m *view) Tile(id raster.TileID) (*raster.Raster, error) {
	if err := raster.CheckTile(m, id); err != nil {
		return nil, err
	}
	rect := raster.TileRect(m, id)

	cols := make([][]tap, rect.Dx())
	for i := range cols {
		cols[i] = m.x(rect.Min.X + i)
	}
	rows := make([][]tap, rect.Dy())
	for j := range rows {
		rows[j] = m.y(rect.Min.Y + j)
	}
	window := image.Rectangle{
		Min: image.Pt(spanStart(cols), spanStart(rows)),
		Max: image.Pt(spanEnd(cols), spanEnd(rows)),
	}

	source, err := raster.Read(m.src, window)
	if err != nil {
		return nil, err
	}
	srcBounds := m.src.Bounds()
	sample := func(x, y int) float64 {
		if !(image.Point{x, y}).In(srcBounds) {
			return m.fill
		}
		return source.At(x, y)
	}

	// Horizontal pass over every window row, then vertical pass.
	width := rect.Dx()
	horizontal := make([]float64, window.Dy()*width)
	for sy := window.Min.Y; sy < window.Max.Y; sy++ {
		row := horizontal[(sy-window.Min.Y)*width:]
		for i, taps := range cols {
			v := 0.0
			for _, tap := range taps {
				v += tap.weight * sample(tap.index, sy)
			}
			row[i] = v
		}
	}

	tile := raster.New(m.src.Layout(), rect)
	for j, taps := range rows {
		for i := range width {
			v := 0.0
			for _, tap := range taps {
				v += tap.weight * horizontal[(tap.index-window.Min.Y)*width+i]
			}
			tile.Set(rect.Min.X+i, rect.Min.Y+j, v)
		}
	}
	return tile, nil
}

func spanStart(taps [][]tap) int {
	lo := math.MaxInt
	for _, t := range taps {
		for _, tap := range t {
			lo = min(lo, tap.index)
		}
	}
	return lo
}

func spanEnd(taps [][]tap) int {
	hi := math.MinInt
	for _, t := range taps {
		for _, tap := range t {
			hi = max(hi, tap.index)
		}
	}
	return hi + 1
}
