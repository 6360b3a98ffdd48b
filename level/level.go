// Package level maps coordinates between a pyramid level and level 0.
//
// All tile and level consumers go through Geometry so that every one of
// them rounds the same way; this keeps tile boundaries of non-zero levels
// seamless.
package level

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var ErrInvalidArgument = errors.New("rasterpyramid: invalid argument")

// Geometry describes one pyramid level.
type Geometry struct {
	index int
	scale float64
}

// New returns the geometry of level index with the given scale factor.
// It fails unless index >= 0 and scale >= 1.
func New(index int, scale float64) (Geometry, error) {
	if index < 0 {
		return Geometry{}, fmt.Errorf("%w: level index %d", ErrInvalidArgument, index)
	}
	if !(scale >= 1) || math.IsInf(scale, 0) {
		return Geometry{}, fmt.Errorf("%w: level scale %v", ErrInvalidArgument, scale)
	}
	return Geometry{index: index, scale: scale}, nil
}

// Doubling returns the default geometry of level index, scale 2^index.
func Doubling(index int) (Geometry, error) {
	if index < 0 || index > 62 {
		return Geometry{}, fmt.Errorf("%w: level index %d", ErrInvalidArgument, index)
	}
	return New(index, float64(uint64(1)<<index))
}

func (g Geometry) Index() int      { return g.index }
func (g Geometry) Scale() float64  { return g.scale }
func (g Geometry) String() string  { return fmt.Sprintf("level %d (scale %g)", g.index, g.scale) }
func (g Geometry) IsLevel0() bool  { return g.scale == 1 }
func (g Geometry) floor(v int) int { return int(math.Floor(g.scale * float64(v))) }
func (g Geometry) round(v int) int { return int(math.Round(float64(v) / g.scale)) }

// SourceCoord maps a destination pixel, row or column of this level to
// level-0 space, clamped to [min, max].
func (g Geometry) SourceCoord(dest, min, max int) int {
	return clamp(g.floor(dest), min, max)
}

// SourceLength maps a length of this level to level-0 space, clamped to
// [1, sourceLength].
func (g Geometry) SourceLength(destLength, sourceLength int) int {
	return clamp(g.floor(destLength), 1, sourceLength)
}

// LevelSize returns the size of this level for a level-0 size,
// round(size / scale) but never less than 1.
func (g Geometry) LevelSize(level0Size int) int {
	return max(g.round(level0Size), 1)
}

// LevelBounds returns the bounds of this level for level-0 bounds. The
// origin is scaled the same way as the size.
func (g Geometry) LevelBounds(level0 image.Rectangle) image.Rectangle {
	origin := image.Pt(g.round(level0.Min.X), g.round(level0.Min.Y))
	return image.Rectangle{
		Min: origin,
		Max: origin.Add(image.Pt(g.LevelSize(level0.Dx()), g.LevelSize(level0.Dy()))),
	}
}

// SourceRect maps a rectangle of this level to the level-0 rectangle that
// holds every source pixel SourceCoord can address for it, clipped to
// level0.
func (g Geometry) SourceRect(dest image.Rectangle, level0 image.Rectangle) image.Rectangle {
	if dest.Empty() {
		return image.Rectangle{}
	}
	minX := g.SourceCoord(dest.Min.X, level0.Min.X, level0.Max.X-1)
	minY := g.SourceCoord(dest.Min.Y, level0.Min.Y, level0.Max.Y-1)
	maxX := g.SourceCoord(dest.Max.X-1, level0.Min.X, level0.Max.X-1)
	maxY := g.SourceCoord(dest.Max.Y-1, level0.Min.Y, level0.Max.Y-1)
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
