package raster

import (
	"errors"
	"iter"
	"math/bits"

	"github.com/google/hilbert"
)

var errVisitCancelled = errors.New("visit cancelled")

// Tiles returns an iterator over all tile IDs of img in row-major order.
func Tiles(img Image) iter.Seq[TileID] {
	tiles := TileBounds(img)
	return func(yield func(TileID) bool) {
		for y := tiles.Min.Y; y < tiles.Max.Y; y++ {
			for x := tiles.Min.X; x < tiles.Max.X; x++ {
				if !yield(TileID{X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// HilbertTiles returns an iterator over all tile IDs of img along a Hilbert
// curve, so that consecutive tiles are spatial neighbours.
func HilbertTiles(img Image) iter.Seq[TileID] {
	tiles := TileBounds(img)
	side := max(tiles.Dx(), tiles.Dy(), 1)
	n := 1 << bits.Len(uint(side-1))
	return func(yield func(TileID) bool) {
		h, err := hilbert.NewHilbert(n)
		if err != nil {
			panic(err)
		}
		for d := range n * n {
			x, y, _ := h.Map(d)
			if x >= tiles.Dx() || y >= tiles.Dy() {
				continue
			}
			if !yield(TileID{X: tiles.Min.X + x, Y: tiles.Min.Y + y}) {
				return
			}
		}
	}
}

// VisitTiles computes every tile produced by order and passes it to visitor.
// It stops at the first error.
func VisitTiles(img Image, order iter.Seq[TileID], visitor func(TileID, *Raster) error) error {
	for id := range order {
		tile, err := img.Tile(id)
		if err != nil {
			return err
		}
		if err := visitor(id, tile); err != nil {
			return err
		}
	}
	return nil
}

// IterTiles returns an iterator over computed tiles in row-major order.
// Iteration panics on tile errors.
func IterTiles(img Image) iter.Seq2[TileID, *Raster] {
	return func(yield func(TileID, *Raster) bool) {
		err := VisitTiles(img, Tiles(img), func(id TileID, tile *Raster) error {
			if !yield(id, tile) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}
