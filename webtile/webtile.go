// Package webtile exports pyramids as z/x/y tilesets and reads them back.
//
// Tileset containers (see packages mb and xyz) implement the Writer and
// Reader interfaces of this package.
package webtile

import (
	"errors"
	"iter"
)

var ErrInvalidID = errors.New("rasterpyramid: tile outside its zoom level")

var errVisitCancelled = errors.New("visit cancelled")

// ID represents tile coordinates in the XYZ scheme.
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t ID) Valid() bool {
	return t.Z < 32 && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

// Writer defines an interface for writing tiles to a tileset.
type Writer interface {
	WriteTile(tileID ID, tileData []byte) error

	// Finalize completes the writing process. It must be called before
	// closing the Writer.
	Finalize() error
}

// Reader reads single tiles. A missing tile is an empty slice with no
// error.
type Reader interface {
	ReadTile(tileID ID) ([]byte, error)
}

type Visitor interface {
	VisitTiles(visitor func(ID, []byte) error) error
}

type MetadataWriter interface {
	WriteMetadata(metadata map[string]string) error
}

type MetadataReader interface {
	ReadMetadata() (map[string]string, error)
}

// IterTiles returns an iterator over all tiles of the tileset.
// Iteration panics on errors.
func IterTiles(r Visitor) iter.Seq2[ID, []byte] {
	return func(yield func(ID, []byte) bool) {
		err := r.VisitTiles(func(tileID ID, tileData []byte) error {
			if !yield(tileID, tileData) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}
