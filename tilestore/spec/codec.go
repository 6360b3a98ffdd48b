package spec

import (
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/eak1mov/go-rasterpyramid/raster"
)

// TileCodec encodes tiles for the Codec formats.
type TileCodec interface {
	Name() string
	Supports(layout raster.Layout) bool
	Encode(tile *raster.Raster) ([]byte, error)

	// Decode decodes a tile and copies its samples into a raster of the
	// given layout covering rect. Data of another size is rejected.
	Decode(data []byte, layout raster.Layout, rect image.Rectangle) (*raster.Raster, error)
}

var (
	codecsMu sync.RWMutex
	codecs   = make(map[string]TileCodec)
)

// RegisterCodec makes a codec available by name. It panics if the name is
// taken or clashes with a built-in format identifier.
func RegisterCodec(codec TileCodec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()

	name := codec.Name()
	if name == "" || name == Raw.String() || name == RawZip.String() {
		panic(fmt.Sprintf("spec: invalid codec name %q", name))
	}
	if _, dup := codecs[name]; dup {
		panic(fmt.Sprintf("spec: codec %q registered twice", name))
	}
	codecs[name] = codec
}

func LookupCodec(name string) (TileCodec, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()

	codec, ok := codecs[name]
	return codec, ok
}

// Codecs returns the sorted names of all registered codecs.
func Codecs() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()

	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func init() {
	RegisterCodec(pngCodec)
	RegisterCodec(tiffCodec)
	RegisterCodec(zstdCodec{})
	RegisterCodec(lz4Codec{})
}
