package spec

import (
	"fmt"
	"image"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// zstd.Encoder and zstd.Decoder are safe for concurrent EncodeAll and
// DecodeAll calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("spec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("spec: zstd decoder initialization failed: " + err.Error())
	}
}

// zstdCodec compresses raw samples with zstd.
type zstdCodec struct{}

func (zstdCodec) Name() string                { return "zstd" }
func (zstdCodec) Supports(raster.Layout) bool { return true }

func (zstdCodec) Encode(tile *raster.Raster) ([]byte, error) {
	return zstdEncoder.EncodeAll(tile.Data, nil), nil
}

func (zstdCodec) Decode(data []byte, layout raster.Layout, rect image.Rectangle) (*raster.Raster, error) {
	size := layout.Size(rect.Dx(), rect.Dy())
	result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrInvalidTile, err)
	}
	return rawTile(result, layout, rect)
}

// lz4Codec compresses raw samples as a single lz4 block. Incompressible
// tiles are stored as they are; the expected tile size tells them apart.
type lz4Codec struct{}

func (lz4Codec) Name() string                { return "lz4" }
func (lz4Codec) Supports(raster.Layout) bool { return true }

func (lz4Codec) Encode(tile *raster.Raster) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(tile.Data)))
	written, err := lz4.CompressBlock(tile.Data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if written == 0 || written >= len(tile.Data) {
		return tile.Data, nil
	}
	return destination[:written], nil
}

func (lz4Codec) Decode(data []byte, layout raster.Layout, rect image.Rectangle) (*raster.Raster, error) {
	size := layout.Size(rect.Dx(), rect.Dy())
	if len(data) == size {
		return rawTile(data, layout, rect)
	}
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(data, destination)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", ErrInvalidTile, err)
	}
	return rawTile(destination[:read], layout, rect)
}
