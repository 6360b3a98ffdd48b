package spec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"golang.org/x/image/tiff"
)

// imageCodec stores tiles as grey images. Only uint8 and uint16 samples
// have a lossless grey representation.
type imageCodec struct {
	name   string
	encode func(io.Writer, image.Image) error
	decode func(io.Reader) (image.Image, error)
}

var pngCodec = &imageCodec{
	name: "png",
	encode: func(w io.Writer, img image.Image) error {
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		return encoder.Encode(w, img)
	},
	decode: png.Decode,
}

var tiffCodec = &imageCodec{
	name: "tiff",
	encode: func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
	decode: tiff.Decode,
}

func (c *imageCodec) Name() string { return c.name }

func (c *imageCodec) Supports(layout raster.Layout) bool {
	switch layout.DataType {
	case raster.Uint8:
		return true
	case raster.Uint16:
		return !layout.Packed()
	}
	return false
}

func (c *imageCodec) Encode(tile *raster.Raster) ([]byte, error) {
	img, err := c.toImage(tile)
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := c.encode(&buffer, img); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", c.name, err)
	}
	return buffer.Bytes(), nil
}

func (c *imageCodec) toImage(tile *raster.Raster) (image.Image, error) {
	if !c.Supports(tile.Layout) {
		return nil, fmt.Errorf("%w: %s cannot store %v", ErrUnsupportedLayout, c.name, tile.Layout)
	}
	rect := image.Rect(0, 0, tile.Width(), tile.Height())

	if tile.Layout.DataType == raster.Uint16 {
		return &image.Gray16{Pix: tile.Data, Stride: tile.Stride(), Rect: rect}, nil
	}
	if !tile.Layout.Packed() {
		return &image.Gray{Pix: tile.Data, Stride: tile.Stride(), Rect: rect}, nil
	}

	gray := image.NewGray(rect)
	for y := range tile.Height() {
		for x := range tile.Width() {
			v := tile.At(tile.Rect.Min.X+x, tile.Rect.Min.Y+y)
			gray.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return gray, nil
}

func (c *imageCodec) Decode(data []byte, layout raster.Layout, rect image.Rectangle) (*raster.Raster, error) {
	if !c.Supports(layout) {
		return nil, fmt.Errorf("%w: %s cannot store %v", ErrUnsupportedLayout, c.name, layout)
	}
	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
	}
	bounds := img.Bounds()
	if bounds.Size() != rect.Size() {
		return nil, fmt.Errorf("%w: image size %v, want %v", ErrInvalidTile, bounds.Size(), rect.Size())
	}

	return fromImage(img, layout, rect), nil
}

// FromImage converts a decoded grey image to a raster with its origin
// at (0, 0): 16-bit images become uint16 samples, all others are
// converted to 8-bit grey.
func FromImage(img image.Image) *raster.Raster {
	layout := raster.Layout{DataType: raster.Uint8}
	switch img.ColorModel() {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		layout.DataType = raster.Uint16
	}
	return fromImage(img, layout, image.Rectangle{Max: img.Bounds().Size()})
}

func fromImage(img image.Image, layout raster.Layout, rect image.Rectangle) *raster.Raster {
	bounds := img.Bounds()
	tile := raster.New(layout, rect)
	switch src := img.(type) {
	case *image.Gray:
		if !layout.Packed() && layout.DataType == raster.Uint8 {
			copyRows(tile, src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y))
			return tile
		}
	case *image.Gray16:
		if layout.DataType == raster.Uint16 {
			copyRows(tile, src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y))
			return tile
		}
	}

	for y := range rect.Dy() {
		for x := range rect.Dx() {
			gray := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			v := float64(gray.Y)
			if layout.DataType == raster.Uint8 {
				v = float64(gray.Y >> 8)
			}
			tile.Set(rect.Min.X+x, rect.Min.Y+y, v)
		}
	}
	return tile
}

func copyRows(tile *raster.Raster, pix []byte, stride, offset int) {
	rowBytes := tile.Stride()
	for y := range tile.Height() {
		from := offset + y*stride
		copy(tile.Data[y*rowBytes:(y+1)*rowBytes], pix[from:from+rowBytes])
	}
}
