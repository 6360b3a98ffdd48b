package spec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/magiconair/properties"
)

// HeaderFile is the name of the header file inside a level directory.
const HeaderFile = "image.properties"

var (
	ErrInvalidHeader     = errors.New("rasterpyramid: invalid image header")
	ErrUnknownFormat     = errors.New("rasterpyramid: unknown tile format")
	ErrUnsupportedLayout = errors.New("rasterpyramid: layout not supported by tile format")
	ErrInvalidTile       = errors.New("rasterpyramid: invalid tile data")
)

const (
	keyDataType        = "dataType"
	keyMinX            = "minX"
	keyMinY            = "minY"
	keyWidth           = "width"
	keyHeight          = "height"
	keyTileGridXOffset = "tileGridXOffset"
	keyTileGridYOffset = "tileGridYOffset"
	keyTileWidth       = "tileWidth"
	keyTileHeight      = "tileHeight"
	keyNumberOfBits    = "numberOfBits"
	keyTileFormat      = "tileFormat"
)

// Header is the persisted layout description of one tiled level.
type Header struct {
	DataType        raster.DataType
	NumberOfBits    int // 0 for unpacked samples
	MinX            int
	MinY            int
	Width           int
	Height          int
	TileGridXOffset int
	TileGridYOffset int
	TileWidth       int
	TileHeight      int
	TileFormat      Format
}

// NewHeader describes img stored with format.
func NewHeader(img raster.Image, format Format) Header {
	bounds, grid, layout := img.Bounds(), img.Grid(), img.Layout()
	return Header{
		DataType:        layout.DataType,
		NumberOfBits:    layout.Bits,
		MinX:            bounds.Min.X,
		MinY:            bounds.Min.Y,
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		TileGridXOffset: grid.OffsetX,
		TileGridYOffset: grid.OffsetY,
		TileWidth:       grid.TileWidth,
		TileHeight:      grid.TileHeight,
		TileFormat:      format,
	}
}

func (h *Header) Layout() raster.Layout {
	return raster.Layout{DataType: h.DataType, Bits: h.NumberOfBits}
}

func (h *Header) Bounds() image.Rectangle {
	return image.Rect(h.MinX, h.MinY, h.MinX+h.Width, h.MinY+h.Height)
}

func (h *Header) Grid() raster.Grid {
	return raster.Grid{
		OffsetX:    h.TileGridXOffset,
		OffsetY:    h.TileGridYOffset,
		TileWidth:  h.TileWidth,
		TileHeight: h.TileHeight,
	}
}

func (h *Header) Validate() error {
	if err := h.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidHeader, h.Width, h.Height)
	}
	if h.TileWidth <= 0 || h.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalidHeader, h.TileWidth, h.TileHeight)
	}
	return h.TileFormat.Validate(h.Layout())
}

func SerializeHeader(header *Header) ([]byte, error) {
	if err := header.Validate(); err != nil {
		return nil, err
	}

	p := properties.NewProperties()
	set := func(key string, value string) {
		p.Set(key, value)
	}
	set(keyDataType, header.DataType.String())
	set(keyMinX, strconv.Itoa(header.MinX))
	set(keyMinY, strconv.Itoa(header.MinY))
	set(keyWidth, strconv.Itoa(header.Width))
	set(keyHeight, strconv.Itoa(header.Height))
	set(keyTileGridXOffset, strconv.Itoa(header.TileGridXOffset))
	set(keyTileGridYOffset, strconv.Itoa(header.TileGridYOffset))
	set(keyTileWidth, strconv.Itoa(header.TileWidth))
	set(keyTileHeight, strconv.Itoa(header.TileHeight))
	if header.NumberOfBits != 0 {
		set(keyNumberOfBits, strconv.Itoa(header.NumberOfBits))
	}
	set(keyTileFormat, header.TileFormat.String())

	var buffer bytes.Buffer
	if _, err := p.Write(&buffer, properties.UTF8); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func DeserializeHeader(data []byte) (*Header, error) {
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	p.DisableExpansion = true

	required := func(key string) (int, error) {
		value, ok := p.Get(key)
		if !ok {
			return 0, fmt.Errorf("%w: missing %s", ErrInvalidHeader, key)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, key, err)
		}
		return n, nil
	}
	optional := func(key string) (int, error) {
		if _, ok := p.Get(key); !ok {
			return 0, nil
		}
		return required(key)
	}

	header := &Header{}

	name, ok := p.Get(keyDataType)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidHeader, keyDataType)
	}
	if header.DataType, err = raster.ParseDataType(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	for _, field := range []struct {
		key   string
		value *int
		parse func(string) (int, error)
	}{
		{keyWidth, &header.Width, required},
		{keyHeight, &header.Height, required},
		{keyTileWidth, &header.TileWidth, required},
		{keyTileHeight, &header.TileHeight, required},
		{keyMinX, &header.MinX, optional},
		{keyMinY, &header.MinY, optional},
		{keyTileGridXOffset, &header.TileGridXOffset, optional},
		{keyTileGridYOffset, &header.TileGridYOffset, optional},
		{keyNumberOfBits, &header.NumberOfBits, optional},
	} {
		if *field.value, err = field.parse(field.key); err != nil {
			return nil, err
		}
	}

	identifier, ok := p.Get(keyTileFormat)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidHeader, keyTileFormat)
	}
	if header.TileFormat, err = ParseFormat(identifier); err != nil {
		return nil, err
	}

	if err := header.Validate(); err != nil {
		return nil, err
	}
	return header, nil
}
