package webtile

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

var ErrInvalidMetadata = errors.New("rasterpyramid: invalid tileset metadata")

// Metadata describes an exported pyramid. Level L is stored at zoom
// MaxZoom-L.
type Metadata struct {
	Name       string
	Format     spec.Format
	Layout     raster.Layout
	TileSize   int
	MinZoom    int
	MaxZoom    int
	LevelSizes []image.Point
	Scales     []float64
}

func (m *Metadata) Zoom(levelIndex int) uint32 {
	return uint32(m.MaxZoom - levelIndex)
}

// Map returns the metadata as tileset key/value pairs.
func (m *Metadata) Map() map[string]string {
	sizes := make([]string, len(m.LevelSizes))
	for i, size := range m.LevelSizes {
		sizes[i] = fmt.Sprintf("%dx%d", size.X, size.Y)
	}
	scales := make([]string, len(m.Scales))
	for i, scale := range m.Scales {
		scales[i] = strconv.FormatFloat(scale, 'g', -1, 64)
	}
	return map[string]string{
		"name":         m.Name,
		"format":       m.Format.String(),
		"type":         "overlay",
		"minzoom":      strconv.Itoa(m.MinZoom),
		"maxzoom":      strconv.Itoa(m.MaxZoom),
		"dataType":     m.Layout.DataType.String(),
		"numberOfBits": strconv.Itoa(m.Layout.Bits),
		"tileSize":     strconv.Itoa(m.TileSize),
		"levels":       strings.Join(sizes, ","),
		"scales":       strings.Join(scales, ","),
	}
}

func ParseMetadata(values map[string]string) (*Metadata, error) {
	get := func(key string) (string, error) {
		value, ok := values[key]
		if !ok {
			return "", fmt.Errorf("%w: missing %s", ErrInvalidMetadata, key)
		}
		return value, nil
	}
	getInt := func(key string) (int, error) {
		value, err := get(key)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidMetadata, key, err)
		}
		return n, nil
	}

	m := &Metadata{Name: values["name"]}

	format, err := get("format")
	if err != nil {
		return nil, err
	}
	if m.Format, err = spec.ParseFormat(format); err != nil {
		return nil, err
	}

	dataType, err := get("dataType")
	if err != nil {
		return nil, err
	}
	if m.Layout.DataType, err = raster.ParseDataType(dataType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	if m.Layout.Bits, err = getInt("numberOfBits"); err != nil {
		return nil, err
	}
	if err := m.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	if m.TileSize, err = getInt("tileSize"); err != nil {
		return nil, err
	}
	if m.MinZoom, err = getInt("minzoom"); err != nil {
		return nil, err
	}
	if m.MaxZoom, err = getInt("maxzoom"); err != nil {
		return nil, err
	}

	levels, err := get("levels")
	if err != nil {
		return nil, err
	}
	for _, level := range strings.Split(levels, ",") {
		var size image.Point
		if _, err := fmt.Sscanf(level, "%dx%d", &size.X, &size.Y); err != nil {
			return nil, fmt.Errorf("%w: level size %q: %w", ErrInvalidMetadata, level, err)
		}
		m.LevelSizes = append(m.LevelSizes, size)
	}

	if scales, ok := values["scales"]; ok {
		for _, value := range strings.Split(scales, ",") {
			scale, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: scale %q: %w", ErrInvalidMetadata, value, err)
			}
			m.Scales = append(m.Scales, scale)
		}
		if len(m.Scales) != len(m.LevelSizes) {
			return nil, fmt.Errorf("%w: %d scales for %d levels", ErrInvalidMetadata, len(m.Scales), len(m.LevelSizes))
		}
	}

	if m.TileSize <= 0 || m.MaxZoom-m.MinZoom+1 != len(m.LevelSizes) {
		return nil, fmt.Errorf("%w: tile size %d, zoom %d-%d, %d levels",
			ErrInvalidMetadata, m.TileSize, m.MinZoom, m.MaxZoom, len(m.LevelSizes))
	}
	return m, nil
}
