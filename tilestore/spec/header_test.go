package spec_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
	"github.com/stretchr/testify/require"
)

func TestHeaderSerializer(t *testing.T) {
	for _, header1 := range []spec.Header{
		{
			DataType: raster.Uint16, Width: 1000, Height: 1000,
			TileWidth: 256, TileHeight: 256, TileFormat: spec.Raw,
		},
		{
			DataType: raster.Uint8, NumberOfBits: 4, MinX: -10, MinY: 5,
			Width: 33, Height: 17, TileGridXOffset: -10, TileGridYOffset: 1,
			TileWidth: 8, TileHeight: 8, TileFormat: spec.RawZip,
		},
		{
			DataType: raster.Float32, Width: 5, Height: 7,
			TileWidth: 5, TileHeight: 7, TileFormat: spec.Codec("zstd"),
		},
	} {
		headerData, err := spec.SerializeHeader(&header1)
		require.NoError(t, err)
		header2, err := spec.DeserializeHeader(headerData)
		require.NoError(t, err)
		require.Equal(t, header1, *header2)
	}
}

func TestHeaderText(t *testing.T) {
	header := spec.Header{
		DataType: raster.Int16, Width: 10, Height: 20,
		TileWidth: 5, TileHeight: 10, TileFormat: spec.RawZip,
	}
	data, err := spec.SerializeHeader(&header)
	require.NoError(t, err)
	text := string(data)
	for _, line := range []string{
		"dataType = int16", "width = 10", "height = 20", "tileWidth = 5",
		"tileHeight = 10", "tileFormat = raw.zip", "minX = 0",
	} {
		require.Contains(t, text, line)
	}
	require.NotContains(t, text, "numberOfBits")
}

func TestHeaderOptionalFields(t *testing.T) {
	header, err := spec.DeserializeHeader([]byte(strings.Join([]string{
		"dataType=float64",
		"width=100",
		"height=50",
		"tileWidth=64",
		"tileHeight=64",
		"tileFormat=raw",
	}, "\n")))
	require.NoError(t, err)
	require.Equal(t, 0, header.MinX)
	require.Equal(t, 0, header.TileGridYOffset)
	require.Equal(t, 0, header.NumberOfBits)
	require.Equal(t, raster.Layout{DataType: raster.Float64}, header.Layout())
}

func TestHeaderErrors(t *testing.T) {
	valid := map[string]string{
		"dataType":   "uint8",
		"width":      "10",
		"height":     "10",
		"tileWidth":  "4",
		"tileHeight": "4",
		"tileFormat": "raw",
	}
	build := func(key, value string) []byte {
		var lines []string
		for k, v := range valid {
			if k == key {
				if value == "" {
					continue
				}
				v = value
			}
			lines = append(lines, k+"="+v)
		}
		return []byte(strings.Join(lines, "\n"))
	}

	for _, tc := range []struct {
		Key   string
		Value string
		Want  error
	}{
		{"dataType", "", spec.ErrInvalidHeader},
		{"dataType", "complex128", spec.ErrInvalidHeader},
		{"width", "", spec.ErrInvalidHeader},
		{"height", "ten", spec.ErrInvalidHeader},
		{"tileWidth", "0", spec.ErrInvalidHeader},
		{"tileHeight", "", spec.ErrInvalidHeader},
		{"minX", "left", spec.ErrInvalidHeader},
		{"numberOfBits", "3", spec.ErrInvalidHeader},
		{"tileFormat", "", spec.ErrInvalidHeader},
		{"tileFormat", "jpeg2000", spec.ErrUnknownFormat},
	} {
		_, err := spec.DeserializeHeader(build(tc.Key, tc.Value))
		require.Truef(t, errors.Is(err, tc.Want), "%s=%q: %v", tc.Key, tc.Value, err)
	}
}

func TestHeaderUnsupportedLayout(t *testing.T) {
	header := spec.Header{
		DataType: raster.Float32, Width: 10, Height: 10,
		TileWidth: 4, TileHeight: 4, TileFormat: spec.Codec("png"),
	}
	_, err := spec.SerializeHeader(&header)
	require.Truef(t, errors.Is(err, spec.ErrUnsupportedLayout), "%v", err)
}
