package spec

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/klauspost/compress/zip"
)

type formatKind uint8

const (
	kindUnknown formatKind = iota
	kindRaw
	kindRawZip
	kindCodec
)

// Format identifies how the tiles of a level are encoded on disk.
// It is one of Raw, RawZip or Codec(name).
type Format struct {
	kind  formatKind
	codec string
}

var (
	// Raw stores the samples of each tile as they are, see raster.Raster.
	Raw = Format{kind: kindRaw}
	// RawZip stores each Raw tile as the single entry of a zip archive.
	RawZip = Format{kind: kindRawZip}
)

// Codec returns the format that encodes tiles with the registered
// codec name.
func Codec(name string) Format {
	return Format{kind: kindCodec, codec: name}
}

// ParseFormat parses a format identifier as written to the header.
func ParseFormat(identifier string) (Format, error) {
	switch identifier {
	case "raw":
		return Raw, nil
	case "raw.zip":
		return RawZip, nil
	}
	if _, ok := LookupCodec(identifier); ok {
		return Codec(identifier), nil
	}
	return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, identifier)
}

func (f Format) String() string {
	switch f.kind {
	case kindRaw:
		return "raw"
	case kindRawZip:
		return "raw.zip"
	case kindCodec:
		return f.codec
	}
	return "unknown"
}

// Extension returns the tile file extension without the leading dot.
func (f Format) Extension() string {
	return f.String()
}

// TileName returns the file name of a tile within a level directory.
func (f Format) TileName(id raster.TileID) string {
	return fmt.Sprintf("%d-%d.%s", id.X, id.Y, f.Extension())
}

// Validate reports whether tiles of layout can be stored in format f.
func (f Format) Validate(layout raster.Layout) error {
	switch f.kind {
	case kindRaw, kindRawZip:
		return nil
	case kindCodec:
		codec, ok := LookupCodec(f.codec)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFormat, f.codec)
		}
		if !codec.Supports(layout) {
			return fmt.Errorf("%w: %s cannot store %v", ErrUnsupportedLayout, f.codec, layout)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Encode encodes one tile.
func (f Format) Encode(id raster.TileID, tile *raster.Raster) ([]byte, error) {
	switch f.kind {
	case kindRaw:
		return tile.Data, nil
	case kindRawZip:
		return zipEntry(Raw.TileName(id), tile.Data)
	case kindCodec:
		codec, ok := LookupCodec(f.codec)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f.codec)
		}
		return codec.Encode(tile)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Decode decodes one tile covering rect with the given layout.
func (f Format) Decode(id raster.TileID, data []byte, layout raster.Layout, rect image.Rectangle) (*raster.Raster, error) {
	switch f.kind {
	case kindRaw:
		return rawTile(data, layout, rect)
	case kindRawZip:
		entry, err := unzipEntry(Raw.TileName(id), data)
		if err != nil {
			return nil, err
		}
		return rawTile(entry, layout, rect)
	case kindCodec:
		codec, ok := LookupCodec(f.codec)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f.codec)
		}
		return codec.Decode(data, layout, rect)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

func rawTile(data []byte, layout raster.Layout, rect image.Rectangle) (*raster.Raster, error) {
	if want := layout.Size(rect.Dx(), rect.Dy()); len(data) != want {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidTile, len(data), want)
	}
	return &raster.Raster{Layout: layout, Rect: rect, Data: data}, nil
}

func zipEntry(name string, data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)

	entry, err := writer.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if _, err := entry.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buffer.Bytes(), nil
}

func unzipEntry(name string, data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
	}
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		entry, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer entry.Close()
		result, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: archive has no entry %q", ErrInvalidTile, name)
}
