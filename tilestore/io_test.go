package tilestore_test

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func makeImage(layout raster.Layout, rect image.Rectangle, grid raster.Grid) (*raster.Raster, raster.Image) {
	src := raster.New(layout, rect)
	hi := 1000.0
	if layout.Packed() {
		hi = float64(int(1)<<layout.Bits - 1)
	} else if layout.DataType == raster.Uint8 || layout.DataType == raster.Int8 {
		hi = 100
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			src.Set(x, y, float64((x*3+y*5)%int(hi+1)))
		}
	}
	return src, raster.NewMemory(src, grid)
}

func checkImage(t *testing.T, want *raster.Raster, img raster.Image) {
	t.Helper()
	got, err := raster.Read(img, want.Rect)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !cmp.Equal(got, want) {
		t.Errorf("samples differ")
	}
}

type countingProgress struct {
	total, done, finished int
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Add(n int)       { p.done += n }
func (p *countingProgress) Finish()         { p.finished++ }

func TestRoundTrip(t *testing.T) {
	for _, format := range []spec.Format{spec.Raw, spec.RawZip} {
		for _, layout := range []raster.Layout{
			{DataType: raster.Uint8},
			{DataType: raster.Uint8, Bits: 2},
			{DataType: raster.Int16},
			{DataType: raster.Uint32},
			{DataType: raster.Float64},
		} {
			t.Run(format.String()+"/"+layout.String(), func(t *testing.T) {
				dir := t.TempDir()
				src, img := makeImage(layout, image.Rect(0, 0, 45, 31), raster.Grid{TileWidth: 16, TileHeight: 8})

				progress := &countingProgress{}
				err := tilestore.Write(dir, img, format, tilestore.WithProgress(progress))
				if err != nil {
					t.Fatalf("Write failed: %v", err)
				}
				require.Equal(t, countingProgress{total: 12, done: 12, finished: 1}, *progress)

				reader, err := tilestore.Open(dir)
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				require.Equal(t, layout, reader.Layout())
				require.Equal(t, img.Bounds(), reader.Bounds())
				require.Equal(t, img.Grid(), reader.Grid())
				checkImage(t, src, reader)
			})
		}
	}
}

func TestRoundTripCodecs(t *testing.T) {
	for _, name := range []string{"png", "tiff", "zstd", "lz4"} {
		dir := t.TempDir()
		src, img := makeImage(raster.Layout{DataType: raster.Uint16}, image.Rect(0, 0, 40, 40), raster.Grid{TileWidth: 32, TileHeight: 32})
		require.NoError(t, tilestore.Write(dir, img, spec.Codec(name)))

		reader, err := tilestore.Open(dir)
		require.NoError(t, err)
		require.Equal(t, spec.Codec(name), reader.Format())
		checkImage(t, src, reader)
	}
}

func TestWriteOrigin(t *testing.T) {
	dir := t.TempDir()
	grid := raster.Grid{OffsetX: -20, OffsetY: 4, TileWidth: 10, TileHeight: 10}
	src, img := makeImage(raster.Layout{DataType: raster.Int32}, image.Rect(-17, 9, 12, 30), grid)
	require.NoError(t, tilestore.Write(dir, img, spec.Raw))

	reader, err := tilestore.Open(dir)
	require.NoError(t, err)
	require.Equal(t, grid, reader.Grid())

	corner, err := reader.Tile(raster.TileID{X: 0, Y: 0})
	require.NoError(t, err)
	require.Equal(t, image.Rect(-17, 9, -10, 14), corner.Rect)
	checkImage(t, src, reader)
}

func TestWriteTileSize(t *testing.T) {
	dir := t.TempDir()
	src, img := makeImage(raster.Layout{DataType: raster.Float32}, image.Rect(3, 3, 103, 53), raster.Grid{TileWidth: 7, TileHeight: 7})
	require.NoError(t, tilestore.Write(dir, img, spec.Raw, tilestore.WithTileSize(50, 25)))

	reader, err := tilestore.Open(dir)
	require.NoError(t, err)
	require.Equal(t, raster.Grid{OffsetX: 3, OffsetY: 3, TileWidth: 50, TileHeight: 25}, reader.Grid())
	checkImage(t, src, reader)
}

func TestTileNames(t *testing.T) {
	dir := t.TempDir()
	_, img := makeImage(raster.Layout{DataType: raster.Uint8}, image.Rect(0, 0, 20, 10), raster.Grid{TileWidth: 10, TileHeight: 5})
	require.NoError(t, tilestore.Write(dir, img, spec.RawZip, tilestore.WithOrder(raster.Tiles)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	require.Equal(t, []string{"0-0.raw.zip", "0-1.raw.zip", "1-0.raw.zip", "1-1.raw.zip", "image.properties"}, names)
}

func TestOpenErrors(t *testing.T) {
	_, err := tilestore.Open(t.TempDir())
	require.Truef(t, errors.Is(err, fs.ErrNotExist), "%v", err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, spec.HeaderFile), []byte("dataType=uint8\nwidth=4\n"), 0644))
	_, err = tilestore.Open(dir)
	require.Truef(t, errors.Is(err, spec.ErrInvalidHeader), "%v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, spec.HeaderFile),
		[]byte("dataType=uint8\nwidth=4\nheight=4\ntileWidth=4\ntileHeight=4\ntileFormat=webp\n"), 0644))
	_, err = tilestore.Open(dir)
	require.Truef(t, errors.Is(err, spec.ErrUnknownFormat), "%v", err)
}

func TestTileFailureIsLocal(t *testing.T) {
	dir := t.TempDir()
	_, img := makeImage(raster.Layout{DataType: raster.Uint16}, image.Rect(0, 0, 8, 8), raster.Grid{TileWidth: 4, TileHeight: 4})
	require.NoError(t, tilestore.Write(dir, img, spec.Raw))

	reader, err := tilestore.Open(dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(reader.TilePath(raster.TileID{X: 1, Y: 0})))
	require.NoError(t, os.WriteFile(reader.TilePath(raster.TileID{X: 0, Y: 1}), []byte{1, 2, 3}, 0644))

	_, err = reader.Tile(raster.TileID{X: 1, Y: 0})
	require.Truef(t, errors.Is(err, fs.ErrNotExist), "%v", err)
	_, err = reader.Tile(raster.TileID{X: 0, Y: 1})
	require.Truef(t, errors.Is(err, spec.ErrInvalidTile), "%v", err)
	_, err = reader.Tile(raster.TileID{X: 5, Y: 0})
	require.Truef(t, errors.Is(err, raster.ErrTileOutOfRange), "%v", err)

	for _, id := range []raster.TileID{{X: 0, Y: 0}, {X: 1, Y: 1}} {
		_, err := reader.Tile(id)
		require.NoError(t, err)
	}
}

func TestWriteUnsupportedLayout(t *testing.T) {
	_, img := makeImage(raster.Layout{DataType: raster.Float32}, image.Rect(0, 0, 4, 4), raster.Grid{TileWidth: 4, TileHeight: 4})
	err := tilestore.Write(t.TempDir(), img, spec.Codec("png"))
	require.Truef(t, errors.Is(err, spec.ErrUnsupportedLayout), "%v", err)
}

func TestReadImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 5, 4))
	for y := range 4 {
		for x := range 5 {
			gray.SetGray(x, y, color.Gray{Y: uint8(x*40 + y)})
		}
	}
	filePath := filepath.Join(t.TempDir(), "input.png")
	file, err := os.Create(filePath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, gray))
	require.NoError(t, file.Close())

	got, err := tilestore.ReadImage(filePath)
	require.NoError(t, err)
	require.Equal(t, raster.Layout{DataType: raster.Uint8}, got.Layout)
	require.Equal(t, gray.Pix, got.Data)

	_, err = tilestore.ReadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.True(t, errors.Is(err, fs.ErrNotExist))
}
