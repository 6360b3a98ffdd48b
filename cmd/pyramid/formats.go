package main

import (
	"strings"

	"github.com/eak1mov/go-rasterpyramid/builder"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
)

func deduceFormat(format, filePath string) string {
	if format == "" && strings.HasSuffix(filePath, ".mbtiles") {
		return "mbtiles"
	}
	if format == "" && strings.Contains(filePath, "{z}") {
		return "xyz"
	}
	return format
}

func isImageFile(filePath string) bool {
	lower := strings.ToLower(filePath)
	for _, ext := range []string{".png", ".tif", ".tiff"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// openInput opens a level directory or a grey image file as level 0.
func openInput(inputPath string) (raster.Image, error) {
	if isImageFile(inputPath) {
		r, err := tilestore.ReadImage(inputPath)
		if err != nil {
			return nil, err
		}
		return raster.NewMemory(r, raster.Grid{TileWidth: builder.DefaultTileSize, TileHeight: builder.DefaultTileSize}), nil
	}
	if _, err := pyramid.LevelDirs(inputPath); err == nil {
		return tilestore.Open(pyramid.LevelDir(inputPath, 0))
	}
	return tilestore.Open(inputPath)
}
