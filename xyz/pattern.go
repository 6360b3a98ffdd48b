// Package xyz reads and writes tilesets stored as one file per tile, with
// paths like "/z/x/y.ext", and a metadata file at the tileset root.
package xyz

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eak1mov/go-rasterpyramid/webtile"
)

// MetadataFile is the name of the metadata file in the tileset root.
const MetadataFile = "metadata.properties"

var ErrInvalidPattern = errors.New("rasterpyramid: invalid file pattern")

func validatePattern(pattern string) error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

func formatPattern(pattern string, tileID webtile.ID) string {
	result := pattern
	result = strings.ReplaceAll(result, "{x}", fmt.Sprintf("%d", tileID.X))
	result = strings.ReplaceAll(result, "{y}", fmt.Sprintf("%d", tileID.Y))
	result = strings.ReplaceAll(result, "{z}", fmt.Sprintf("%d", tileID.Z))
	return result
}

// patternRoot returns the longest directory shared by all tile paths.
func patternRoot(pattern string) string {
	path0 := formatPattern(pattern, webtile.ID{X: 0, Y: 0, Z: 0})
	path1 := formatPattern(pattern, webtile.ID{X: 1, Y: 1, Z: 1})
	for path0 != path1 {
		path0 = filepath.Dir(path0)
		path1 = filepath.Dir(path1)
	}
	return path0
}
