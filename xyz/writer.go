package xyz

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/eak1mov/go-rasterpyramid/webtile"
	"github.com/magiconair/properties"
)

// Writer implements webtile.Writer and webtile.MetadataWriter for tiles
// in XYZ format.
type Writer struct {
	filePattern string
	rootDir     string
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewWriter(filePattern string) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Writer{filePattern: filePattern, rootDir: patternRoot(filePattern)}, nil
}

func (w *Writer) WriteTile(tileID webtile.ID, tileData []byte) error {
	filePath := formatPattern(w.filePattern, tileID)

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, tileData, 0644)
}

// WriteMetadata stores metadata as a properties file in the tileset root.
func (w *Writer) WriteMetadata(metadata map[string]string) error {
	p := properties.NewProperties()
	for _, name := range slices.Sorted(maps.Keys(metadata)) {
		if _, _, err := p.Set(name, metadata[name]); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(w.rootDir, 0755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(w.rootDir, MetadataFile))
	if err != nil {
		return err
	}
	if _, err := p.Write(file, properties.UTF8); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (w *Writer) Finalize() error {
	return nil
}
