package xyz

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-rasterpyramid/webtile"
	"github.com/magiconair/properties"
)

// Reader implements webtile.Reader, webtile.Visitor and
// webtile.MetadataReader for tiles in XYZ format.
type Reader struct {
	filePattern string
	rootDir     string
	pathRegexp  *regexp.Regexp
}

// NewReader creates a new Reader for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewReader(filePattern string) (*Reader, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}

	regexPattern := regexp.QuoteMeta(filePattern)
	regexPattern = strings.ReplaceAll(regexPattern, `\{x\}`, "(?P<x>\\d+)")
	regexPattern = strings.ReplaceAll(regexPattern, `\{y\}`, "(?P<y>\\d+)")
	regexPattern = strings.ReplaceAll(regexPattern, `\{z\}`, "(?P<z>\\d+)")
	pathRegex, err := regexp.Compile("^" + regexPattern + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	return &Reader{filePattern, patternRoot(filePattern), pathRegex}, nil
}

func (r *Reader) ReadTile(tileID webtile.ID) ([]byte, error) {
	filePath := formatPattern(r.filePattern, tileID)
	tileData, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

func (r *Reader) VisitTiles(visitor func(webtile.ID, []byte) error) error {
	return filepath.WalkDir(r.rootDir, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		matches := r.pathRegexp.FindStringSubmatch(filePath)
		if matches == nil {
			return nil
		}

		x, _ := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("x")])
		y, _ := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("y")])
		z, _ := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("z")])

		tileData, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}

		return visitor(webtile.ID{X: uint32(x), Y: uint32(y), Z: uint32(z)}, tileData)
	})
}

// ReadMetadata reads the metadata file of the tileset root. A tileset
// without one has empty metadata.
func (r *Reader) ReadMetadata() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(r.rootDir, MetadataFile))
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}
