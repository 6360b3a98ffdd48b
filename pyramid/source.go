package pyramid

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/magiconair/properties"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/resample"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
)

// ScalesFile holds the level scales of a pyramid root. A root without it
// has doubling scales.
const ScalesFile = "pyramid.properties"

// Open returns the pyramid stored under root, one level directory per
// level named by its index. Levels are opened on first use.
func Open(root string, opts ...Option) (*Pyramid, error) {
	levelCount, err := LevelDirs(root)
	if err != nil {
		return nil, err
	}
	scales, err := ReadScales(root, levelCount)
	if err != nil {
		return nil, err
	}
	if scales != nil {
		opts = append([]Option{WithScales(scales)}, opts...)
	}
	c := newConfig(opts)
	c.Logger.Debug("rasterpyramid: opening pyramid", "root", root, "levels", levelCount, "scales", c.Scales)

	return New(levelCount, func(g level.Geometry) (raster.Image, error) {
		return tilestore.Open(LevelDir(root, g.Index()))
	}, opts...)
}

// WriteScales stores the scales of every level of p in root.
func WriteScales(root string, p *Pyramid) error {
	props := properties.NewProperties()
	if _, _, err := props.Set("levelCount", strconv.Itoa(p.LevelCount())); err != nil {
		return err
	}
	for index := range p.LevelCount() {
		scale, err := p.Scale(index)
		if err != nil {
			return err
		}
		if _, _, err := props.Set(fmt.Sprintf("scale.%d", index), strconv.FormatFloat(scale, 'g', -1, 64)); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(root, ScalesFile))
	if err != nil {
		return err
	}
	if _, err := props.Write(file, properties.UTF8); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadScales returns the scales stored in root by WriteScales, or nil if
// root has none.
func ReadScales(root string, levelCount int) ([]float64, error) {
	data, err := os.ReadFile(filepath.Join(root, ScalesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	props, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArgument, ScalesFile, err)
	}

	if stored, err := strconv.Atoi(props.GetString("levelCount", "")); err != nil || stored != levelCount {
		return nil, fmt.Errorf("%w: %s does not describe %d levels", ErrInvalidArgument, ScalesFile, levelCount)
	}
	scales := make([]float64, levelCount)
	for index := range scales {
		value := props.GetString(fmt.Sprintf("scale.%d", index), "")
		if scales[index], err = strconv.ParseFloat(value, 64); err != nil {
			return nil, fmt.Errorf("%w: %s: scale of level %d: %q", ErrInvalidArgument, ScalesFile, index, value)
		}
	}
	return scales, nil
}

// LevelDir returns the directory of a level under root.
func LevelDir(root string, index int) string {
	return filepath.Join(root, strconv.Itoa(index))
}

// LevelDirs returns the number of consecutive level directories 0..N-1
// found under root.
func LevelDirs(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	present := make(map[int]bool)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if index, err := strconv.Atoi(entry.Name()); err == nil && index >= 0 {
			present[index] = true
		}
	}

	count := 0
	for present[count] {
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: no level directories in %s", ErrInvalidArgument, root)
	}
	if count != len(present) {
		return 0, fmt.Errorf("%w: level directories of %s are not consecutive", ErrInvalidArgument, root)
	}
	return count, nil
}

// FromImage returns a pyramid whose level 0 is img and whose other levels
// are derived from it geometrically.
func FromImage(img raster.Image, levelCount int, opts ...Option) (*Pyramid, error) {
	kernel := newConfig(opts).Kernel
	return New(levelCount, func(g level.Geometry) (raster.Image, error) {
		return DeriveLevel(img, g, kernel)
	}, opts...)
}

// DeriveLevel renders the level g of a level-0 image. The nearest kernel
// replicates pixels through g.SourceCoord; other kernels interpolate.
func DeriveLevel(img raster.Image, g level.Geometry, kernel resample.Kernel) (raster.Image, error) {
	if g.IsLevel0() {
		return img, nil
	}
	if kernel.IsNearest() {
		return resample.Level(img, g), nil
	}

	src := img.Bounds()
	bounds := g.LevelBounds(src)
	s := 1 / g.Scale()
	return resample.Resample(img, resample.Transform{
		ScaleX:  s,
		ScaleY:  s,
		OffsetX: float64(bounds.Min.X) - float64(src.Min.X)*s,
		OffsetY: float64(bounds.Min.Y) - float64(src.Min.Y)*s,
	}, bounds, kernel)
}

// Size returns the pixel size of a level.
func (p *Pyramid) Size(index int) (image.Point, error) {
	img, err := p.Image(index)
	if err != nil {
		return image.Point{}, err
	}
	return img.Bounds().Size(), nil
}
