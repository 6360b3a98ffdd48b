package tilestore

import (
	"fmt"
	"image"
	"os"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

// ReadImage decodes a grey PNG or TIFF file, see spec.FromImage.
func ReadImage(filePath string) (*raster.Raster, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	switch format {
	case "png", "tiff":
	default:
		return nil, fmt.Errorf("%w: %s image %s", spec.ErrUnknownFormat, format, filePath)
	}
	return spec.FromImage(img), nil
}
