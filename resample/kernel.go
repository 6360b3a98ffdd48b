// Package resample provides lazy resampled views of tiled images.
package resample

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/draw"
)

var ErrUnknownKernel = errors.New("rasterpyramid: unknown interpolation kernel")

// Kernel is an interpolation kernel. The zero value is nearest neighbour.
type Kernel struct {
	name   string
	kernel *draw.Kernel
}

var (
	Nearest  = Kernel{name: "nearest"}
	Bilinear = Kernel{name: "bilinear", kernel: draw.BiLinear}
	Bicubic  = Kernel{name: "bicubic", kernel: draw.CatmullRom}
)

var kernels = []Kernel{Nearest, Bilinear, Bicubic}

func ParseKernel(name string) (Kernel, error) {
	for _, k := range kernels {
		if k.name == name {
			return k, nil
		}
	}
	return Kernel{}, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
}

func (k Kernel) String() string {
	if k.name == "" {
		return Nearest.name
	}
	return k.name
}

func (k Kernel) IsNearest() bool { return k.kernel == nil }

// tap is one weighted source sample of a destination sample.
type tap struct {
	index  int
	weight float64
}

// axis maps a destination column or row to its source taps.
type axis func(dst int) []tap

// linearAxis maps dst to the source coordinate (dst+0.5-offset)/scale-0.5
// and samples it with kernel k. When downscaling, the kernel is stretched
// to cover every source sample. If clamp is set, taps are clamped to
// [lo, hi).
func linearAxis(scale, offset float64, lo, hi int, k Kernel, clamp bool) axis {
	fix := func(i int) int {
		if clamp {
			return max(lo, min(hi-1, i))
		}
		return i
	}

	if k.IsNearest() {
		return func(dst int) []tap {
			i := int(math.Floor((float64(dst) + 0.5 - offset) / scale))
			return []tap{{index: fix(i), weight: 1}}
		}
	}

	support, stretch := k.kernel.Support, 1.0
	if scale < 1 {
		support /= scale
		stretch = scale
	}
	return func(dst int) []tap {
		s := (float64(dst)+0.5-offset)/scale - 0.5
		first := int(math.Ceil(s - support))
		last := int(math.Floor(s + support))

		taps := make([]tap, 0, last-first+1)
		sum := 0.0
		for i := first; i <= last; i++ {
			w := k.kernel.At(math.Abs(float64(i)-s) * stretch)
			if w == 0 {
				continue
			}
			taps = append(taps, tap{index: fix(i), weight: w})
			sum += w
		}
		if sum != 0 && sum != 1 {
			for i := range taps {
				taps[i].weight /= sum
			}
		}
		return taps
	}
}
