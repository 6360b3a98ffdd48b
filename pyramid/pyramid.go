// Package pyramid provides lazily built multi-resolution images.
//
// Level 0 is the full resolution image; level L is level 0 reduced by
// Scale(L). Each level is derived on first use and kept until Dispose.
package pyramid

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/eak1mov/go-rasterpyramid/level"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/resample"
)

var (
	ErrInvalidArgument = level.ErrInvalidArgument
	ErrDisposed        = errors.New("rasterpyramid: pyramid disposed")
)

// DeriveFunc computes the image of one level.
type DeriveFunc func(g level.Geometry) (raster.Image, error)

type config struct {
	Scales []float64
	Kernel resample.Kernel
	Logger *slog.Logger
}

type Option func(*config)

// WithScales sets explicit per-level scale factors. The default doubles
// the scale with every level.
func WithScales(scales []float64) Option {
	return func(c *config) { c.Scales = scales }
}

// WithKernel sets the interpolation kernel FromImage derives levels with.
// The default is nearest neighbour.
func WithKernel(kernel resample.Kernel) Option {
	return func(c *config) { c.Kernel = kernel }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func newConfig(opts []Option) config {
	c := config{Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type slot struct {
	mu  sync.Mutex
	img raster.Image
}

// Pyramid is an ordered set of lazily derived levels.
type Pyramid struct {
	geometries []level.Geometry
	derive     DeriveFunc
	logger     *slog.Logger

	mu       sync.Mutex
	disposed bool
	slots    []slot
}

// New creates a pyramid of levelCount levels derived with derive.
func New(levelCount int, derive DeriveFunc, opts ...Option) (*Pyramid, error) {
	c := newConfig(opts)
	geometries, err := geometries(levelCount, c.Scales)
	if err != nil {
		return nil, err
	}
	return &Pyramid{
		geometries: geometries,
		derive:     derive,
		logger:     c.Logger,
		slots:      make([]slot, levelCount),
	}, nil
}

func geometries(levelCount int, scales []float64) ([]level.Geometry, error) {
	if levelCount < 1 {
		return nil, fmt.Errorf("%w: level count %d", ErrInvalidArgument, levelCount)
	}
	if scales != nil && len(scales) != levelCount {
		return nil, fmt.Errorf("%w: %d scales for %d levels", ErrInvalidArgument, len(scales), levelCount)
	}

	result := make([]level.Geometry, levelCount)
	for i := range result {
		var g level.Geometry
		var err error
		if scales != nil {
			g, err = level.New(i, scales[i])
		} else {
			g, err = level.Doubling(i)
		}
		if err != nil {
			return nil, err
		}
		if i > 0 && g.Scale() < result[i-1].Scale() {
			return nil, fmt.Errorf("%w: scale of level %d decreases", ErrInvalidArgument, i)
		}
		result[i] = g
	}
	return result, nil
}

func (p *Pyramid) LevelCount() int { return len(p.geometries) }

func (p *Pyramid) Geometry(index int) (level.Geometry, error) {
	if index < 0 || index >= len(p.geometries) {
		return level.Geometry{}, fmt.Errorf("%w: level %d of %d", ErrInvalidArgument, index, len(p.geometries))
	}
	return p.geometries[index], nil
}

// Scale returns the scale factor of a level relative to level 0.
func (p *Pyramid) Scale(index int) (float64, error) {
	g, err := p.Geometry(index)
	if err != nil {
		return 0, err
	}
	return g.Scale(), nil
}

// Image returns the image of a level, deriving it on first use.
// Derivation of one level is serialized; a failed derivation is retried
// on the next call.
func (p *Pyramid) Image(index int) (raster.Image, error) {
	g, err := p.Geometry(index)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil, ErrDisposed
	}
	s := &p.slots[index]
	p.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img != nil {
		return s.img, nil
	}
	p.logger.Debug("rasterpyramid: deriving level", "level", index, "scale", g.Scale())
	img, err := p.derive(g)
	if err != nil {
		return nil, fmt.Errorf("level %d: %w", index, err)
	}
	s.img = img
	return img, nil
}

// Dispose drops every derived level, closing those that implement
// io.Closer. The pyramid cannot be used afterwards.
func (p *Pyramid) Dispose() error {
	p.mu.Lock()
	p.disposed = true
	p.mu.Unlock()

	var errs []error
	for i := range p.slots {
		s := &p.slots[i]
		s.mu.Lock()
		if closer, ok := s.img.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
		s.img = nil
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}
