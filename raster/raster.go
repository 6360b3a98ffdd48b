package raster

import (
	"encoding/binary"
	"image"
	"math"
)

var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

// Raster is a rectangular block of samples. Rect is expressed in the pixel
// coordinates of the level the block belongs to. Data holds the samples
// row-major and big-endian, see Layout for packing.
type Raster struct {
	Layout Layout
	Rect   image.Rectangle
	Data   []byte
}

// New allocates a zero-filled raster.
func New(layout Layout, rect image.Rectangle) *Raster {
	return &Raster{
		Layout: layout,
		Rect:   rect,
		Data:   make([]byte, layout.Size(rect.Dx(), rect.Dy())),
	}
}

func (r *Raster) Width() int  { return r.Rect.Dx() }
func (r *Raster) Height() int { return r.Rect.Dy() }
func (r *Raster) Stride() int { return r.Layout.RowBytes(r.Rect.Dx()) }

// At returns the sample at (x, y). Coordinates outside Rect return 0.
func (r *Raster) At(x, y int) float64 {
	if !(image.Point{x, y}).In(r.Rect) {
		return 0
	}
	row := (y - r.Rect.Min.Y) * r.Stride()
	col := x - r.Rect.Min.X

	if r.Layout.Packed() {
		bits := r.Layout.Bits
		bitOffset := col * bits
		b := r.Data[row+bitOffset/8]
		shift := 8 - bits - bitOffset%8
		return float64((b >> shift) & (1<<bits - 1))
	}

	p := r.Data[row+col*r.Layout.DataType.Size():]
	switch r.Layout.DataType {
	case Uint8:
		return float64(p[0])
	case Int8:
		return float64(int8(p[0]))
	case Uint16:
		return float64(binary.BigEndian.Uint16(p))
	case Int16:
		return float64(int16(binary.BigEndian.Uint16(p)))
	case Uint32:
		return float64(binary.BigEndian.Uint32(p))
	case Int32:
		return float64(int32(binary.BigEndian.Uint32(p)))
	case Float32:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case Float64:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	}
	return 0
}

// Set stores v at (x, y). Integer types round to nearest and saturate.
// Coordinates outside Rect are ignored.
func (r *Raster) Set(x, y int, v float64) {
	if !(image.Point{x, y}).In(r.Rect) {
		return
	}
	row := (y - r.Rect.Min.Y) * r.Stride()
	col := x - r.Rect.Min.X

	if r.Layout.Packed() {
		bits := r.Layout.Bits
		mask := byte(1<<bits - 1)
		s := byte(clamp(math.Round(v), 0, float64(mask)))
		bitOffset := col * bits
		i := row + bitOffset/8
		shift := 8 - bits - bitOffset%8
		r.Data[i] = r.Data[i]&^(mask<<shift) | s<<shift
		return
	}

	p := r.Data[row+col*r.Layout.DataType.Size():]
	switch r.Layout.DataType {
	case Uint8:
		p[0] = uint8(r.toInt(v))
	case Int8:
		p[0] = uint8(int8(r.toInt(v)))
	case Uint16:
		binary.BigEndian.PutUint16(p, uint16(r.toInt(v)))
	case Int16:
		binary.BigEndian.PutUint16(p, uint16(int16(r.toInt(v))))
	case Uint32:
		binary.BigEndian.PutUint32(p, uint32(r.toInt(v)))
	case Int32:
		binary.BigEndian.PutUint32(p, uint32(int32(r.toInt(v))))
	case Float32:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case Float64:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	}
}

func (r *Raster) toInt(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := r.Layout.DataType.Range()
	return int64(clamp(math.Round(v), lo, hi))
}

// Fill sets every sample to v.
func (r *Raster) Fill(v float64) {
	if v == 0 {
		clear(r.Data)
		return
	}
	for y := r.Rect.Min.Y; y < r.Rect.Max.Y; y++ {
		for x := r.Rect.Min.X; x < r.Rect.Max.X; x++ {
			r.Set(x, y, v)
		}
	}
}

// CopyFrom copies the samples of src that overlap r. Both rasters must
// share the same layout.
func (r *Raster) CopyFrom(src *Raster) error {
	if src.Layout != r.Layout {
		return ErrLayoutMismatch
	}
	overlap := r.Rect.Intersect(src.Rect)
	if overlap.Empty() {
		return nil
	}

	if r.Layout.Packed() {
		for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
			for x := overlap.Min.X; x < overlap.Max.X; x++ {
				r.Set(x, y, src.At(x, y))
			}
		}
		return nil
	}

	size := r.Layout.DataType.Size()
	length := overlap.Dx() * size
	for y := overlap.Min.Y; y < overlap.Max.Y; y++ {
		dst := (y-r.Rect.Min.Y)*r.Stride() + (overlap.Min.X-r.Rect.Min.X)*size
		from := (y-src.Rect.Min.Y)*src.Stride() + (overlap.Min.X-src.Rect.Min.X)*size
		copy(r.Data[dst:dst+length], src.Data[from:from+length])
	}
	return nil
}

// SubRaster returns a copy of the part of r inside rect.
func (r *Raster) SubRaster(rect image.Rectangle) *Raster {
	sub := New(r.Layout, rect.Intersect(r.Rect))
	_ = sub.CopyFrom(r)
	return sub
}

// Translate returns a view of r moved so that its origin is at p.
// The sample data is shared.
func (r *Raster) Translate(p image.Point) *Raster {
	return &Raster{
		Layout: r.Layout,
		Rect:   r.Rect.Sub(r.Rect.Min).Add(p),
		Data:   r.Data,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
