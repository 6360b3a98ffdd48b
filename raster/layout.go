// Package raster provides common raster, layout and tiled image types.
package raster

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLayout  = errors.New("rasterpyramid: invalid sample layout")
	ErrLayoutMismatch = errors.New("rasterpyramid: sample layout mismatch")
)

// DataType is the numeric type of one sample.
type DataType uint8

const (
	Unknown DataType = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var dataTypeNames = [...]string{
	Unknown: "unknown",
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

func (d DataType) String() string {
	if int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// ParseDataType parses the header name of a data type.
func ParseDataType(name string) (DataType, error) {
	for d, n := range dataTypeNames {
		if d != int(Unknown) && n == name {
			return DataType(d), nil
		}
	}
	return Unknown, fmt.Errorf("%w: unknown data type %q", ErrInvalidLayout, name)
}

// Size returns the size of one unpacked sample in bytes.
func (d DataType) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Range returns the representable value range of integer types.
// Float types report ±Inf.
func (d DataType) Range() (lo, hi float64) {
	switch d {
	case Uint8:
		return 0, 255
	case Int8:
		return -128, 127
	case Uint16:
		return 0, 65535
	case Int16:
		return -32768, 32767
	case Uint32:
		return 0, 4294967295
	case Int32:
		return -2147483648, 2147483647
	}
	return negInf, posInf
}

// Layout describes how samples of a single-band raster are stored.
type Layout struct {
	DataType DataType
	// Bits is the packed width of one sample. Zero means the full width
	// of DataType. Packing is only defined for Uint8.
	Bits int
}

func (l Layout) String() string {
	if l.Packed() {
		return fmt.Sprintf("%v/%d", l.DataType, l.Bits)
	}
	return l.DataType.String()
}

// BitsPerSample returns the effective storage width of one sample.
func (l Layout) BitsPerSample() int {
	if l.Bits > 0 {
		return l.Bits
	}
	return l.DataType.Size() * 8
}

func (l Layout) Packed() bool {
	return l.Bits > 0 && l.Bits < l.DataType.Size()*8
}

// RowBytes returns the number of bytes of one row of the given width.
// Rows always start on a byte boundary.
func (l Layout) RowBytes(width int) int {
	return (width*l.BitsPerSample() + 7) / 8
}

// Size returns the number of bytes of a width x height block.
func (l Layout) Size(width, height int) int {
	return l.RowBytes(width) * height
}

func (l Layout) Validate() error {
	if l.DataType.Size() == 0 {
		return fmt.Errorf("%w: data type %v", ErrInvalidLayout, l.DataType)
	}
	switch {
	case l.Bits == 0:
		return nil
	case l.Bits == l.DataType.Size()*8:
		return nil
	case l.DataType == Uint8 && (l.Bits == 1 || l.Bits == 2 || l.Bits == 4):
		return nil
	}
	return fmt.Errorf("%w: %d bits per %v sample", ErrInvalidLayout, l.Bits, l.DataType)
}
