// Package field provides the scalar grid shared by noise generation,
// compositing and color mapping.
package field

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Epsilon guards the min-max denominator against constant fields.
const Epsilon = 1e-8

// Field is a row-major 2D grid of scalar values.
type Field struct {
	W    int
	H    int
	Data []float64
}

// New allocates a zeroed field.
func New(w, h int) (*Field, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("field dimensions must be positive, got %dx%d", w, h)
	}
	return &Field{W: w, H: h, Data: make([]float64, w*h)}, nil
}

// FromValues builds a field from row-major values. len(values) must be w*h.
func FromValues(w, h int, values []float64) (*Field, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("field dimensions must be positive, got %dx%d", w, h)
	}
	if len(values) != w*h {
		return nil, fmt.Errorf("expected %d values for %dx%d field, got %d", w*h, w, h, len(values))
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Field{W: w, H: h, Data: data}, nil
}

func (f *Field) idx(x, y int) int { return y*f.W + x }

// At returns the value at (x, y).
func (f *Field) At(x, y int) float64 { return f.Data[f.idx(x, y)] }

// Set stores v at (x, y).
func (f *Field) Set(x, y int, v float64) { f.Data[f.idx(x, y)] = v }

// Row returns the backing slice for row y.
func (f *Field) Row(y int) []float64 {
	start := f.idx(0, y)
	return f.Data[start : start+f.W]
}

// SameSize reports whether both fields have identical dimensions.
func (f *Field) SameSize(o *Field) bool {
	return o != nil && f.W == o.W && f.H == o.H
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	data := make([]float64, len(f.Data))
	copy(data, f.Data)
	return &Field{W: f.W, H: f.H, Data: data}
}

// MinMax returns the smallest and largest value in the field.
func (f *Field) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Normalize rescales the field in place to [0,1] using (x-min)/(max-min+Epsilon).
// A constant field becomes all zeros.
func (f *Field) Normalize() *Field {
	if len(f.Data) == 0 {
		return f
	}
	lo, hi := f.MinMax()
	den := hi - lo + Epsilon
	for i, v := range f.Data {
		f.Data[i] = (v - lo) / den
	}
	return f
}

// Normalized returns a normalized copy, leaving f untouched.
func (f *Field) Normalized() *Field {
	return f.Clone().Normalize()
}

// ToGray16 quantizes a [0,1] field into a 16-bit grayscale image.
// Values outside [0,1] are clamped.
func (f *Field) ToGray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.W, f.H))
	for y := 0; y < f.H; y++ {
		row := f.Row(y)
		for x, v := range row {
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(clamp01(v) * 0xffff))})
		}
	}
	return img
}

// FromGray16 converts a 16-bit grayscale image into a [0,1] field.
func FromGray16(img *image.Gray16) *Field {
	b := img.Bounds()
	f := &Field{W: b.Dx(), H: b.Dy(), Data: make([]float64, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			f.Set(x-b.Min.X, y-b.Min.Y, float64(img.Gray16At(x, y).Y)/0xffff)
		}
	}
	return f
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
