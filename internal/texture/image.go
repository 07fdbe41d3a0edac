// Package texture holds the synthesized RGB raster and its import/export.
package texture

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Image is a planar RGB raster with channels in [0,1].
type Image struct {
	W int
	H int
	R []float64
	G []float64
	B []float64
}

// NewImage allocates a black image.
func NewImage(w, h int) (*Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", w, h)
	}
	n := w * h
	return &Image{
		W: w,
		H: h,
		R: make([]float64, n),
		G: make([]float64, n),
		B: make([]float64, n),
	}, nil
}

// Index returns the planar offset of (x, y).
func (m *Image) Index(x, y int) int { return y*m.W + x }

// At returns the channel values at (x, y).
func (m *Image) At(x, y int) (r, g, b float64) {
	i := m.Index(x, y)
	return m.R[i], m.G[i], m.B[i]
}

// Set stores channel values at (x, y) without clamping.
func (m *Image) Set(x, y int, r, g, b float64) {
	i := m.Index(x, y)
	m.R[i] = r
	m.G[i] = g
	m.B[i] = b
}

// InRange reports whether every channel value lies within [0,1].
func (m *Image) InRange() bool {
	for _, plane := range [][]float64{m.R, m.G, m.B} {
		for _, v := range plane {
			if !(v >= 0 && v <= 1) {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{W: m.W, H: m.H}
	out.R = append([]float64(nil), m.R...)
	out.G = append([]float64(nil), m.G...)
	out.B = append([]float64(nil), m.B...)
	return out
}

// ToNRGBA quantizes the image to 8-bit opaque pixels.
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			i := m.Index(x, y)
			out.SetNRGBA(x, y, floatToNRGBA(m.R[i], m.G[i], m.B[i]))
		}
	}
	return out
}

// FromImage converts any image into a float raster, dropping alpha.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	out := &Image{W: b.Dx(), H: b.Dy()}
	n := out.W * out.H
	out.R, out.G, out.B = make([]float64, n), make([]float64, n), make([]float64, n)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			i := out.Index(x-b.Min.X, y-b.Min.Y)
			out.R[i] = float64(c.R) / 255.0
			out.G[i] = float64(c.G) / 255.0
			out.B[i] = float64(c.B) / 255.0
		}
	}
	return out
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

func floatToNRGBA(r, g, b float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(math.Round(clamp01(r) * 255)),
		G: uint8(math.Round(clamp01(g) * 255)),
		B: uint8(math.Round(clamp01(b) * 255)),
		A: 255,
	}
}
