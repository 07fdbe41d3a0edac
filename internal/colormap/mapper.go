package colormap

import (
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/noisetex/internal/field"
	"github.com/MeKo-Tech/noisetex/internal/texture"
)

// ValidateStops checks that stops can define a gradient: non-empty, sorted
// ascending, unique positions within [0,1].
func ValidateStops(stops []Stop) error {
	if len(stops) == 0 {
		return fmt.Errorf("%w: no stops", ErrInvalidStops)
	}
	for i, s := range stops {
		if err := checkPosition(s.Pos); err != nil {
			return err
		}
		if i > 0 && s.Pos <= stops[i-1].Pos {
			return fmt.Errorf("%w: position %v at index %d is not above %v", ErrInvalidStops, s.Pos, i, stops[i-1].Pos)
		}
	}
	return nil
}

// padded extends the domain to cover [0,1] by repeating the end colors.
func padded(stops []Stop) []Stop {
	out := make([]Stop, 0, len(stops)+2)
	if stops[0].Pos > 0 {
		out = append(out, Stop{Pos: 0, Color: stops[0].Color})
	}
	out = append(out, stops...)
	if last := stops[len(stops)-1]; last.Pos < 1 {
		out = append(out, Stop{Pos: 1, Color: last.Color})
	}
	return out
}

// Gradient is a validated, padded stop list ready for lookups.
type Gradient struct {
	stops []Stop
}

// NewGradient validates stops and pads them to [0,1].
func NewGradient(stops []Stop) (*Gradient, error) {
	if err := ValidateStops(stops); err != nil {
		return nil, err
	}
	return &Gradient{stops: padded(stops)}, nil
}

// At returns the interpolated color for v. Values outside [0,1] take the end
// colors.
func (g *Gradient) At(v float64) colorful.Color {
	n := len(g.stops)
	if n == 1 || v <= g.stops[0].Pos || math.IsNaN(v) {
		return g.stops[0].Color
	}
	if v >= g.stops[n-1].Pos {
		return g.stops[n-1].Color
	}

	// First stop strictly above v; its predecessor is at or below v.
	i := sort.Search(n, func(i int) bool { return g.stops[i].Pos > v })
	lo, hi := g.stops[i-1], g.stops[i]
	t := (v - lo.Pos) / (hi.Pos - lo.Pos)
	return lo.Color.BlendRgb(hi.Color, t)
}

// Map colors every value of f through the gradient defined by stops.
func Map(f *field.Field, stops []Stop) (*texture.Image, error) {
	if f == nil {
		return nil, fmt.Errorf("no field to map")
	}
	g, err := NewGradient(stops)
	if err != nil {
		return nil, err
	}

	img, err := texture.NewImage(f.W, f.H)
	if err != nil {
		return nil, err
	}
	for i, v := range f.Data {
		c := g.At(v)
		img.R[i], img.G[i], img.B[i] = c.R, c.G, c.B
	}
	return img, nil
}

// MapChannels scales each field by its multiplier and clips to [0,1]. Channels
// are independent; no cross-channel normalization is applied.
func MapChannels(fields [3]*field.Field, mult [3]float64) (*texture.Image, error) {
	for c, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("channel %d has no field", c)
		}
		if !f.SameSize(fields[0]) {
			return nil, fmt.Errorf("channel %d size %dx%d does not match %dx%d", c, f.W, f.H, fields[0].W, fields[0].H)
		}
		if math.IsNaN(mult[c]) {
			return nil, fmt.Errorf("channel %d multiplier is NaN", c)
		}
	}

	img, err := texture.NewImage(fields[0].W, fields[0].H)
	if err != nil {
		return nil, err
	}
	planes := [3][]float64{img.R, img.G, img.B}
	for c, f := range fields {
		m := mult[c]
		dst := planes[c]
		for i, v := range f.Data {
			dst[i] = clip01(m * v)
		}
	}
	return img, nil
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
