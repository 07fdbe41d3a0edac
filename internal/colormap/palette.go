// Package colormap turns normalized scalar fields into RGB textures, either
// through a piecewise-linear color gradient or per-channel multipliers.
package colormap

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidStops is returned for stop lists that cannot define a gradient.
var ErrInvalidStops = errors.New("invalid color stops")

// ErrUnknownStop is returned when a stop ID is not in the palette.
var ErrUnknownStop = errors.New("unknown color stop")

// NextStopStep is the distance AddNext places a new stop after the last one.
const NextStopStep = 0.1

// DefaultColors is the green-to-amber palette used when no stops are configured.
var DefaultColors = []string{"#4CAF50", "#8BC34A", "#CDDC39", "#FFEB3B", "#FFC107"}

// StopID identifies a stop for the lifetime of its palette.
type StopID int

// Stop is one gradient anchor.
type Stop struct {
	ID    StopID
	Pos   float64
	Color colorful.Color
}

// Hex returns the stop color as #rrggbb.
func (s Stop) Hex() string { return s.Color.Clamped().Hex() }

type stopJSON struct {
	ID    StopID  `json:"id"`
	Pos   float64 `json:"position"`
	Color string  `json:"color"`
}

// MarshalJSON encodes the color as a hex string.
func (s Stop) MarshalJSON() ([]byte, error) {
	return json.Marshal(stopJSON{ID: s.ID, Pos: s.Pos, Color: s.Hex()})
}

// UnmarshalJSON accepts the form written by MarshalJSON.
func (s *Stop) UnmarshalJSON(data []byte) error {
	var raw stopJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c, err := ParseColor(raw.Color)
	if err != nil {
		return err
	}
	*s = Stop{ID: raw.ID, Pos: raw.Pos, Color: c}
	return nil
}

// Palette is an ordered collection of stops. After every mutation the stops are
// sorted ascending by position and positions are unique.
type Palette struct {
	stops  []Stop
	nextID StopID
}

// NewPalette builds a palette from (position, color) pairs.
func NewPalette(stops ...Stop) (*Palette, error) {
	p := &Palette{}
	for _, s := range stops {
		if _, err := p.Add(s.Pos, s.Color); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DefaultPalette spreads DefaultColors evenly over [0,1].
func DefaultPalette() *Palette {
	p := &Palette{}
	n := len(DefaultColors)
	for i, hex := range DefaultColors {
		c, err := colorful.Hex(hex)
		if err != nil {
			panic(fmt.Sprintf("bad default color %s: %v", hex, err))
		}
		if _, err := p.Add(float64(i)/float64(n-1), c); err != nil {
			panic(err)
		}
	}
	return p
}

// Clone returns an independent copy that keeps IDs and the ID counter.
func (p *Palette) Clone() *Palette {
	return &Palette{
		stops:  append([]Stop(nil), p.stops...),
		nextID: p.nextID,
	}
}

// Len returns the number of stored stops.
func (p *Palette) Len() int { return len(p.stops) }

// Stops returns a copy of the stored stops in position order.
func (p *Palette) Stops() []Stop {
	return append([]Stop(nil), p.stops...)
}

// Add inserts a stop at pos. A stop already at pos is recolored instead, and
// its ID is returned.
func (p *Palette) Add(pos float64, c colorful.Color) (StopID, error) {
	if err := checkPosition(pos); err != nil {
		return 0, err
	}
	if err := checkColor(c); err != nil {
		return 0, err
	}

	i := sort.Search(len(p.stops), func(i int) bool { return p.stops[i].Pos >= pos })
	if i < len(p.stops) && p.stops[i].Pos == pos {
		p.stops[i].Color = c
		return p.stops[i].ID, nil
	}

	p.nextID++
	s := Stop{ID: p.nextID, Pos: pos, Color: c}
	p.stops = append(p.stops, Stop{})
	copy(p.stops[i+1:], p.stops[i:])
	p.stops[i] = s
	return s.ID, nil
}

// AddNext appends a stop NextStopStep after the last one, capped at 1.0.
// An empty palette starts at 0.0.
func (p *Palette) AddNext(c colorful.Color) (StopID, error) {
	pos := 0.0
	if n := len(p.stops); n > 0 {
		pos = math.Min(p.stops[n-1].Pos+NextStopStep, 1.0)
	}
	return p.Add(pos, c)
}

// Remove deletes the stop with id.
func (p *Palette) Remove(id StopID) error {
	i := p.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownStop, id)
	}
	p.stops = append(p.stops[:i], p.stops[i+1:]...)
	return nil
}

// Recolor replaces the color of the stop with id.
func (p *Palette) Recolor(id StopID, c colorful.Color) error {
	if err := checkColor(c); err != nil {
		return err
	}
	i := p.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownStop, id)
	}
	p.stops[i].Color = c
	return nil
}

// Get returns the stop with id.
func (p *Palette) Get(id StopID) (Stop, bool) {
	i := p.index(id)
	if i < 0 {
		return Stop{}, false
	}
	return p.stops[i], true
}

func (p *Palette) index(id StopID) int {
	for i, s := range p.stops {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func checkPosition(pos float64) error {
	if math.IsNaN(pos) || pos < 0 || pos > 1 {
		return fmt.Errorf("%w: position %v outside [0,1]", ErrInvalidStops, pos)
	}
	return nil
}

func checkColor(c colorful.Color) error {
	for _, v := range []float64{c.R, c.G, c.B} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: color channel %v outside [0,1]", ErrInvalidStops, v)
		}
	}
	return nil
}

// ParseColor accepts #rrggbb or #rgb.
func ParseColor(s string) (colorful.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %v", ErrInvalidStops, err)
	}
	return c, nil
}
