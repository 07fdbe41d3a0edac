// Package noise generates scalar fields from procedural noise layers.
package noise

import (
	"errors"
	"fmt"
)

// ErrInvalidLayer is returned when layer parameters violate their contract.
var ErrInvalidLayer = errors.New("invalid noise layer")

// Kind selects the generation strategy for a layer.
type Kind string

const (
	// KindFractal sums octaves of coherent gradient noise.
	KindFractal Kind = "fractal"
	// KindSmoothed Gaussian-smooths uniform white noise.
	KindSmoothed Kind = "smoothed"
)

// Parameter bounds shared with control surfaces.
const (
	MinOctaves = 1
	MaxOctaves = 10
)

// Layer holds the parameters of one weighted noise contribution.
type Layer struct {
	Kind        Kind    `json:"kind" mapstructure:"kind"`
	Scale       float64 `json:"scale" mapstructure:"scale"`
	Octaves     int     `json:"octaves" mapstructure:"octaves"`
	Persistence float64 `json:"persistence" mapstructure:"persistence"`
	Lacunarity  float64 `json:"lacunarity" mapstructure:"lacunarity"`
	Weight      float64 `json:"weight" mapstructure:"weight"`
	Seed        int64   `json:"seed" mapstructure:"seed"`
	Sigma       float64 `json:"sigma" mapstructure:"sigma"`
	// Seamless makes fractal layers tile with the field's width and height.
	Seamless bool `json:"seamless" mapstructure:"seamless"`
}

// DefaultLayer returns the fractal layer a fresh session starts with.
func DefaultLayer() Layer {
	return Layer{
		Kind:        KindFractal,
		Scale:       100,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2.0,
		Weight:      1.0,
		Seed:        0,
		Sigma:       30,
		Seamless:    true,
	}
}

// DefaultSmoothedLayer returns a band-limited layer with the given sigma and weight.
func DefaultSmoothedLayer(sigma, weight float64, seed int64) Layer {
	return Layer{
		Kind:        KindSmoothed,
		Scale:       1,
		Octaves:     1,
		Persistence: 0.5,
		Lacunarity:  2.0,
		Weight:      weight,
		Seed:        seed,
		Sigma:       sigma,
	}
}

// WithSeed returns a copy of l using seed.
func (l Layer) WithSeed(seed int64) Layer {
	l.Seed = seed
	return l
}

// Validate checks the layer against its contract.
func (l Layer) Validate() error {
	switch l.Kind {
	case KindFractal:
		if !(l.Scale > 0) {
			return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidLayer, l.Scale)
		}
		if l.Octaves < MinOctaves || l.Octaves > MaxOctaves {
			return fmt.Errorf("%w: octaves must be within [%d,%d], got %d", ErrInvalidLayer, MinOctaves, MaxOctaves, l.Octaves)
		}
		if !(l.Persistence > 0) || l.Persistence > 1 {
			return fmt.Errorf("%w: persistence must be within (0,1], got %v", ErrInvalidLayer, l.Persistence)
		}
		if !(l.Lacunarity >= 1) {
			return fmt.Errorf("%w: lacunarity must be >= 1, got %v", ErrInvalidLayer, l.Lacunarity)
		}
	case KindSmoothed:
		if !(l.Sigma > 0) {
			return fmt.Errorf("%w: sigma must be positive, got %v", ErrInvalidLayer, l.Sigma)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLayer, l.Kind)
	}
	if !(l.Weight >= 0) {
		return fmt.Errorf("%w: weight must be non-negative, got %v", ErrInvalidLayer, l.Weight)
	}
	return nil
}
