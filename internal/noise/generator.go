package noise

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/noisetex/internal/field"
	"github.com/MeKo-Tech/noisetex/internal/worker"
)

// Strategy produces a single scalar field from layer parameters.
type Strategy interface {
	Generate(ctx context.Context, width, height int, l Layer) (*field.Field, error)
}

// Generator dispatches layers to the strategy matching their Kind.
type Generator struct {
	strategies map[Kind]Strategy
}

// NewGenerator wires the fractal strategy to backend and registers the
// smoothed strategy. A nil backend computes serially.
func NewGenerator(backend worker.Backend) *Generator {
	return &Generator{
		strategies: map[Kind]Strategy{
			KindFractal:  Fractal{Backend: backend},
			KindSmoothed: Smoothed{},
		},
	}
}

// Generate validates l and returns its raw field. Fractal output carries the
// FractalOffset shift; smoothed output is already normalized.
func (g *Generator) Generate(ctx context.Context, width, height int, l Layer) (*field.Field, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	s, ok := g.strategies[l.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no strategy for kind %q", ErrInvalidLayer, l.Kind)
	}
	return s.Generate(ctx, width, height, l)
}
