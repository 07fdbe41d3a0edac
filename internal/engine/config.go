package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
	"github.com/MeKo-Tech/noisetex/internal/worker"
)

// Mapping selects how the composite becomes RGB.
type Mapping string

const (
	// MappingGradient colors the composite through the palette.
	MappingGradient Mapping = "gradient"
	// MappingChannels builds each channel from its own reseeded composite.
	MappingChannels Mapping = "channels"
)

// ErrInvalidSettings is returned for malformed engine-wide settings.
var ErrInvalidSettings = errors.New("invalid engine settings")

// Valid reports whether m is a known mapping.
func (m Mapping) Valid() bool {
	return m == MappingGradient || m == MappingChannels
}

// Config describes the initial engine state.
type Config struct {
	Width  int
	Height int

	// Layers seeds the layer list. Empty means one default fractal layer.
	Layers []noise.Layer
	// Stops seeds the palette. Empty means the default palette.
	Stops []colormap.Stop

	Mapping            Mapping
	Multipliers        [3]float64
	ChannelSeedOffsets [3]int64

	Backend    string
	Workers    int
	BandHeight int

	Export texture.ExportOptions
}

// DefaultConfig returns a 512x512 gradient-mapped engine configuration.
func DefaultConfig() Config {
	return Config{
		Width:              512,
		Height:             512,
		Mapping:            MappingGradient,
		Multipliers:        [3]float64{1, 1, 1},
		ChannelSeedOffsets: [3]int64{1, 2, 3},
		Backend:            worker.BackendParallel,
	}
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidSettings, c.Width, c.Height)
	}
	if !c.Mapping.Valid() {
		return fmt.Errorf("%w: unknown mapping %q", ErrInvalidSettings, c.Mapping)
	}
	if err := validateMultipliers(c.Multipliers); err != nil {
		return err
	}
	for i, l := range c.Layers {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

func validateMultipliers(m [3]float64) error {
	for c, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: channel %d multiplier %v must be finite and non-negative", ErrInvalidSettings, c, v)
		}
	}
	return nil
}

// Option customizes an Engine.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	backend    worker.Backend
	onProgress worker.ProgressFunc
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBackend overrides the backend named in Config.
func WithBackend(b worker.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithProgress reports completed row bands of every fractal field.
func WithProgress(fn worker.ProgressFunc) Option {
	return func(o *options) { o.onProgress = fn }
}
