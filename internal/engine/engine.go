// Package engine holds the texture parameters and recomputes the image on
// every change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/composite"
	"github.com/MeKo-Tech/noisetex/internal/field"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
	"github.com/MeKo-Tech/noisetex/internal/worker"
)

var (
	// ErrUnknownLayer is returned for layer IDs not in the engine.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrUnknownStop is returned for stop IDs not in the palette.
	ErrUnknownStop = colormap.ErrUnknownStop
)

// Engine owns the layer list, palette and mapping settings together with the
// image they produce. Every mutator regenerates before returning; state and
// image change together or not at all.
type Engine struct {
	logger  *slog.Logger
	backend worker.Backend
	gen     *noise.Generator
	export  texture.ExportOptions
	width   int
	height  int

	mu    sync.Mutex
	state state
	image *texture.Image
}

// New builds an engine from cfg and renders the initial image.
func New(cfg Config, opts ...Option) (*Engine, error) {
	return NewContext(context.Background(), cfg, opts...)
}

// NewContext is New with a context bounding the initial render.
func NewContext(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Mapping == "" {
		cfg.Mapping = MappingGradient
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		logger: o.logger,
		export: cfg.Export,
		width:  cfg.Width,
		height: cfg.Height,
	}

	e.backend = o.backend
	if e.backend == nil {
		e.backend = worker.NewBackend(cfg.Backend, worker.Config{
			Workers:    cfg.Workers,
			BandHeight: cfg.BandHeight,
			OnProgress: o.onProgress,
		}, e.log())
	}
	e.gen = noise.NewGenerator(e.backend)

	st := state{
		mapping:     cfg.Mapping,
		multipliers: cfg.Multipliers,
		offsets:     cfg.ChannelSeedOffsets,
	}
	layers := cfg.Layers
	if len(layers) == 0 {
		layers = []noise.Layer{noise.DefaultLayer()}
	}
	for _, l := range layers {
		st.addLayer(l)
	}
	if len(cfg.Stops) == 0 {
		st.palette = colormap.DefaultPalette()
	} else {
		p, err := colormap.NewPalette(cfg.Stops...)
		if err != nil {
			return nil, err
		}
		st.palette = p
	}

	img, err := e.render(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to render initial texture: %w", err)
	}
	e.state = st
	e.image = img

	e.log().Info("Texture engine ready",
		"size", fmt.Sprintf("%dx%d", e.width, e.height),
		"backend", e.backend.Name(),
		"layers", len(st.layers),
		"mapping", st.mapping)
	return e, nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// Backend returns the name of the backend computing fractal rows.
func (e *Engine) Backend() string { return e.backend.Name() }

// mutate applies fn to a copy of the state, renders it and commits both.
func (e *Engine) mutate(ctx context.Context, op string, fn func(*state) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.clone()
	if err := fn(&next); err != nil {
		e.log().Debug("Rejected change", "op", op, "error", err)
		return err
	}

	img, err := e.render(ctx, next)
	if err != nil {
		e.log().Warn("Regeneration failed; keeping previous texture", "op", op, "error", err)
		return fmt.Errorf("failed to regenerate after %s: %w", op, err)
	}

	e.state = next
	e.image = img
	return nil
}

// AddLayer appends l and returns its ID.
func (e *Engine) AddLayer(ctx context.Context, l noise.Layer) (LayerID, error) {
	var id LayerID
	err := e.mutate(ctx, "add layer", func(s *state) error {
		if err := l.Validate(); err != nil {
			return err
		}
		id = s.addLayer(l)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveLayer deletes the layer with id. Removing the last layer is allowed
// and yields a flat composite.
func (e *Engine) RemoveLayer(ctx context.Context, id LayerID) error {
	return e.mutate(ctx, "remove layer", func(s *state) error {
		i := s.layerIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrUnknownLayer, id)
		}
		s.layers = append(s.layers[:i], s.layers[i+1:]...)
		return nil
	})
}

// UpdateLayer replaces the parameters of the layer with id.
func (e *Engine) UpdateLayer(ctx context.Context, id LayerID, l noise.Layer) error {
	return e.UpdateLayerFunc(ctx, id, func(cur *noise.Layer) error {
		*cur = l
		return nil
	})
}

// UpdateLayerFunc applies fn to a copy of the current parameters of the layer
// with id while holding the engine lock, so concurrent partial updates cannot
// overwrite each other. An error from fn aborts the update.
func (e *Engine) UpdateLayerFunc(ctx context.Context, id LayerID, fn func(*noise.Layer) error) error {
	return e.mutate(ctx, "update layer", func(s *state) error {
		i := s.layerIndex(id)
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrUnknownLayer, id)
		}
		l := s.layers[i].Layer
		if err := fn(&l); err != nil {
			return err
		}
		if err := l.Validate(); err != nil {
			return err
		}
		s.layers[i].Layer = l
		return nil
	})
}

// Layers returns the layer list in compositing order.
func (e *Engine) Layers() []LayerEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LayerEntry(nil), e.state.layers...)
}

// AddColorStop inserts a stop at pos, or recolors the stop already there.
func (e *Engine) AddColorStop(ctx context.Context, pos float64, c colorful.Color) (colormap.StopID, error) {
	var id colormap.StopID
	err := e.mutate(ctx, "add color stop", func(s *state) error {
		var err error
		id, err = s.palette.Add(pos, c)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddNextColorStop appends a stop just after the last one.
func (e *Engine) AddNextColorStop(ctx context.Context, c colorful.Color) (colormap.StopID, error) {
	var id colormap.StopID
	err := e.mutate(ctx, "add color stop", func(s *state) error {
		var err error
		id, err = s.palette.AddNext(c)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveColorStop deletes a stop. Removing the last stop restores the default
// palette.
func (e *Engine) RemoveColorStop(ctx context.Context, id colormap.StopID) error {
	return e.mutate(ctx, "remove color stop", func(s *state) error {
		if err := s.palette.Remove(id); err != nil {
			return err
		}
		if s.palette.Len() == 0 {
			s.palette = colormap.DefaultPalette()
		}
		return nil
	})
}

// RecolorStop changes the color of a stop.
func (e *Engine) RecolorStop(ctx context.Context, id colormap.StopID, c colorful.Color) error {
	return e.mutate(ctx, "recolor stop", func(s *state) error {
		return s.palette.Recolor(id, c)
	})
}

// ColorStops returns the stored stops in position order.
func (e *Engine) ColorStops() []colormap.Stop {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.palette.Stops()
}

// SetMapping switches between gradient and channel mapping.
func (e *Engine) SetMapping(ctx context.Context, m Mapping) error {
	return e.mutate(ctx, "set mapping", func(s *state) error {
		if !m.Valid() {
			return fmt.Errorf("%w: unknown mapping %q", ErrInvalidSettings, m)
		}
		s.mapping = m
		return nil
	})
}

// SetMultipliers sets the per-channel multipliers used by channel mapping.
func (e *Engine) SetMultipliers(ctx context.Context, m [3]float64) error {
	return e.mutate(ctx, "set multipliers", func(s *state) error {
		if err := validateMultipliers(m); err != nil {
			return err
		}
		s.multipliers = m
		return nil
	})
}

// Snapshot returns the current parameters.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Width:              e.width,
		Height:             e.height,
		Layers:             append([]LayerEntry(nil), e.state.layers...),
		Stops:              e.state.palette.Stops(),
		Mapping:            e.state.mapping,
		Multipliers:        e.state.multipliers,
		ChannelSeedOffsets: e.state.offsets,
	}
}

// Regenerate recomputes the image from the current state and swaps it in.
// The returned image is shared and must not be modified.
func (e *Engine) Regenerate(ctx context.Context) (*texture.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, err := e.render(ctx, e.state)
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate: %w", err)
	}
	e.image = img
	return img, nil
}

// Image returns the last rendered image. It is replaced, never modified, on
// regeneration, so callers may read it without holding any lock.
func (e *Engine) Image() *texture.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.image
}

// Export writes the current image to path. An empty path is a no-op.
func (e *Engine) Export(path string) error {
	if path == "" {
		e.log().Debug("Export skipped; no path given")
		return nil
	}

	e.mu.Lock()
	img := e.image
	opts := e.export
	opts.Seamless = e.state.seamless()
	e.mu.Unlock()

	if err := texture.WriteFile(path, img, opts); err != nil {
		return err
	}
	e.log().Info("Exported texture", "path", path, "size", fmt.Sprintf("%dx%d", img.W, img.H))
	return nil
}

// render runs the full pipeline for st. It never touches e.state or e.image.
func (e *Engine) render(ctx context.Context, st state) (*texture.Image, error) {
	start := time.Now()

	var (
		img *texture.Image
		err error
	)
	switch st.mapping {
	case MappingChannels:
		img, err = e.renderChannels(ctx, st)
	default:
		var mix *field.Field
		mix, err = e.mix(ctx, st.layers, 0, true)
		if err == nil {
			img, err = colormap.Map(mix, st.palette.Stops())
		}
	}
	if err != nil {
		return nil, err
	}

	e.log().Debug("Regenerated texture",
		"layers", len(st.layers),
		"mapping", st.mapping,
		"duration", time.Since(start))
	return img, nil
}

// renderChannels builds one unnormalized mix per distinct seed offset and
// scales it by the channel multiplier, clipping to [0,1].
func (e *Engine) renderChannels(ctx context.Context, st state) (*texture.Image, error) {
	var fields [3]*field.Field
	byOffset := make(map[int64]*field.Field, 3)

	for c, offset := range st.offsets {
		if f, ok := byOffset[offset]; ok {
			fields[c] = f
			continue
		}
		f, err := e.mix(ctx, st.layers, offset, false)
		if err != nil {
			return nil, fmt.Errorf("failed to build channel %d: %w", c, err)
		}
		byOffset[offset] = f
		fields[c] = f
	}

	return colormap.MapChannels(fields, st.multipliers)
}

// mix generates every layer with its seed shifted by offset and sums the
// fields by weight. With normalize set, each field and the sum are min-max
// normalized, as the gradient needs the full [0,1] range. Without it the raw
// strategy outputs are summed, so the fractal offset reaches the channels.
func (e *Engine) mix(ctx context.Context, layers []LayerEntry, offset int64, normalize bool) (*field.Field, error) {
	inputs := make([]composite.Input, 0, len(layers))
	for _, entry := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := entry.Layer
		f, err := e.gen.Generate(ctx, e.width, e.height, l.WithSeed(l.Seed+offset))
		if err != nil {
			return nil, fmt.Errorf("failed to generate layer %d: %w", entry.ID, err)
		}
		if normalize {
			f.Normalize()
		}
		inputs = append(inputs, composite.Input{Field: f, Weight: l.Weight})
	}
	if normalize {
		return composite.CompositeSized(e.width, e.height, inputs)
	}
	return composite.SumSized(e.width, e.height, inputs)
}
