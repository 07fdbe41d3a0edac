package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/composite"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
	"github.com/MeKo-Tech/noisetex/internal/worker"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 48
	cfg.Height = 40
	cfg.Backend = worker.BackendSerial
	return cfg
}

func fractal(scale float64, weight float64, seed int64) noise.Layer {
	l := noise.DefaultLayer()
	l.Scale = scale
	l.Weight = weight
	l.Seed = seed
	return l
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, e.Image())
	return e
}

func TestNewSeedsDefaults(t *testing.T) {
	e := newEngine(t, smallConfig())

	layers := e.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, noise.DefaultLayer(), layers[0].Layer)
	assert.Len(t, e.ColorStops(), len(colormap.DefaultColors))
	assert.Equal(t, worker.BackendSerial, e.Backend())

	img := e.Image()
	assert.Equal(t, 48, img.W)
	assert.Equal(t, 40, img.H)
	assert.True(t, img.InRange())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero width", mutate: func(c *Config) { c.Width = 0 }},
		{name: "unknown mapping", mutate: func(c *Config) { c.Mapping = "sepia" }},
		{name: "negative multiplier", mutate: func(c *Config) { c.Multipliers[1] = -1 }},
		{name: "invalid layer", mutate: func(c *Config) { c.Layers = []noise.Layer{fractal(0, 1, 0)} }},
		{name: "invalid stop", mutate: func(c *Config) { c.Stops = []colormap.Stop{{Pos: 2}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestScenarioSingleFractalLayer(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size render")
	}
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 700, 700
	cfg.Layers = []noise.Layer{fractal(100, 1, 0)}

	e := newEngine(t, cfg)
	img := e.Image()
	assert.Equal(t, 700, img.W)
	assert.Equal(t, 700, img.H)
	assert.Len(t, img.R, 700*700)
	assert.True(t, img.InRange())
}

func TestScenarioBandsWithChannelMultipliers(t *testing.T) {
	const size = 96
	layers := []noise.Layer{
		noise.DefaultSmoothedLayer(30, 0.5, 0),
		noise.DefaultSmoothedLayer(50, 0.3, 0),
		noise.DefaultSmoothedLayer(70, 0.2, 0),
	}
	layers[1].Seed, layers[2].Seed = 1, 2

	cfg := smallConfig()
	cfg.Width, cfg.Height = size, size
	cfg.Layers = layers
	cfg.Mapping = MappingChannels
	cfg.Multipliers = [3]float64{0.3, 0.7, 0.2}
	cfg.ChannelSeedOffsets = [3]int64{0, 0, 0}
	e := newEngine(t, cfg)

	// Each band is already normalized; the weighted mix is not renormalized.
	gen := noise.NewGenerator(nil)
	inputs := make([]composite.Input, 0, len(layers))
	for _, l := range layers {
		f, err := gen.Generate(context.Background(), size, size, l)
		require.NoError(t, err)
		inputs = append(inputs, composite.Input{Field: f, Weight: l.Weight})
	}
	mix, err := composite.Sum(inputs)
	require.NoError(t, err)

	img := e.Image()
	planes := [3][]float64{img.R, img.G, img.B}
	for c, m := range cfg.Multipliers {
		for i, v := range mix.Data {
			want := m * v
			if want > 1 {
				want = 1
			}
			require.InDelta(t, want, planes[c][i], 1e-12, "channel %d index %d", c, i)
		}
	}
}

func TestChannelsKeepFractalOffset(t *testing.T) {
	l := fractal(30, 1, 5)

	cfg := smallConfig()
	cfg.Layers = []noise.Layer{l}
	cfg.Mapping = MappingChannels
	cfg.Multipliers = [3]float64{0.8, 1, 0.5}
	cfg.ChannelSeedOffsets = [3]int64{1, 2, 3}
	e := newEngine(t, cfg)

	raw, err := noise.NewGenerator(nil).Generate(context.Background(), cfg.Width, cfg.Height, l.WithSeed(l.Seed+1))
	require.NoError(t, err)

	img := e.Image()
	for i, v := range raw.Data {
		want := cfg.Multipliers[0] * v
		if want > 1 {
			want = 1
		}
		if want < 0 {
			want = 0
		}
		require.InDelta(t, want, img.R[i], 1e-12, "index %d", i)
	}

	// The lattice origin carries only the offset.
	assert.InDelta(t, 0.8*noise.FractalOffset, img.R[0], 1e-12)
	assert.InDelta(t, noise.FractalOffset, img.G[0], 1e-12)

	lo, hi := 1.0, 0.0
	for _, v := range img.R {
		lo, hi = min(lo, v), max(hi, v)
	}
	assert.False(t, lo == 0 && hi >= 0.8-1e-9, "channel must not be stretched to [0, multiplier]")
}

func TestChannelOffsetsDecorrelate(t *testing.T) {
	cfg := smallConfig()
	cfg.Mapping = MappingChannels
	e := newEngine(t, cfg)

	img := e.Image()
	different := 0
	for i := range img.R {
		if img.R[i] != img.G[i] {
			different++
		}
	}
	assert.Greater(t, different, len(img.R)/2)
}

func TestScenarioRemoveLayer(t *testing.T) {
	ctx := context.Background()
	a, b, c := fractal(20, 1, 1), fractal(35, 0.5, 2), fractal(60, 0.25, 3)

	cfg := smallConfig()
	cfg.Layers = []noise.Layer{a, b, c}
	e := newEngine(t, cfg)
	layers := e.Layers()
	require.Len(t, layers, 3)

	require.NoError(t, e.RemoveLayer(ctx, layers[1].ID))
	remaining := e.Layers()
	require.Len(t, remaining, 2)
	assert.Equal(t, layers[0].ID, remaining[0].ID)
	assert.Equal(t, layers[2].ID, remaining[1].ID)

	ref := smallConfig()
	ref.Layers = []noise.Layer{a, c}
	want := newEngine(t, ref).Image()
	assert.Equal(t, want.R, e.Image().R)
	assert.Equal(t, want.G, e.Image().G)
	assert.Equal(t, want.B, e.Image().B)
}

func TestLayerIDsAreStable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, smallConfig())

	first := e.Layers()[0].ID
	id2, err := e.AddLayer(ctx, fractal(30, 0.5, 9))
	require.NoError(t, err)
	require.NoError(t, e.RemoveLayer(ctx, first))
	id3, err := e.AddLayer(ctx, noise.DefaultSmoothedLayer(5, 0.5, 1))
	require.NoError(t, err)

	assert.NotEqual(t, first, id3)
	layers := e.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, id2, layers[0].ID)
	assert.Equal(t, id3, layers[1].ID)
}

func TestUpdateLayerRegenerates(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, smallConfig())
	id := e.Layers()[0].ID
	before := e.Image()

	l := e.Layers()[0].Layer
	l.Seed = 77
	require.NoError(t, e.UpdateLayer(ctx, id, l))

	assert.Equal(t, int64(77), e.Layers()[0].Layer.Seed)
	assert.NotSame(t, before, e.Image())
	assert.NotEqual(t, before.R, e.Image().R)
}

func TestUpdateLayerFuncPatchesCurrentParameters(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, smallConfig())
	id := e.Layers()[0].ID

	require.NoError(t, e.UpdateLayerFunc(ctx, id, func(l *noise.Layer) error {
		l.Octaves = 2
		return nil
	}))
	require.NoError(t, e.UpdateLayerFunc(ctx, id, func(l *noise.Layer) error {
		l.Weight = 0.4
		return nil
	}))

	got := e.Layers()[0].Layer
	assert.Equal(t, 2, got.Octaves)
	assert.Equal(t, 0.4, got.Weight)
	assert.True(t, got.Seamless)

	before := e.Snapshot()
	img := e.Image()

	errPatch := errors.New("patch rejected")
	err := e.UpdateLayerFunc(ctx, id, func(l *noise.Layer) error {
		l.Weight = 0.9
		return errPatch
	})
	require.ErrorIs(t, err, errPatch)

	err = e.UpdateLayerFunc(ctx, id, func(l *noise.Layer) error {
		l.Scale = 0
		return nil
	})
	require.ErrorIs(t, err, noise.ErrInvalidLayer)

	err = e.UpdateLayerFunc(ctx, id+100, func(*noise.Layer) error { return nil })
	require.ErrorIs(t, err, ErrUnknownLayer)

	assert.Equal(t, before, e.Snapshot())
	assert.Same(t, img, e.Image())
}

func TestConcurrentLayerPatchesAreNotLost(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, smallConfig())
	id := e.Layers()[0].ID

	patches := []func(*noise.Layer){
		func(l *noise.Layer) { l.Octaves = 3 },
		func(l *noise.Layer) { l.Weight = 0.5 },
		func(l *noise.Layer) { l.Seed = 77 },
		func(l *noise.Layer) { l.Lacunarity = 2.5 },
	}

	var wg sync.WaitGroup
	for _, patch := range patches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.UpdateLayerFunc(ctx, id, func(l *noise.Layer) error {
				patch(l)
				return nil
			}))
		}()
	}
	wg.Wait()

	got := e.Layers()[0].Layer
	assert.Equal(t, 3, got.Octaves)
	assert.Equal(t, 0.5, got.Weight)
	assert.Equal(t, int64(77), got.Seed)
	assert.Equal(t, 2.5, got.Lacunarity)
}

func TestFailedMutationsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, smallConfig())
	id := e.Layers()[0].ID

	snapshot := e.Snapshot()
	img := e.Image()

	bad := noise.DefaultLayer()
	bad.Octaves = 11

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err := e.AddLayer(ctx, bad)
	require.ErrorIs(t, err, noise.ErrInvalidLayer)
	require.ErrorIs(t, e.UpdateLayer(ctx, id, bad), noise.ErrInvalidLayer)
	require.ErrorIs(t, e.UpdateLayer(ctx, id+100, noise.DefaultLayer()), ErrUnknownLayer)
	require.ErrorIs(t, e.RemoveLayer(ctx, id+100), ErrUnknownLayer)
	_, err = e.AddColorStop(ctx, -0.5, colorful.Color{})
	require.ErrorIs(t, err, colormap.ErrInvalidStops)
	require.ErrorIs(t, e.RemoveColorStop(ctx, 999), ErrUnknownStop)
	require.ErrorIs(t, e.RecolorStop(ctx, 999, colorful.Color{}), ErrUnknownStop)
	require.ErrorIs(t, e.SetMapping(ctx, "sepia"), ErrInvalidSettings)
	require.ErrorIs(t, e.SetMultipliers(ctx, [3]float64{1, -1, 1}), ErrInvalidSettings)
	require.ErrorIs(t, e.RemoveLayer(cancelled, id), context.Canceled)
	_, err = e.Regenerate(cancelled)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, snapshot, e.Snapshot())
	assert.Same(t, img, e.Image())
}

func TestColorStopOperations(t *testing.T) {
	ctx := context.Background()
	cfg := smallConfig()
	cfg.Stops = []colormap.Stop{
		{Pos: 0, Color: colorful.Color{}},
		{Pos: 1, Color: colorful.Color{R: 1, G: 1, B: 1}},
	}
	e := newEngine(t, cfg)

	red := colorful.Color{R: 1}
	id, err := e.AddColorStop(ctx, 0.5, red)
	require.NoError(t, err)
	require.Len(t, e.ColorStops(), 3)

	nextID, err := e.AddNextColorStop(ctx, red)
	require.NoError(t, err)
	// Last stop is already at 1.0, so it is recolored.
	assert.Equal(t, e.ColorStops()[2].ID, nextID)
	assert.Equal(t, red, e.ColorStops()[2].Color)

	blue := colorful.Color{B: 1}
	require.NoError(t, e.RecolorStop(ctx, id, blue))
	assert.Equal(t, blue, e.ColorStops()[1].Color)

	require.NoError(t, colormap.ValidateStops(e.ColorStops()))

	for _, s := range e.ColorStops() {
		require.NoError(t, e.RemoveColorStop(ctx, s.ID))
	}
	assert.Len(t, e.ColorStops(), len(colormap.DefaultColors))
}

func TestGradientFollowsStops(t *testing.T) {
	ctx := context.Background()
	cfg := smallConfig()
	cfg.Stops = []colormap.Stop{{Pos: 0.5, Color: colorful.Color{R: 0.2, G: 0.4, B: 0.6}}}
	e := newEngine(t, cfg)

	img := e.Image()
	for i := range img.R {
		require.InDelta(t, 0.2, img.R[i], 1e-12)
		require.InDelta(t, 0.6, img.B[i], 1e-12)
	}

	require.NoError(t, e.SetMapping(ctx, MappingChannels))
	require.NoError(t, e.SetMultipliers(ctx, [3]float64{0, 0, 0}))
	for _, v := range e.Image().G {
		require.Equal(t, 0.0, v)
	}
	assert.Equal(t, MappingChannels, e.Snapshot().Mapping)
}

func TestBackendsProduceIdenticalImages(t *testing.T) {
	cfg := smallConfig()
	cfg.Layers = []noise.Layer{fractal(15, 1, 4), fractal(40, 0.5, 5)}
	serial := newEngine(t, cfg)

	cfg.Backend = worker.BackendParallel
	cfg.Workers = 3
	cfg.BandHeight = 5
	parallel := newEngine(t, cfg)

	cfg.Backend = "cuda"
	fallback := newEngine(t, cfg)
	assert.Equal(t, worker.BackendSerial, fallback.Backend())

	assert.Equal(t, serial.Image().R, parallel.Image().R)
	assert.Equal(t, serial.Image().R, fallback.Image().R)
}

func TestRegenerateIsDeterministic(t *testing.T) {
	e := newEngine(t, smallConfig())
	before := e.Image()

	img, err := e.Regenerate(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, before, img)
	assert.Equal(t, before.R, img.R)
	assert.Same(t, img, e.Image())
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, smallConfig())

	require.NoError(t, e.Export(""))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	path := filepath.Join(dir, texture.DefaultFilename)
	require.NoError(t, e.Export(path))
	got, err := texture.Load(path)
	require.NoError(t, err)
	assert.Equal(t, e.Image().W, got.W)

	img := e.Image()
	err = e.Export(filepath.Join(dir, "missing", "t.png"))
	require.Error(t, err)
	assert.Same(t, img, e.Image())
}

func TestProgressOption(t *testing.T) {
	var calls atomic.Int64
	cfg := smallConfig()
	cfg.Backend = worker.BackendParallel
	_, err := New(cfg, WithProgress(func(completed, total int) { calls.Add(1) }))
	require.NoError(t, err)
	assert.Positive(t, calls.Load())
}

func TestWithBackendOverrides(t *testing.T) {
	cfg := smallConfig()
	cfg.Backend = "parallel"
	e, err := New(cfg, WithBackend(worker.Serial{}))
	require.NoError(t, err)
	assert.Equal(t, worker.BackendSerial, e.Backend())
}

func TestMixOfNoLayersIsFlat(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, smallConfig())
	require.NoError(t, e.RemoveLayer(ctx, e.Layers()[0].ID))
	assert.Empty(t, e.Layers())

	first := e.ColorStops()[0].Color
	img := e.Image()
	for i := range img.R {
		require.InDelta(t, first.R, img.R[i], 1e-12)
	}
}

func TestNewContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewContext(ctx, smallConfig())
	require.ErrorIs(t, err, context.Canceled)
}
