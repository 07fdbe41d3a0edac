package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/engine"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
)

const (
	presetLayered = "layered"
	presetFractal = "fractal"
	presetBands   = "bands"
)

var presetNames = []string{presetLayered, presetFractal, presetBands}

// presetConfig returns the engine configuration a preset starts from.
//
//   - layered: two fractal octave stacks colored through the default palette
//   - fractal: one fractal layer reseeded per channel (offsets 1, 2, 3)
//   - bands:   three Gaussian-smoothed bands sharing one mix across channels
func presetConfig(name string, width, height int, seed int64) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.Width = width
	cfg.Height = height

	switch strings.ToLower(name) {
	case presetLayered, "":
		base := noise.DefaultLayer()
		base.Scale = math.Max(1, float64(width)/4)
		base.Seed = seed

		detail := noise.DefaultLayer()
		detail.Scale = math.Max(1, float64(width)/12)
		detail.Octaves = 3
		detail.Weight = 0.5
		detail.Seed = seed + 1

		cfg.Layers = []noise.Layer{base, detail}
		cfg.Mapping = engine.MappingGradient

	case presetFractal:
		l := noise.DefaultLayer()
		l.Seed = seed
		cfg.Layers = []noise.Layer{l}
		cfg.Mapping = engine.MappingChannels
		cfg.ChannelSeedOffsets = [3]int64{1, 2, 3}

	case presetBands:
		cfg.Layers = []noise.Layer{
			noise.DefaultSmoothedLayer(30, 0.5, seed),
			noise.DefaultSmoothedLayer(50, 0.3, seed+1),
			noise.DefaultSmoothedLayer(70, 0.2, seed+2),
		}
		cfg.Mapping = engine.MappingChannels
		cfg.Multipliers = [3]float64{0.3, 0.7, 0.2}
		cfg.ChannelSeedOffsets = [3]int64{0, 0, 0}

	default:
		return engine.Config{}, fmt.Errorf("unknown preset %q (expected one of %s)", name, strings.Join(presetNames, ", "))
	}

	return cfg, nil
}

// stopConfig is the config-file form of a color stop.
type stopConfig struct {
	Position float64 `mapstructure:"position"`
	Color    string  `mapstructure:"color"`
}

// engineConfigFromViper builds the engine configuration from the global flags,
// the selected preset and optional overrides under section (e.g. "render").
//
// Recognized overrides: <section>.layers, <section>.stops, <section>.mapping,
// <section>.multipliers and <section>.channel_seed_offsets.
func engineConfigFromViper(v *viper.Viper, section string) (engine.Config, error) {
	cfg, err := presetConfig(
		v.GetString("preset"),
		v.GetInt("width"),
		v.GetInt("height"),
		v.GetInt64("seed"),
	)
	if err != nil {
		return engine.Config{}, err
	}

	cfg.Backend = v.GetString("backend")
	cfg.Workers = v.GetInt("workers")
	cfg.Export = texture.ExportOptions{PNGCompression: v.GetString("png_compression")}

	key := func(name string) string { return section + "." + name }

	if v.IsSet(key("layers")) {
		var raw []map[string]any
		if err := v.UnmarshalKey(key("layers"), &raw); err != nil {
			return engine.Config{}, fmt.Errorf("failed to parse %s: %w", key("layers"), err)
		}
		layers := make([]noise.Layer, 0, len(raw))
		for i, m := range raw {
			l, err := decodeLayer(m)
			if err != nil {
				return engine.Config{}, fmt.Errorf("failed to parse %s[%d]: %w", key("layers"), i, err)
			}
			layers = append(layers, l)
		}
		cfg.Layers = layers
	}

	if v.IsSet(key("stops")) {
		var raw []stopConfig
		if err := v.UnmarshalKey(key("stops"), &raw); err != nil {
			return engine.Config{}, fmt.Errorf("failed to parse %s: %w", key("stops"), err)
		}
		stops := make([]colormap.Stop, 0, len(raw))
		for _, s := range raw {
			c, err := colormap.ParseColor(s.Color)
			if err != nil {
				return engine.Config{}, fmt.Errorf("failed to parse %s: %w", key("stops"), err)
			}
			stops = append(stops, colormap.Stop{Pos: s.Position, Color: c})
		}
		cfg.Stops = stops
	}

	if m := v.GetString(key("mapping")); m != "" {
		cfg.Mapping = engine.Mapping(m)
	}

	if v.IsSet(key("multipliers")) {
		values, err := floatTriple(v.Get(key("multipliers")))
		if err != nil {
			return engine.Config{}, fmt.Errorf("failed to parse %s: %w", key("multipliers"), err)
		}
		cfg.Multipliers = values
	}

	if v.IsSet(key("channel_seed_offsets")) {
		values, err := floatTriple(v.Get(key("channel_seed_offsets")))
		if err != nil {
			return engine.Config{}, fmt.Errorf("failed to parse %s: %w", key("channel_seed_offsets"), err)
		}
		for c, off := range values {
			cfg.ChannelSeedOffsets[c] = int64(math.Round(off))
		}
	}

	return cfg, nil
}

// decodeLayer fills noise.DefaultLayer with the keys present in m, so a
// layer that omits seamless or kind stays a tileable fractal layer.
func decodeLayer(m map[string]any) (noise.Layer, error) {
	l := noise.DefaultLayer()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &l,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return noise.Layer{}, err
	}
	if err := dec.Decode(m); err != nil {
		return noise.Layer{}, err
	}
	return l, nil
}

// floatTriple reads exactly three numbers from a flag slice, a config list or
// a comma-separated string.
func floatTriple(v any) ([3]float64, error) {
	var out [3]float64

	var items []string
	switch t := v.(type) {
	case string:
		items = strings.Split(t, ",")
	case []string:
		items = t
	case []any:
		for _, e := range t {
			items = append(items, fmt.Sprint(e))
		}
	case []float64:
		for _, e := range t {
			items = append(items, fmt.Sprint(e))
		}
	default:
		return out, fmt.Errorf("expected three numbers, got %T", v)
	}

	if len(items) != 3 {
		return out, fmt.Errorf("expected three numbers, got %d", len(items))
	}
	for i, s := range items {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return out, fmt.Errorf("invalid number %q", s)
		}
		out[i] = f
	}
	return out, nil
}
