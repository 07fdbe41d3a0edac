package engine

import (
	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/noise"
)

// LayerID identifies a layer for the lifetime of an engine.
type LayerID int

// LayerEntry is a layer together with its stable ID.
type LayerEntry struct {
	ID    LayerID     `json:"id"`
	Layer noise.Layer `json:"layer"`
}

// State is a read-only snapshot of the engine parameters.
type State struct {
	Width              int             `json:"width"`
	Height             int             `json:"height"`
	Layers             []LayerEntry    `json:"layers"`
	Stops              []colormap.Stop `json:"stops"`
	Mapping            Mapping         `json:"mapping"`
	Multipliers        [3]float64      `json:"multipliers"`
	ChannelSeedOffsets [3]int64        `json:"channel_seed_offsets"`
}

// state is the mutable part of the engine. Mutators work on a clone and the
// engine swaps it in only after a successful regeneration.
type state struct {
	layers      []LayerEntry
	nextLayerID LayerID
	palette     *colormap.Palette
	mapping     Mapping
	multipliers [3]float64
	offsets     [3]int64
}

func (s *state) clone() state {
	out := *s
	out.layers = append([]LayerEntry(nil), s.layers...)
	out.palette = s.palette.Clone()
	return out
}

func (s *state) addLayer(l noise.Layer) LayerID {
	s.nextLayerID++
	s.layers = append(s.layers, LayerEntry{ID: s.nextLayerID, Layer: l})
	return s.nextLayerID
}

func (s *state) layerIndex(id LayerID) int {
	for i, e := range s.layers {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *state) seamless() bool {
	for _, e := range s.layers {
		if e.Layer.Kind != noise.KindFractal || !e.Layer.Seamless {
			return false
		}
	}
	return len(s.layers) > 0
}
