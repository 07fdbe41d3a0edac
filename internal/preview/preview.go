// Package preview renders one-shot textures for the browser binding. Requests
// and responses are JSON so they can cross the js/wasm boundary as strings.
package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/engine"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
	"github.com/MeKo-Tech/noisetex/internal/worker"
)

// Request describes a texture to render. Empty fields fall back to engine
// defaults.
type Request struct {
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Layers      Layers          `json:"layers"`
	Stops       []colormap.Stop `json:"stops"`
	Mapping     engine.Mapping  `json:"mapping"`
	Multipliers *[3]float64     `json:"multipliers"`
	Offsets     *[3]int64       `json:"channel_seed_offsets"`
}

// Response carries the PNG as a data URL ready for an <img> element.
type Response struct {
	DataURL string `json:"data_url,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Layers decodes each element over noise.DefaultLayer, so keys a client
// leaves out keep their defaults (a fractal layer stays seamless).
type Layers []noise.Layer

// UnmarshalJSON implements json.Unmarshaler.
func (ls *Layers) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Layers, 0, len(raw))
	for i, r := range raw {
		l := noise.DefaultLayer()
		if err := json.Unmarshal(r, &l); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		out = append(out, l)
	}
	*ls = out
	return nil
}

// Config converts the request into an engine configuration. The browser has
// no threads, so the serial backend is always used.
func (r Request) Config() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Backend = worker.BackendSerial
	if r.Width > 0 {
		cfg.Width = r.Width
	}
	if r.Height > 0 {
		cfg.Height = r.Height
	}
	cfg.Layers = r.Layers
	cfg.Stops = r.Stops
	if r.Mapping != "" {
		cfg.Mapping = r.Mapping
	}
	if r.Multipliers != nil {
		cfg.Multipliers = *r.Multipliers
	}
	if r.Offsets != nil {
		cfg.ChannelSeedOffsets = *r.Offsets
	}
	return cfg
}

// Render builds an engine for req and encodes its image. Failures are
// reported in Response.Error.
func Render(ctx context.Context, req Request) Response {
	eng, err := engine.NewContext(ctx, req.Config())
	if err != nil {
		return Response{Error: err.Error()}
	}

	img := eng.Image()
	var buf bytes.Buffer
	if err := texture.EncodePNG(&buf, img, texture.ExportOptions{PNGCompression: texture.CompressionSpeed}); err != nil {
		return Response{Error: err.Error()}
	}

	return Response{
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   img.W,
		Height:  img.H,
	}
}

// Handle parses a JSON Request, renders it and returns a JSON Response.
func Handle(ctx context.Context, payload string) string {
	var req Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return encode(Response{Error: fmt.Sprintf("failed to parse request: %v", err)})
	}
	return encode(Render(ctx, req))
}

// Defaults returns the default layer and palette as JSON so a page can build
// its controls.
func Defaults() string {
	data, err := json.Marshal(map[string]any{
		"layer": noise.DefaultLayer(),
		"stops": colormap.DefaultPalette().Stops(),
	})
	if err != nil {
		return encode(Response{Error: err.Error()})
	}
	return string(data)
}

func encode(resp Response) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}
