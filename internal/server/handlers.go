package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/engine"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
)

var errBadRequest = errors.New("bad request")

// Control ranges accepted from clients. The engine itself accepts wider
// values; these bound what the UI sliders can send.
const (
	minScale, maxScale             = 1.0, 300.0
	minPersistence, maxPersistence = 0.1, 1.0
	minLacunarity, maxLacunarity   = 1.0, 4.0
	minWeight, maxWeight           = 0.0, 1.0
	minSeed, maxSeed               = 0, 10000
	minSigma, maxSigma             = 1.0, 100.0
	minMultiplier, maxMultiplier   = 0.0, 1.0
)

func inRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", errBadRequest, name, v, lo, hi)
	}
	return nil
}

// checkControls enforces the control ranges for the fields the layer kind uses.
func checkControls(l noise.Layer) error {
	checks := []error{
		inRange("weight", l.Weight, minWeight, maxWeight),
		inRange("seed", float64(l.Seed), minSeed, maxSeed),
	}
	switch l.Kind {
	case noise.KindSmoothed:
		checks = append(checks, inRange("sigma", l.Sigma, minSigma, maxSigma))
	default:
		checks = append(checks,
			inRange("octaves", float64(l.Octaves), noise.MinOctaves, noise.MaxOctaves),
			inRange("scale", l.Scale, minScale, maxScale),
			inRange("persistence", l.Persistence, minPersistence, maxPersistence),
			inRange("lacunarity", l.Lacunarity, minLacunarity, maxLacunarity),
		)
	}
	return errors.Join(checks...)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	return decodeJSON(data, v)
}

// readBody reads at most MaxBodyBytes of the request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", errBadRequest, err)
	}
	return data, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

// changed records a successful mutation and replies with the new state.
func (s *Server) changed(w http.ResponseWriter, status int, start time.Time, body any) {
	s.totalChanges.Add(1)
	s.lastChangeNs.Store(int64(time.Since(start)))
	s.writeJSON(w, status, body)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Status())
}

type createdResponse struct {
	ID    int          `json:"id"`
	State engine.State `json:"state"`
}

func (s *Server) handleAddLayer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	l := noise.DefaultLayer()
	if err := s.decode(w, r, &l); err != nil {
		s.writeError(w, err)
		return
	}
	if err := checkControls(l); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.engine.AddLayer(r.Context(), l)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log().Info("Layer added", "id", id, "kind", l.Kind)
	s.changed(w, http.StatusCreated, start, createdResponse{ID: int(id), State: s.engine.Snapshot()})
}

// handleUpdateLayer applies a partial update: fields missing from the body
// keep their current values. The body is merged into the layer under the
// engine lock.
func (s *Server) handleUpdateLayer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.engine.UpdateLayerFunc(r.Context(), engine.LayerID(n), func(l *noise.Layer) error {
		if err := decodeJSON(data, l); err != nil {
			return err
		}
		return checkControls(*l)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.changed(w, http.StatusOK, start, s.engine.Snapshot())
}

func (s *Server) handleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.RemoveLayer(r.Context(), engine.LayerID(n)); err != nil {
		s.writeError(w, err)
		return
	}
	s.log().Info("Layer removed", "id", n)
	s.changed(w, http.StatusOK, start, s.engine.Snapshot())
}

type stopRequest struct {
	// Position is optional on create; without it the stop is appended after
	// the last one.
	Position *float64 `json:"position"`
	Color    string   `json:"color"`
}

func (s *Server) handleAddStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req stopRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	c, err := colormap.ParseColor(req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var id colormap.StopID
	if req.Position == nil {
		id, err = s.engine.AddNextColorStop(r.Context(), c)
	} else {
		id, err = s.engine.AddColorStop(r.Context(), *req.Position, c)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.changed(w, http.StatusCreated, start, createdResponse{ID: int(id), State: s.engine.Snapshot()})
}

func (s *Server) handleRecolorStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req stopRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Position != nil {
		s.writeError(w, fmt.Errorf("%w: stop positions cannot be moved; add a new stop instead", errBadRequest))
		return
	}
	c, err := colormap.ParseColor(req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.engine.RecolorStop(r.Context(), colormap.StopID(n), c); err != nil {
		s.writeError(w, err)
		return
	}
	s.changed(w, http.StatusOK, start, s.engine.Snapshot())
}

func (s *Server) handleRemoveStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	n, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.RemoveColorStop(r.Context(), colormap.StopID(n)); err != nil {
		s.writeError(w, err)
		return
	}
	s.changed(w, http.StatusOK, start, s.engine.Snapshot())
}

type mappingRequest struct {
	Mapping engine.Mapping `json:"mapping"`
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req mappingRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.SetMapping(r.Context(), req.Mapping); err != nil {
		s.writeError(w, err)
		return
	}
	s.changed(w, http.StatusOK, start, s.engine.Snapshot())
}

type multipliersRequest struct {
	Multipliers [3]float64 `json:"multipliers"`
}

func (s *Server) handleSetMultipliers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req multipliersRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	for c, m := range req.Multipliers {
		if err := inRange(fmt.Sprintf("multiplier[%d]", c), m, minMultiplier, maxMultiplier); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if err := s.engine.SetMultipliers(r.Context(), req.Multipliers); err != nil {
		s.writeError(w, err)
		return
	}
	s.changed(w, http.StatusOK, start, s.engine.Snapshot())
}

type exportRequest struct {
	Path string `json:"path"`
}

type exportResponse struct {
	Path string `json:"path"`
}

// handleExport writes the texture into ExportDir. Only the base name of the
// requested path is used. An empty path is a no-op.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Path == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	name := filepath.Base(filepath.Clean(req.Path))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		s.writeError(w, fmt.Errorf("%w: invalid export name %q", errBadRequest, req.Path))
		return
	}
	if _, err := texture.FormatForPath(name); err != nil {
		s.writeError(w, err)
		return
	}

	path := filepath.Join(s.cfg.ExportDir, name)
	if err := s.engine.Export(path); err != nil {
		s.writeError(w, err)
		return
	}
	s.totalExports.Add(1)
	s.writeJSON(w, http.StatusOK, exportResponse{Path: path})
}

func (s *Server) handleTexture(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := texture.EncodePNG(&buf, s.engine.Image(), texture.ExportOptions{PNGCompression: texture.CompressionSpeed}); err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}
