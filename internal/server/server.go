// Package server exposes a TextureEngine over a small JSON control API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/noisetex/internal/colormap"
	"github.com/MeKo-Tech/noisetex/internal/engine"
	"github.com/MeKo-Tech/noisetex/internal/noise"
	"github.com/MeKo-Tech/noisetex/internal/texture"
)

// Config configures the control server.
type Config struct {
	// ExportDir receives files written through POST /api/export.
	ExportDir    string
	CacheControl string
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
}

// Server translates HTTP requests into engine calls.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
	cfg    Config

	// Status tracking
	totalChanges  atomic.Int64
	totalRejected atomic.Int64
	totalExports  atomic.Int64
	lastChangeNs  atomic.Int64
}

// Status reports request counters.
type Status struct {
	Backend        string  `json:"backend"`
	TotalChanges   int64   `json:"total_changes"`
	TotalRejected  int64   `json:"total_rejected"`
	TotalExports   int64   `json:"total_exports"`
	LastChangeSecs float64 `json:"last_change_seconds"`
}

// New creates a server for e.
func New(e *engine.Engine, cfg Config, logger *slog.Logger) *Server {
	if cfg.ExportDir == "" {
		cfg.ExportDir = "."
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{engine: e, cfg: cfg, logger: logger}
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Handler returns the routed API with CORS headers applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("POST /api/layers", s.handleAddLayer)
	mux.HandleFunc("PUT /api/layers/{id}", s.handleUpdateLayer)
	mux.HandleFunc("DELETE /api/layers/{id}", s.handleRemoveLayer)

	mux.HandleFunc("POST /api/stops", s.handleAddStop)
	mux.HandleFunc("PUT /api/stops/{id}", s.handleRecolorStop)
	mux.HandleFunc("DELETE /api/stops/{id}", s.handleRemoveStop)

	mux.HandleFunc("PUT /api/mapping", s.handleSetMapping)
	mux.HandleFunc("PUT /api/multipliers", s.handleSetMultipliers)

	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /texture.png", s.handleTexture)

	return withCORS(mux)
}

// Status returns the current counters.
func (s *Server) Status() Status {
	st := Status{
		Backend:       s.engine.Backend(),
		TotalChanges:  s.totalChanges.Load(),
		TotalRejected: s.totalRejected.Load(),
		TotalExports:  s.totalExports.Load(),
	}
	if ns := s.lastChangeNs.Load(); ns > 0 {
		st.LastChangeSecs = time.Duration(ns).Seconds()
	}
	return st
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log().Error("Failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnknownLayer), errors.Is(err, engine.ErrUnknownStop):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, noise.ErrInvalidLayer),
		errors.Is(err, colormap.ErrInvalidStops),
		errors.Is(err, engine.ErrInvalidSettings),
		errors.Is(err, texture.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log().Error("Request failed", "error", err)
	} else {
		s.totalRejected.Add(1)
		s.log().Debug("Request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
