package worker

import (
	"context"
	"log/slog"
	"strings"
)

// Backend names accepted by NewBackend.
const (
	BackendSerial   = "serial"
	BackendParallel = "parallel"
)

// Backend evaluates a RowFunc over every row of a field.
// All backends must produce identical results for the same RowFunc.
type Backend interface {
	Name() string
	Rows(ctx context.Context, height int, fn RowFunc) error
}

// Serial evaluates rows one after another on the calling goroutine.
type Serial struct {
	OnProgress ProgressFunc
}

// Name implements Backend.
func (Serial) Name() string { return BackendSerial }

// Rows implements Backend.
func (s Serial) Rows(ctx context.Context, height int, fn RowFunc) error {
	for y := 0; y < height; y++ {
		if y%DefaultBandHeight == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(y)
		if s.OnProgress != nil && ((y+1)%DefaultBandHeight == 0 || y == height-1) {
			s.OnProgress((y+DefaultBandHeight)/DefaultBandHeight, (height+DefaultBandHeight-1)/DefaultBandHeight)
		}
	}
	return nil
}

// Parallel evaluates row bands on a Pool.
type Parallel struct {
	pool *Pool
}

// NewParallel wraps a pool as a Backend.
func NewParallel(pool *Pool) *Parallel {
	return &Parallel{pool: pool}
}

// Name implements Backend.
func (p *Parallel) Name() string { return BackendParallel }

// Rows implements Backend.
func (p *Parallel) Rows(ctx context.Context, height int, fn RowFunc) error {
	return p.pool.Run(ctx, height, fn)
}

// NewBackend returns the backend registered under name. An unknown name is a
// configuration fallback, not an error: the serial backend is returned and a
// warning is logged.
func NewBackend(name string, cfg Config, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case BackendParallel, "":
		pool := New(cfg)
		logger.Debug("Using parallel backend", "workers", pool.Workers())
		return NewParallel(pool)
	case BackendSerial:
		logger.Debug("Using serial backend")
		return Serial{OnProgress: cfg.OnProgress}
	default:
		logger.Warn("Unknown backend; falling back to serial", "backend", name)
		return Serial{OnProgress: cfg.OnProgress}
	}
}
