// Package worker provides the row-band computation backends used by noise generation.
package worker

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultBandHeight is the number of rows handed to a worker at a time.
const DefaultBandHeight = 16

// Task is a half-open band of rows [Y0, Y1).
type Task struct {
	Y0 int
	Y1 int
}

// RowFunc computes one row of a field. Implementations must only write to row y.
type RowFunc func(y int)

// ProgressFunc is called after each band completes.
type ProgressFunc func(completed, total int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	BandHeight int
	OnProgress ProgressFunc
}

// Pool computes row bands in parallel with a bounded number of goroutines.
type Pool struct {
	workers    int
	bandHeight int
	onProgress ProgressFunc
}

// New creates a new worker pool. Workers <= 0 uses runtime.NumCPU().
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	band := cfg.BandHeight
	if band <= 0 {
		band = DefaultBandHeight
	}

	return &Pool{
		workers:    workers,
		bandHeight: band,
		onProgress: cfg.OnProgress,
	}
}

// Workers returns the configured concurrency.
func (p *Pool) Workers() int { return p.workers }

// Bands splits height rows into tasks of at most BandHeight rows.
func (p *Pool) Bands(height int) []Task {
	if height <= 0 {
		return nil
	}
	tasks := make([]Task, 0, (height+p.bandHeight-1)/p.bandHeight)
	for y := 0; y < height; y += p.bandHeight {
		end := y + p.bandHeight
		if end > height {
			end = height
		}
		tasks = append(tasks, Task{Y0: y, Y1: end})
	}
	return tasks
}

// Run calls fn for every row in [0, height) and blocks until all bands finish
// or the context is cancelled. Rows are disjoint, so fn needs no locking as long
// as it writes only to its own row.
func (p *Pool) Run(ctx context.Context, height int, fn RowFunc) error {
	tasks := p.Bands(height)
	if len(tasks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var completed atomic.Int64
	for _, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for y := task.Y0; y < task.Y1; y++ {
				fn(y)
			}
			c := completed.Add(1)
			if p.onProgress != nil {
				p.onProgress(int(c), len(tasks))
			}
			return nil
		})
	}

	return g.Wait()
}
