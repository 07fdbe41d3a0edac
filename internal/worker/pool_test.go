package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPool_VisitsEveryRowOnce(t *testing.T) {
	pool := New(Config{Workers: 4, BandHeight: 3})

	const height = 50
	var visits [height]atomic.Int32

	if err := pool.Run(context.Background(), height, func(y int) {
		visits[y].Add(1)
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for y := range visits {
		if got := visits[y].Load(); got != 1 {
			t.Errorf("row %d visited %d times, want 1", y, got)
		}
	}
}

func TestPool_Bands(t *testing.T) {
	pool := New(Config{Workers: 1, BandHeight: 4})

	tasks := pool.Bands(10)
	want := []Task{{0, 4}, {4, 8}, {8, 10}}
	if len(tasks) != len(want) {
		t.Fatalf("Expected %d bands, got %d", len(want), len(tasks))
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("band %d: got %+v, want %+v", i, tasks[i], want[i])
		}
	}

	if got := pool.Bands(0); len(got) != 0 {
		t.Errorf("Expected no bands for zero height, got %d", len(got))
	}
}

func TestPool_Cancellation(t *testing.T) {
	pool := New(Config{Workers: 2, BandHeight: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := pool.Run(ctx, 100, func(y int) { calls.Add(1) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls.Load() == 100 {
		t.Error("Expected cancelled run to skip rows")
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	var calls atomic.Int32
	var maxCompleted atomic.Int32
	var lastTotal atomic.Int32

	pool := New(Config{
		Workers:    2,
		BandHeight: 5,
		OnProgress: func(completed, total int) {
			calls.Add(1)
			lastTotal.Store(int32(total))
			for {
				cur := maxCompleted.Load()
				if int32(completed) <= cur || maxCompleted.CompareAndSwap(cur, int32(completed)) {
					break
				}
			}
		},
	})

	if err := pool.Run(context.Background(), 20, func(int) {}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if calls.Load() != 4 {
		t.Errorf("Expected 4 progress callbacks, got %d", calls.Load())
	}
	if maxCompleted.Load() != 4 || lastTotal.Load() != 4 {
		t.Errorf("Expected final progress 4/4, got %d/%d", maxCompleted.Load(), lastTotal.Load())
	}
}

func TestBackendsAgree(t *testing.T) {
	const w, h = 17, 23
	compute := func(b Backend) []float64 {
		out := make([]float64, w*h)
		err := b.Rows(context.Background(), h, func(y int) {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(x*x) - float64(3*y)
			}
		})
		if err != nil {
			t.Fatalf("%s backend returned error: %v", b.Name(), err)
		}
		return out
	}

	serial := compute(NewBackend(BackendSerial, Config{}, nil))
	parallel := compute(NewBackend(BackendParallel, Config{Workers: 3, BandHeight: 2}, nil))
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("index %d: serial=%v parallel=%v", i, serial[i], parallel[i])
		}
	}
}

func TestNewBackendFallsBackToSerial(t *testing.T) {
	b := NewBackend("cuda", Config{}, nil)
	if b.Name() != BackendSerial {
		t.Errorf("Expected serial fallback, got %s", b.Name())
	}
	if got := NewBackend("", Config{}, nil).Name(); got != BackendParallel {
		t.Errorf("Expected parallel default, got %s", got)
	}
}
