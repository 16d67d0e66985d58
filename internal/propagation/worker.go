package propagation

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

// inlineBatch is the batch size below which fan-out costs more than it saves.
const inlineBatch = 64

// span is a unit of work for the worker pool: indices [lo, hi).
type span struct {
	lo, hi int
}

// WorkerPool fans position computations out over a fixed number of
// goroutines. Each worker writes to disjoint indices of the output slice.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool. workers <= 0 uses runtime.NumCPU().
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// PropagateBatch fills out[i] with strategy.Position(els[i], at). out must
// be at least len(els) long. It returns the number of zero (failed)
// results, or ctx.Err() if cancelled before every span was processed.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, strategy Strategy, els []*tle.ElementSet, at epoch.Epoch, out []r3.Vec) (int, error) {
	if len(els) == 0 {
		return 0, nil
	}
	out = out[:len(els)]

	if len(els) <= inlineBatch || wp.workers == 1 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		propagateSpan(strategy, els, at, out, span{0, len(els)})
		return countFailed(out), nil
	}

	chunk := (len(els) + wp.workers*4 - 1) / (wp.workers * 4)
	if chunk < inlineBatch/4 {
		chunk = inlineBatch / 4
	}

	jobs := make(chan span, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				propagateSpan(strategy, els, at, out, s)
			}
		}()
	}

	var cancelled error
feed:
	for lo := 0; lo < len(els); lo += chunk {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		hi := min(lo+chunk, len(els))
		select {
		case jobs <- span{lo, hi}:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		wp.logger.Debug("batch propagation cancelled", "satellites", len(els), "error", cancelled)
		return 0, cancelled
	}
	return countFailed(out), nil
}

func propagateSpan(strategy Strategy, els []*tle.ElementSet, at epoch.Epoch, out []r3.Vec, s span) {
	for i := s.lo; i < s.hi; i++ {
		out[i] = strategy.Position(els[i], at)
	}
}

func countFailed(out []r3.Vec) int {
	var n int
	for _, v := range out {
		if v == (r3.Vec{}) {
			n++
		}
	}
	return n
}
