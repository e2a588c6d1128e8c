// Package sweep runs batches of independent coverage simulations on a bounded
// pool of goroutines.
package sweep

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/coverage"
)

// runJob is a unit of work for the worker pool.
type runJob struct {
	index int
	req   coverage.Request
}

// Outcome is the result of one request of a batch.
type Outcome struct {
	Index     int              `json:"index"`
	Result    *coverage.Result `json:"result,omitempty"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// WorkerPool runs simulations on a fixed number of goroutines.
type WorkerPool struct {
	workers int
	sim     *coverage.Simulator
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool. workers <= 0 uses GOMAXPROCS.
func NewWorkerPool(workers int, sim *coverage.Simulator, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{
		workers: workers,
		sim:     sim,
		logger:  logger,
	}
}

// Run simulates every request and returns outcomes in input order. Invalid
// requests get an Error; requests not finished when ctx is done are Cancelled.
func (wp *WorkerPool) Run(ctx context.Context, reqs []coverage.Request) []Outcome {
	out := make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return out
	}
	start := time.Now()
	tok := cancel.FromContext(ctx)

	jobs := make(chan runJob, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// Each slot is written by exactly one worker.
				out[job.index] = wp.runSingle(job, tok)
			}
		}()
	}

	for i, req := range reqs {
		jobs <- runJob{index: i, req: req}
	}
	close(jobs)
	wg.Wait()

	var done, cancelled, failed int
	for _, o := range out {
		switch {
		case o.Error != "":
			failed++
		case o.Cancelled:
			cancelled++
		default:
			done++
		}
	}
	wp.logger.Info("sweep finished",
		"requests", len(reqs),
		"done", done,
		"cancelled", cancelled,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// runSingle validates and runs one request.
func (wp *WorkerPool) runSingle(job runJob, tok cancel.Checker) Outcome {
	o := Outcome{Index: job.index}
	if err := job.req.Validate(); err != nil {
		wp.logger.Warn("sweep request rejected", "index", job.index, "error", err)
		o.Error = err.Error()
		return o
	}
	res, ok := wp.sim.Run(job.req, tok)
	if !ok {
		o.Cancelled = true
		return o
	}
	o.Result = res
	return o
}
