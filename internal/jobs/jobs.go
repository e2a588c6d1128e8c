// Package jobs runs simulations asynchronously. Each job owns a cancellation
// token and also observes the manager's stop token, and finished jobs are kept for a retention period so their results can
// be polled.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/metrics"
)

var (
	// ErrNotFound is returned for unknown or pruned job IDs.
	ErrNotFound = errors.New("job not found")
	// ErrTooManyJobs is returned by Submit when MaxActive jobs are running.
	ErrTooManyJobs = errors.New("too many active jobs")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// RunFunc performs the work of a job. ok=false means the run observed tok and
// stopped early.
type RunFunc func(tok cancel.Checker) (res *coverage.Result, ok bool)

// Job is a point-in-time view of a job.
type Job struct {
	ID       string           `json:"id"`
	Kind     string           `json:"kind"`
	Status   Status           `json:"status"`
	Created  time.Time        `json:"created"`
	Finished *time.Time       `json:"finished,omitempty"`
	Result   *coverage.Result `json:"result,omitempty"`
}

type record struct {
	job   Job
	token *cancel.Token
	done  chan struct{}
}

// Config holds job manager configuration.
type Config struct {
	MaxActive     int           // Concurrent running jobs (default: 4)
	Retention     time.Duration // How long finished jobs are kept (default: 15m)
	PruneInterval time.Duration // Janitor period (default: 1m)
}

// Manager tracks submitted jobs. Safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	jobs   map[string]*record
	active int
	wg     sync.WaitGroup
	stop   *cancel.Token

	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a job manager.
func NewManager(config Config, logger *slog.Logger) *Manager {
	if config.MaxActive <= 0 {
		config.MaxActive = 4
	}
	if config.Retention <= 0 {
		config.Retention = 15 * time.Minute
	}
	if config.PruneInterval <= 0 {
		config.PruneInterval = time.Minute
	}
	return &Manager{
		jobs:   make(map[string]*record),
		stop:   cancel.New(),
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Submit starts run in a new goroutine and returns the job immediately.
func (m *Manager) Submit(kind string, run RunFunc) (Job, error) {
	m.mu.Lock()
	if m.active >= m.config.MaxActive {
		m.mu.Unlock()
		return Job{}, ErrTooManyJobs
	}
	rec := &record{
		job: Job{
			ID:      uuid.NewString(),
			Kind:    kind,
			Status:  StatusRunning,
			Created: m.now(),
		},
		token: cancel.New(),
		done:  make(chan struct{}),
	}
	m.jobs[rec.job.ID] = rec
	m.active++
	snapshot := rec.job
	m.mu.Unlock()

	metrics.IncJobsActive()
	m.logger.Info("job submitted", "job_id", snapshot.ID, "kind", kind)

	m.wg.Add(1)
	go m.execute(rec, run)
	return snapshot, nil
}

func (m *Manager) execute(rec *record, run RunFunc) {
	defer m.wg.Done()
	defer close(rec.done)
	defer metrics.DecJobsActive()

	start := time.Now()
	res, ok := run(cancel.Any(rec.token, m.stop))

	m.mu.Lock()
	finished := m.now()
	rec.job.Finished = &finished
	if ok {
		rec.job.Status = StatusDone
		rec.job.Result = res
	} else {
		rec.job.Status = StatusCancelled
	}
	m.active--
	id, status := rec.job.ID, rec.job.Status
	m.mu.Unlock()

	m.logger.Info("job finished",
		"job_id", id,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Get returns the current view of a job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return rec.job, nil
}

// Cancel sets the job's token. Cancelling a finished job has no effect.
func (m *Manager) Cancel(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	rec.token.Cancel()
	return rec.job, nil
}

// Wait blocks until the job finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Job{}, ErrNotFound
	}
	select {
	case <-rec.done:
		return m.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// List returns all jobs without results, newest first.
func (m *Manager) List() []Job {
	m.mu.Lock()
	out := make([]Job, 0, len(m.jobs))
	for _, rec := range m.jobs {
		j := rec.job
		j.Result = nil
		out = append(out, j)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Job) int { return b.Created.Compare(a.Created) })
	return out
}

// prune drops jobs that finished more than Retention ago.
func (m *Manager) prune() int {
	cutoff := m.now().Add(-m.config.Retention)
	var removed int

	m.mu.Lock()
	for id, rec := range m.jobs {
		if rec.job.Finished != nil && rec.job.Finished.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("jobs pruned", "removed", removed)
	}
	return removed
}

// Start prunes finished jobs every PruneInterval. On ctx cancellation it cancels
// every running job and waits for them to return.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			m.logger.Info("job manager stopped")
			return
		case <-ticker.C:
			m.prune()
		}
	}
}

// Shutdown cancels all running jobs and waits for them. Jobs submitted after
// Shutdown stop at their first cancellation poll.
func (m *Manager) Shutdown() {
	m.stop.Cancel()
	m.wg.Wait()
}
