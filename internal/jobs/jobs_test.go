package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/coverage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// blockingRun runs until its token is set.
func blockingRun(started chan<- struct{}) RunFunc {
	return func(tok cancel.Checker) (*coverage.Result, bool) {
		close(started)
		for !tok.Cancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, false
	}
}

func TestSubmitAndWait(t *testing.T) {
	m := NewManager(Config{}, testLogger())
	want := &coverage.Result{FinalCoverage: 42}

	job, err := m.Submit("simulate", func(cancel.Checker) (*coverage.Result, bool) { return want, true })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID == "" || job.Status != StatusRunning {
		t.Fatalf("submitted job = %+v", job)
	}

	got, err := m.Wait(waitCtx(t), job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got.Status != StatusDone || got.Result != want || got.Finished == nil {
		t.Errorf("finished job = %+v, want done with result", got)
	}
}

func TestCancel(t *testing.T) {
	m := NewManager(Config{}, testLogger())
	started := make(chan struct{})
	job, err := m.Submit("optimize", blockingRun(started))
	if err != nil {
		t.Fatal(err)
	}
	<-started

	if _, err := m.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, err := m.Wait(waitCtx(t), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCancelled || got.Result != nil {
		t.Errorf("cancelled job = %+v", got)
	}
}

func TestUnknownJob(t *testing.T) {
	m := NewManager(Config{}, testLogger())
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := m.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel error = %v, want ErrNotFound", err)
	}
	if _, err := m.Wait(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Wait error = %v, want ErrNotFound", err)
	}
}

func TestMaxActive(t *testing.T) {
	m := NewManager(Config{MaxActive: 1}, testLogger())
	started := make(chan struct{})
	first, err := m.Submit("simulate", blockingRun(started))
	if err != nil {
		t.Fatal(err)
	}
	<-started

	if _, err := m.Submit("simulate", blockingRun(make(chan struct{}))); !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("second Submit error = %v, want ErrTooManyJobs", err)
	}

	m.Cancel(first.ID)
	if _, err := m.Wait(waitCtx(t), first.ID); err != nil {
		t.Fatal(err)
	}
	done := func(cancel.Checker) (*coverage.Result, bool) { return &coverage.Result{}, true }
	if _, err := m.Submit("simulate", done); err != nil {
		t.Errorf("Submit after slot freed: %v", err)
	}
	m.Shutdown()
}

func TestListAndPrune(t *testing.T) {
	m := NewManager(Config{Retention: time.Minute}, testLogger())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	done := func(cancel.Checker) (*coverage.Result, bool) { return &coverage.Result{FinalCoverage: 1}, true }
	a, _ := m.Submit("simulate", done)
	m.Wait(waitCtx(t), a.ID)

	list := m.List()
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("List = %+v", list)
	}
	if list[0].Result != nil {
		t.Error("List should omit results")
	}

	if n := m.prune(); n != 0 {
		t.Errorf("prune removed %d fresh jobs", n)
	}
	clock = clock.Add(2 * time.Minute)
	if n := m.prune(); n != 1 {
		t.Errorf("prune removed %d, want 1", n)
	}
	if _, err := m.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("pruned job still present: %v", err)
	}
}

func TestStartCancelsRunningJobs(t *testing.T) {
	m := NewManager(Config{}, testLogger())
	started := make(chan struct{})
	job, _ := m.Submit("simulate", blockingRun(started))
	<-started

	ctx, stop := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(returned)
	}()
	stop()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
	got, _ := m.Get(job.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status after shutdown = %s, want cancelled", got.Status)
	}
}

func TestCancelLeavesOtherJobsRunning(t *testing.T) {
	m := NewManager(Config{}, testLogger())
	startedA, startedB := make(chan struct{}), make(chan struct{})
	a, _ := m.Submit("simulate", blockingRun(startedA))
	b, _ := m.Submit("simulate", blockingRun(startedB))
	<-startedA
	<-startedB

	if _, err := m.Cancel(a.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got, err := m.Wait(waitCtx(t), a.ID); err != nil || got.Status != StatusCancelled {
		t.Fatalf("cancelled job = %+v, %v", got, err)
	}
	if got, _ := m.Get(b.ID); got.Status != StatusRunning {
		t.Errorf("other job status = %s, want running", got.Status)
	}
	m.Shutdown()
	if got, _ := m.Get(b.ID); got.Status != StatusCancelled {
		t.Errorf("other job after shutdown = %s, want cancelled", got.Status)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	m := NewManager(Config{}, testLogger())
	m.Shutdown()

	started := make(chan struct{})
	job, err := m.Submit("simulate", blockingRun(started))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := m.Wait(waitCtx(t), job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}
