package sweepd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

func newTestExecutor(t *testing.T) (*SweepStore, *Executor) {
	t.Helper()
	store := NewSweepStore()
	executor := NewExecutor(store, "http://127.0.0.1:1", t.TempDir())
	return store, executor
}

func waitForTerminal(t *testing.T, store *SweepStore, sweepID string) *SweepRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := store.Get(sweepID)
		if !ok {
			t.Fatalf("sweep %s disappeared", sweepID)
		}
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("sweep %s never reached a terminal status", sweepID)
	return nil
}

func TestExecutorRunsMockSweepToCompletion(t *testing.T) {
	store, executor := newTestExecutor(t)

	rec, err := store.Create("sweep-1", mockRequest())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	started, err := executor.Start(rec.ID)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if started.Status != StatusRunning {
		t.Fatalf("expected running, got %v", started.Status)
	}

	final := waitForTerminal(t, store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (error=%q)", final.Status, final.Error)
	}
	if final.Result == nil {
		t.Fatalf("expected result to be attached")
	}
	if len(final.Result.History) != 3 {
		t.Fatalf("expected 3 trials, got %d", len(final.Result.History))
	}
	if _, ok := final.Result.Best(); !ok {
		t.Fatalf("expected a best trial for a mock sweep")
	}
}

func TestExecutorSweepWithUnknownParameterCompletes(t *testing.T) {
	// Every trial fails, but failure-as-data means the sweep itself
	// still completes.
	store, executor := newTestExecutor(t)

	req := mockRequest()
	req.Parameter = "Hole_Diameter"
	rec, err := store.Create("sweep-1", req)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := executor.Start(rec.ID); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	final := waitForTerminal(t, store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v", final.Status)
	}
	if final.Result.BestIndex != 0 {
		t.Fatalf("expected no best trial, got index %d", final.Result.BestIndex)
	}
	for _, trial := range final.Result.History {
		if !trial.Failed() {
			t.Fatalf("expected every trial to fail, got %+v", trial)
		}
	}
}

func TestExecutorInvalidRangeFailsSweep(t *testing.T) {
	store, executor := newTestExecutor(t)

	req := mockRequest()
	req.Min = 20
	req.Max = 10
	rec, err := store.Create("sweep-1", req)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := executor.Start(rec.ID); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	final := waitForTerminal(t, store, rec.ID)
	if final.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", final.Status)
	}
	if final.Error == "" {
		t.Fatalf("expected error message on failed sweep")
	}
}

func TestExecutorStartUnknownSweep(t *testing.T) {
	_, executor := newTestExecutor(t)
	if _, err := executor.Start("missing"); !errors.Is(err, ErrSweepNotFound) {
		t.Fatalf("expected ErrSweepNotFound, got %v", err)
	}
	if _, err := executor.Start(""); !errors.Is(err, ErrSweepIDMissing) {
		t.Fatalf("expected ErrSweepIDMissing, got %v", err)
	}
}

func TestExecutorStartTerminalSweep(t *testing.T) {
	store, executor := newTestExecutor(t)
	if _, err := store.Create("sweep-1", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := store.SetStatus("sweep-1", StatusCancelled, ""); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if _, err := executor.Start("sweep-1"); !errors.Is(err, ErrSweepTerminal) {
		t.Fatalf("expected ErrSweepTerminal, got %v", err)
	}
}

func TestExecutorStopPendingSweep(t *testing.T) {
	store, executor := newTestExecutor(t)
	if _, err := store.Create("sweep-1", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := executor.Stop("sweep-1")
	if err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %v", updated.Status)
	}

	if _, err := executor.Stop("sweep-1"); !errors.Is(err, ErrSweepTerminal) {
		t.Fatalf("expected ErrSweepTerminal on second stop, got %v", err)
	}
	if _, err := executor.Stop("missing"); !errors.Is(err, ErrSweepNotFound) {
		t.Fatalf("expected ErrSweepNotFound, got %v", err)
	}
}

func TestExecutorStopRunningSweep(t *testing.T) {
	store, executor := newTestExecutor(t)

	// A session factory that blocks until cancelled keeps the sweep in
	// the running state long enough to stop it deterministically.
	opened := make(chan struct{})
	executor.SetSessionFactory(func(ctx context.Context, req *SweepRequest) (optimize.Session, func(), error) {
		close(opened)
		<-ctx.Done()
		return nil, nil, ctx.Err()
	})

	if _, err := store.Create("sweep-1", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := executor.Start("sweep-1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatalf("session factory never invoked")
	}

	updated, err := executor.Stop("sweep-1")
	if err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %v", updated.Status)
	}

	final := waitForTerminal(t, store, "sweep-1")
	if final.Status != StatusCancelled {
		t.Fatalf("expected cancelled to stick, got %v", final.Status)
	}
}
