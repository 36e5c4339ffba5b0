package sweepd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cae-assist/cae-cli/internal/cad"
	"github.com/cae-assist/cae-cli/internal/optimize"
	"github.com/cae-assist/cae-cli/internal/score"
	"github.com/cae-assist/cae-cli/pkg/logger"
)

var (
	ErrSweepNotFound  = errors.New("sweep not found")
	ErrSweepTerminal  = errors.New("sweep is terminal")
	ErrSweepIDMissing = errors.New("sweep_id is required")
)

// SessionFactory opens a CAD session for a sweep and returns it with a
// teardown function. The default factory picks the mock or the bridge
// based on the request.
type SessionFactory func(ctx context.Context, req *SweepRequest) (optimize.Session, func(), error)

// Executor runs sweeps asynchronously with per-sweep cancellation.
// Sweeps execute one at a time: the CAD application holds one document
// and tolerates only a single writer.
type Executor struct {
	store      *SweepStore
	newSession SessionFactory
	baseDir    string

	mu      sync.Mutex
	runSlot sync.Mutex // serializes actual sweep execution
	cancels map[string]context.CancelFunc
}

// NewExecutor builds an executor over the store. bridgeAddr is used for
// non-mock sweeps; baseDir anchors relative output directories.
func NewExecutor(store *SweepStore, bridgeAddr, baseDir string) *Executor {
	return &Executor{
		store:      store,
		newSession: defaultSessionFactory(bridgeAddr),
		baseDir:    baseDir,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// SetSessionFactory overrides session creation, for tests.
func (e *Executor) SetSessionFactory(f SessionFactory) {
	e.newSession = f
}

func defaultSessionFactory(bridgeAddr string) SessionFactory {
	return func(ctx context.Context, req *SweepRequest) (optimize.Session, func(), error) {
		if req.Mock {
			m := cad.NewMock()
			if err := m.Connect(ctx); err != nil {
				return nil, nil, err
			}
			if err := m.Open(ctx, req.ModelFile); err != nil {
				return nil, nil, err
			}
			return m, func() { _ = m.Close(context.Background()) }, nil
		}

		b := cad.NewBridge(cad.BridgeConfig{Addr: bridgeAddr})
		if err := b.Connect(ctx); err != nil {
			return nil, nil, err
		}
		if err := b.Open(ctx, req.ModelFile); err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close(context.Background()) }, nil
	}
}

// Start transitions a pending sweep to running and executes it in the
// background. Starting an already running sweep is a no-op.
func (e *Executor) Start(sweepID string) (*SweepRecord, error) {
	if sweepID == "" {
		return nil, ErrSweepIDMissing
	}

	rec, ok := e.store.Get(sweepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSweepNotFound, sweepID)
	}

	switch rec.Status {
	case StatusRunning:
		return rec, nil
	case StatusCompleted, StatusFailed, StatusCancelled:
		return nil, fmt.Errorf("%w: %s", ErrSweepTerminal, sweepID)
	}

	updated, err := e.store.SetStatus(sweepID, StatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[sweepID]; exists {
		old()
	}
	e.cancels[sweepID] = cancel
	e.mu.Unlock()

	go e.runSweep(ctx, sweepID)
	return updated, nil
}

// Stop cancels a sweep. A pending or running sweep becomes cancelled;
// a terminal sweep is an error.
func (e *Executor) Stop(sweepID string) (*SweepRecord, error) {
	if sweepID == "" {
		return nil, ErrSweepIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[sweepID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(sweepID, StatusCancelled, "")
	if err != nil {
		if _, exists := e.store.Get(sweepID); !exists {
			return nil, fmt.Errorf("%w: %s", ErrSweepNotFound, sweepID)
		}
		return nil, fmt.Errorf("%w: %s", ErrSweepTerminal, sweepID)
	}
	return updated, nil
}

func (e *Executor) cleanup(sweepID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[sweepID]; ok {
		cancel()
		delete(e.cancels, sweepID)
	}
	e.mu.Unlock()
}

func (e *Executor) runSweep(ctx context.Context, sweepID string) {
	defer e.cleanup(sweepID)

	// One document, one writer.
	e.runSlot.Lock()
	defer e.runSlot.Unlock()

	rec, ok := e.store.Get(sweepID)
	if !ok {
		logger.Error("sweep not found", "sweep_id", sweepID)
		return
	}

	spec, err := rec.Request.Spec()
	if err != nil {
		e.fail(sweepID, fmt.Sprintf("invalid sweep request: %v", err))
		return
	}

	session, teardown, err := e.newSession(ctx, rec.Request)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("sweep cancelled before session open", "sweep_id", sweepID)
			return
		}
		e.fail(sweepID, fmt.Sprintf("open CAD session: %v", err))
		return
	}
	defer teardown()

	outputDir := rec.Request.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(e.baseDir, sweepID)
	} else if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(e.baseDir, outputDir)
	}

	engine := optimize.NewEngine(session, score.GeometryScorer{})
	if rec.Request.Mock {
		// The mock only renders STL.
		engine.Ext = ".stl"
	}

	logger.Info("starting sweep", "sweep_id", sweepID,
		"parameter", spec.Name, "steps", spec.Steps, "mock", rec.Request.Mock)

	result, err := engine.Run(ctx, spec, outputDir)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("sweep cancelled", "sweep_id", sweepID)
			return
		}
		e.fail(sweepID, err.Error())
		return
	}

	if err := e.store.SetResult(sweepID, result); err != nil {
		logger.Error("failed to store sweep result", "sweep_id", sweepID, "error", err)
	}

	if ctx.Err() != nil {
		// Stop() already marked the record cancelled; the partial
		// result stays attached for inspection.
		logger.Info("sweep cancelled", "sweep_id", sweepID, "completed_trials", len(result.History))
		return
	}

	if _, err := e.store.SetStatus(sweepID, StatusCompleted, ""); err != nil {
		logger.Error("failed to set completed status", "sweep_id", sweepID, "error", err)
		return
	}
	if best, ok := result.Best(); ok {
		logger.Info("sweep completed", "sweep_id", sweepID,
			"best_trial", best.Index, "best_value", best.ParameterValue, "best_score", best.QualityScore)
	} else {
		logger.Warn("sweep completed with no viable trial", "sweep_id", sweepID)
	}
}

func (e *Executor) fail(sweepID, msg string) {
	logger.Error("sweep failed", "sweep_id", sweepID, "error", msg)
	if _, err := e.store.SetStatus(sweepID, StatusFailed, msg); err != nil {
		logger.Error("failed to set failed status", "sweep_id", sweepID, "error", err)
	}
}
