package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cae-assist/cae-cli/pkg/logger"
)

// SummaryFileName is the machine-readable sweep summary written into the
// output directory, mirroring the Result model.
const SummaryFileName = "optimization_result.json"

// Engine drives a full sweep: sample the range, evaluate every trial in
// order against one shared CAD session, and select the best outcome.
// Trials run strictly sequentially because the session holds one mutable
// document; the engine is its only writer.
type Engine struct {
	session Session
	scorer  Scorer
	// Ext overrides the artifact extension (defaults to DefaultExportExt).
	Ext string
	// Log receives per-trial progress; defaults to the package logger.
	Log *slog.Logger
}

// NewEngine creates an engine bound to a CAD session and a quality scorer.
func NewEngine(session Session, scorer Scorer) *Engine {
	return &Engine{session: session, scorer: scorer}
}

func (e *Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.Default
}

// Run executes the sweep described by spec, writing trial artifacts and the
// JSON summary into outputDir.
//
// It returns an error only for specification problems (invalid range or
// step count, reported before the CAD session is touched) and resource
// problems (output directory not writable). Per-trial failures are absorbed
// into TrialRecord.Error, so the returned Result carries one record per
// sampled value, except that cancelling ctx stops the sweep after the
// current trial. A sweep in which every trial failed is a normal outcome:
// BestIndex is 0 and no error is returned.
func (e *Engine) Run(ctx context.Context, spec ParameterSpec, outputDir string) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	values, err := Values(spec)
	if err != nil {
		return nil, err
	}

	evaluator := &Evaluator{
		Session:   e.session,
		Scorer:    e.scorer,
		OutputDir: outputDir,
		Ext:       e.Ext,
	}

	log := e.log()
	log.Info("starting sweep",
		"parameter", spec.Name,
		"min", spec.Min,
		"max", spec.Max,
		"steps", spec.Steps,
		"mode", spec.Mode,
	)

	history := make([]TrialRecord, 0, len(values))
	for i, value := range values {
		if ctx.Err() != nil {
			log.Warn("sweep cancelled", "completed_trials", len(history))
			break
		}
		rec := evaluator.Evaluate(ctx, i+1, value, spec)
		history = append(history, rec)

		if rec.Failed() {
			log.Warn("trial failed",
				"trial", rec.Index,
				"value", rec.ParameterValue,
				"error", rec.Error,
			)
		} else {
			log.Info("trial completed",
				"trial", rec.Index,
				"value", rec.ParameterValue,
				"score", rec.QualityScore,
				"elapsed_s", rec.ElapsedSeconds,
			)
		}
	}

	result := &Result{
		Spec:      spec,
		History:   history,
		BestIndex: bestIndex(history),
	}

	if best, ok := result.Best(); ok {
		log.Info("sweep complete",
			"best_trial", best.Index,
			"best_value", best.ParameterValue,
			"best_score", best.QualityScore,
		)
	} else {
		log.Warn("sweep complete with no viable trial", "trials", len(history))
	}

	if err := WriteSummary(result, filepath.Join(outputDir, SummaryFileName)); err != nil {
		// The summary is a convenience mirror of the in-memory result;
		// the sweep itself already succeeded.
		log.Warn("write sweep summary failed", "error", err)
	}

	return result, nil
}

// WriteSummary writes the Result as indented JSON to path.
func WriteSummary(result *Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sweep result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sweep result: %w", err)
	}
	return nil
}
