package optimize

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// Session is the CAD capability the sweep drives. A session owns one open
// document with mutable in-memory state; the engine is its single writer.
type Session interface {
	// SetParameter assigns value to the named model parameter.
	SetParameter(ctx context.Context, name string, value float64) error
	// Rebuild recomputes the model after a parameter change.
	Rebuild(ctx context.Context) error
	// Export writes the rebuilt geometry to path.
	Export(ctx context.Context, path string) error
}

// Scorer rates an exported artifact on a [0, 100] scale. The trial's
// parameter value is passed alongside the path because mechanical
// scoring depends on it, not just on the exported geometry.
type Scorer interface {
	Score(ctx context.Context, artifactPath string, value float64) (float64, error)
}

// DefaultExportExt is the artifact extension used when none is configured,
// matching the STEP export the FreeCAD bridge performs.
const DefaultExportExt = ".step"

// Evaluator applies one sampled parameter value end to end: set the
// parameter, rebuild, export, score. Failures at any step are captured in
// the returned TrialRecord rather than propagated, so one bad trial never
// aborts the sweep.
type Evaluator struct {
	Session   Session
	Scorer    Scorer
	OutputDir string
	// Ext overrides the artifact extension; defaults to DefaultExportExt.
	Ext string
}

// ArtifactPath returns the deterministic export path for a trial. Index and
// value are both encoded so re-runs reproduce the same layout and no two
// trials ever write the same file.
func (e *Evaluator) ArtifactPath(index int, spec ParameterSpec, value float64) string {
	name := fmt.Sprintf("trial_%02d_%s_%s%s", index, spec.Name, formatValue(value), e.ext())
	return filepath.Join(e.OutputDir, name)
}

func (e *Evaluator) ext() string {
	if e.Ext != "" {
		return e.Ext
	}
	return DefaultExportExt
}

// formatValue renders a trial value with the shortest decimal form that
// round-trips, so distinct values always map to distinct file names.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Evaluate runs one trial and always returns exactly one TrialRecord.
// Every failure mode (parameter rejected, rebuild failed, export failed,
// scoring failed) is recorded in TrialRecord.Error with the failed step
// named; no error escapes to the caller.
func (e *Evaluator) Evaluate(ctx context.Context, index int, value float64, spec ParameterSpec) TrialRecord {
	start := time.Now()

	fail := func(step string, err error) TrialRecord {
		return TrialRecord{
			Index:          index,
			ParameterValue: value,
			ElapsedSeconds: time.Since(start).Seconds(),
			Error:          fmt.Sprintf("%s: %v", step, err),
		}
	}

	if err := e.Session.SetParameter(ctx, spec.Name, value); err != nil {
		return fail("set parameter", err)
	}

	if err := e.Session.Rebuild(ctx); err != nil {
		return fail("rebuild", err)
	}

	artifact := e.ArtifactPath(index, spec, value)
	if err := e.Session.Export(ctx, artifact); err != nil {
		return fail("export", err)
	}

	score, err := e.Scorer.Score(ctx, artifact, value)
	if err != nil {
		// The artifact file may remain on disk, but a failure record
		// carries no artifact path.
		return fail("score", err)
	}

	return TrialRecord{
		Index:          index,
		ParameterValue: value,
		QualityScore:   score,
		ElapsedSeconds: time.Since(start).Seconds(),
		ArtifactPath:   artifact,
	}
}
