package optimize

// TrialRecord is the immutable outcome of evaluating one sampled value.
// Exactly one of two shapes holds: a valid QualityScore (with an optional
// ArtifactPath), or Error set with QualityScore meaningless. Failed()
// distinguishes the two.
type TrialRecord struct {
	// Index is the 1-based position in the trial sequence.
	Index int `json:"index"`
	// ParameterValue is the value actually applied to the CAD model.
	ParameterValue float64 `json:"parameter_value"`
	// QualityScore is in [0, 100]; only meaningful when Error is empty.
	QualityScore float64 `json:"quality_score"`
	// ElapsedSeconds is the wall-clock duration of the trial.
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	// ArtifactPath points at the exported geometry for a successful trial.
	ArtifactPath string `json:"artifact_path,omitempty"`
	// Error describes which step failed and why, for failed trials.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the trial ended in a failure record.
func (r TrialRecord) Failed() bool {
	return r.Error != ""
}

// Result is the full summary of one optimization sweep. It is built once
// when the sweep completes and is read-only afterward.
type Result struct {
	// Spec is the parameter spec the sweep ran with.
	Spec ParameterSpec `json:"parameter_spec"`
	// History holds one record per trial, in trial (index) order.
	History []TrialRecord `json:"history"`
	// BestIndex is the 1-based index of the best successful trial, or 0
	// when every trial failed.
	BestIndex int `json:"best_index,omitempty"`
}

// Best returns the record of the highest-scoring successful trial. The
// second return is false when the sweep produced no viable trial.
func (r *Result) Best() (TrialRecord, bool) {
	if r.BestIndex < 1 || r.BestIndex > len(r.History) {
		return TrialRecord{}, false
	}
	return r.History[r.BestIndex-1], true
}

// bestIndex scans history in trial order and returns the 1-based index of
// the first record holding the maximum valid score, or 0 if none succeeded.
// Scanning with a strictly-greater comparison makes the earliest trial win
// score ties, which keeps reruns reproducible.
func bestIndex(history []TrialRecord) int {
	best := 0
	for _, rec := range history {
		if rec.Failed() {
			continue
		}
		if best == 0 || rec.QualityScore > history[best-1].QualityScore {
			best = rec.Index
		}
	}
	return best
}
