// Package sweepd is the sweep daemon: it queues parameter sweeps,
// executes them one at a time against a CAD session, and serves their
// state over HTTP.
package sweepd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

// Status is the lifecycle state of a queued sweep.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// SweepRequest is the client-supplied description of a sweep.
type SweepRequest struct {
	ModelFile string  `json:"model_file"`
	Parameter string  `json:"parameter"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Steps     int     `json:"steps"`
	StepMode  string  `json:"step_mode,omitempty"`
	OutputDir string  `json:"output_dir,omitempty"`
	// Mock runs the sweep against the in-process mock session instead
	// of the CAD bridge.
	Mock bool `json:"mock,omitempty"`
}

// Spec converts the request into an engine parameter spec.
func (r *SweepRequest) Spec() (optimize.ParameterSpec, error) {
	mode, err := optimize.ParseStepMode(r.StepMode)
	if err != nil {
		return optimize.ParameterSpec{}, err
	}
	spec := optimize.ParameterSpec{
		Name:  r.Parameter,
		Min:   r.Min,
		Max:   r.Max,
		Steps: r.Steps,
		Mode:  mode,
	}
	return spec, spec.Validate()
}

// SweepRecord is the daemon-side state of one sweep.
type SweepRecord struct {
	ID              string           `json:"id"`
	Status          Status           `json:"status"`
	Request         *SweepRequest    `json:"request"`
	Result          *optimize.Result `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAtUnixMs int64            `json:"created_at_unix_ms"`
	StartedAtUnixMs int64            `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64            `json:"ended_at_unix_ms,omitempty"`
}

// SweepStore is the in-memory registry of sweeps.
type SweepStore struct {
	mu     sync.RWMutex
	sweeps map[string]*SweepRecord
}

func NewSweepStore() *SweepStore {
	return &SweepStore{sweeps: make(map[string]*SweepRecord)}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a sweep. An empty sweepID gets a generated UUID;
// explicit IDs must be path-safe.
func (s *SweepStore) Create(sweepID string, req *SweepRequest) (*SweepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sweepID == "" {
		sweepID = uuid.NewString()
	}
	if strings.ContainsAny(sweepID, "/:") {
		return nil, fmt.Errorf("sweep ID cannot contain '/' or ':': %s", sweepID)
	}
	if _, exists := s.sweeps[sweepID]; exists {
		return nil, fmt.Errorf("sweep already exists: %s", sweepID)
	}

	rec := &SweepRecord{
		ID:              sweepID,
		Status:          StatusPending,
		Request:         req,
		CreatedAtUnixMs: nowUnixMs(),
	}
	s.sweeps[sweepID] = rec
	return rec.snapshot(), nil
}

// snapshot copies the record so callers never observe later mutations
// mid-read. Request and Result are shared: both are read-only once set.
func (r *SweepRecord) snapshot() *SweepRecord {
	cp := *r
	return &cp
}

func (s *SweepStore) Get(sweepID string) (*SweepRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sweeps[sweepID]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

// List returns up to limit sweeps, newest first.
func (s *SweepStore) List(limit int) []*SweepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	out := make([]*SweepRecord, 0, len(s.sweeps))
	for _, rec := range s.sweeps {
		out = append(out, rec.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUnixMs != out[j].CreatedAtUnixMs {
			return out[i].CreatedAtUnixMs > out[j].CreatedAtUnixMs
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SetStatus transitions a sweep, stamping start/end times. Terminal
// sweeps refuse further transitions.
func (s *SweepStore) SetStatus(sweepID string, status Status, errMsg string) (*SweepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sweeps[sweepID]
	if !ok {
		return nil, fmt.Errorf("sweep not found: %s", sweepID)
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("sweep %s is already %s", sweepID, rec.Status)
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}

	switch status {
	case StatusRunning:
		if rec.StartedAtUnixMs == 0 {
			rec.StartedAtUnixMs = nowUnixMs()
		}
	case StatusCompleted, StatusFailed, StatusCancelled:
		rec.EndedAtUnixMs = nowUnixMs()
	}
	return rec.snapshot(), nil
}

// SetResult attaches the finished sweep result.
func (s *SweepStore) SetResult(sweepID string, result *optimize.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sweeps[sweepID]
	if !ok {
		return fmt.Errorf("sweep not found: %s", sweepID)
	}
	rec.Result = result
	return nil
}
