// Package cad talks to a CAD kernel through a bridge process and
// drives the open/set/rebuild/export cycle of a parametric model.
//
// A session is single-writer: callers must not interleave mutating
// calls from multiple goroutines against the same document.
package cad

import "context"

// Parameter is a named dimension exposed by the open document.
type Parameter struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Object string  `json:"object,omitempty"`
}

// Connector is the full lifecycle of a CAD session. Bridge and Mock
// both implement it; the optimization engine only needs the mutating
// subset (SetParameter/Rebuild/Export).
type Connector interface {
	Connect(ctx context.Context) error
	Open(ctx context.Context, path string) error
	Parameters(ctx context.Context) ([]Parameter, error)
	SetParameter(ctx context.Context, name string, value float64) error
	Rebuild(ctx context.Context) error
	Export(ctx context.Context, path string) error
	Close(ctx context.Context) error
}
