package optimize

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// StepMode selects how trial values are spaced across the parameter range.
type StepMode string

const (
	// StepLinear spaces trial values evenly between min and max.
	StepLinear StepMode = "linear"
	// StepGeometric spaces trial values logarithmically between min and
	// max; requires a strictly positive lower bound.
	StepGeometric StepMode = "geometric"
)

// ParseStepMode converts a user-supplied mode string to a StepMode.
// An empty string defaults to linear.
func ParseStepMode(s string) (StepMode, error) {
	switch StepMode(s) {
	case "", StepLinear:
		return StepLinear, nil
	case StepGeometric:
		return StepGeometric, nil
	default:
		return "", &InvalidArgumentError{Field: "step_mode", Reason: fmt.Sprintf("%q is not linear or geometric", s)}
	}
}

// ParameterSpec describes the single CAD parameter under optimization.
// It is constructed once per sweep from CLI or config input and is
// immutable afterward.
type ParameterSpec struct {
	// Name is the parameter identifier the CAD session recognizes,
	// e.g. "Fillet_Radius".
	Name string `json:"name" yaml:"parameter"`
	// Min and Max bound the range of trial values; Min must be < Max.
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
	// Steps is the number of trial points sampled, endpoints included
	// when Steps >= 2.
	Steps int `json:"steps" yaml:"steps"`
	// Mode selects linear or geometric spacing. Zero value means linear.
	Mode StepMode `json:"step_mode,omitempty" yaml:"step_mode"`
}

// Validate checks the spec before any trial runs.
func (s ParameterSpec) Validate() error {
	if s.Name == "" {
		return &InvalidArgumentError{Field: "parameter name", Reason: "must not be empty"}
	}
	if s.Steps < 1 {
		return &InvalidArgumentError{Field: "step count", Reason: fmt.Sprintf("must be >= 1, got %d", s.Steps)}
	}
	if s.Min >= s.Max {
		return &InvalidRangeError{Min: s.Min, Max: s.Max, Reason: "min must be less than max"}
	}
	switch s.Mode {
	case "", StepLinear:
	case StepGeometric:
		if s.Min <= 0 {
			return &InvalidRangeError{Min: s.Min, Max: s.Max, Reason: "geometric spacing requires min > 0"}
		}
	default:
		return &InvalidArgumentError{Field: "step_mode", Reason: fmt.Sprintf("unknown mode %q", s.Mode)}
	}
	return nil
}

// Values materializes the ordered sequence of trial values for the spec.
// The returned slice has length exactly spec.Steps and is strictly
// increasing. A single-step spec yields just the range minimum.
func Values(spec ParameterSpec) ([]float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if spec.Steps == 1 {
		return []float64{spec.Min}, nil
	}

	vals := make([]float64, spec.Steps)
	if spec.Mode == StepGeometric {
		floats.LogSpan(vals, spec.Min, spec.Max)
	} else {
		floats.Span(vals, spec.Min, spec.Max)
	}
	return vals, nil
}
