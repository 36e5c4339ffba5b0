package optimize

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func TestValuesLength(t *testing.T) {
	for _, steps := range []int{1, 2, 3, 5, 17, 100} {
		spec := ParameterSpec{Name: "Length", Min: 1, Max: 200, Steps: steps}
		vals, err := Values(spec)
		if err != nil {
			t.Fatalf("steps=%d: unexpected error: %v", steps, err)
		}
		if len(vals) != steps {
			t.Fatalf("steps=%d: expected %d values, got %d", steps, steps, len(vals))
		}
	}
}

func TestValuesBoundsInclusive(t *testing.T) {
	for _, mode := range []StepMode{StepLinear, StepGeometric} {
		spec := ParameterSpec{Name: "Radius", Min: 0.5, Max: 12, Steps: 7, Mode: mode}
		vals, err := Values(spec)
		if err != nil {
			t.Fatalf("mode=%s: unexpected error: %v", mode, err)
		}
		if math.Abs(vals[0]-spec.Min) > tolerance {
			t.Errorf("mode=%s: first value %g, expected min %g", mode, vals[0], spec.Min)
		}
		if math.Abs(vals[len(vals)-1]-spec.Max) > tolerance {
			t.Errorf("mode=%s: last value %g, expected max %g", mode, vals[len(vals)-1], spec.Max)
		}
	}
}

func TestValuesStrictlyIncreasing(t *testing.T) {
	for _, mode := range []StepMode{StepLinear, StepGeometric} {
		spec := ParameterSpec{Name: "Thickness", Min: 2, Max: 64, Steps: 9, Mode: mode}
		vals, err := Values(spec)
		if err != nil {
			t.Fatalf("mode=%s: unexpected error: %v", mode, err)
		}
		for i := 1; i < len(vals); i++ {
			if vals[i] <= vals[i-1] {
				t.Fatalf("mode=%s: values not strictly increasing at %d: %g <= %g",
					mode, i, vals[i], vals[i-1])
			}
		}
	}
}

func TestValuesLinearSpacing(t *testing.T) {
	// Fillet radius sweep 2..15 mm in 5 steps.
	spec := ParameterSpec{Name: "Fillet_Radius", Min: 2.0, Max: 15.0, Steps: 5, Mode: StepLinear}
	vals, err := Values(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []float64{2.0, 5.25, 8.5, 11.75, 15.0}
	if len(vals) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(vals))
	}
	for i, want := range expected {
		if math.Abs(vals[i]-want) > tolerance {
			t.Errorf("value[%d]: expected %g, got %g", i, want, vals[i])
		}
	}
}

func TestValuesGeometricSpacing(t *testing.T) {
	spec := ParameterSpec{Name: "Radius", Min: 1, Max: 16, Steps: 5, Mode: StepGeometric}
	vals, err := Values(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ratio 2 per step: 1, 2, 4, 8, 16.
	expected := []float64{1, 2, 4, 8, 16}
	for i, want := range expected {
		if math.Abs(vals[i]-want) > 1e-6 {
			t.Errorf("value[%d]: expected %g, got %g", i, want, vals[i])
		}
	}
}

func TestValuesSingleStep(t *testing.T) {
	spec := ParameterSpec{Name: "Width", Min: 3.5, Max: 10, Steps: 1}
	vals, err := Values(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vals) != 1 || vals[0] != spec.Min {
		t.Fatalf("expected [%g], got %v", spec.Min, vals)
	}
}

func TestValidateRejectsBadRange(t *testing.T) {
	cases := []struct {
		name string
		spec ParameterSpec
	}{
		{"min equals max", ParameterSpec{Name: "L", Min: 5, Max: 5, Steps: 3}},
		{"min above max", ParameterSpec{Name: "L", Min: 9, Max: 5, Steps: 3}},
		{"geometric with zero min", ParameterSpec{Name: "L", Min: 0, Max: 5, Steps: 3, Mode: StepGeometric}},
		{"geometric with negative min", ParameterSpec{Name: "L", Min: -2, Max: 5, Steps: 3, Mode: StepGeometric}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Values(tc.spec)
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected InvalidRangeError, got %v", err)
			}
		})
	}
}

func TestValidateRejectsBadArguments(t *testing.T) {
	cases := []struct {
		name string
		spec ParameterSpec
	}{
		{"zero steps", ParameterSpec{Name: "L", Min: 1, Max: 5, Steps: 0}},
		{"negative steps", ParameterSpec{Name: "L", Min: 1, Max: 5, Steps: -3}},
		{"empty name", ParameterSpec{Min: 1, Max: 5, Steps: 3}},
		{"unknown mode", ParameterSpec{Name: "L", Min: 1, Max: 5, Steps: 3, Mode: "quadratic"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Values(tc.spec)
			var argErr *InvalidArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("expected InvalidArgumentError, got %v", err)
			}
		})
	}
}

func TestValuesDeterministic(t *testing.T) {
	spec := ParameterSpec{Name: "Height", Min: 1, Max: 99, Steps: 13, Mode: StepGeometric}
	first, err := Values(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Values(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("value[%d] differs between runs: %g vs %g", i, first[i], second[i])
		}
	}
}

func TestParseStepMode(t *testing.T) {
	if mode, err := ParseStepMode(""); err != nil || mode != StepLinear {
		t.Errorf("empty mode: expected linear, got %q (%v)", mode, err)
	}
	if mode, err := ParseStepMode("geometric"); err != nil || mode != StepGeometric {
		t.Errorf("geometric: got %q (%v)", mode, err)
	}
	if _, err := ParseStepMode("cubic"); err == nil {
		t.Error("expected error for unknown step mode")
	}
}
