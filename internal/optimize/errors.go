package optimize

import "fmt"

// InvalidRangeError indicates an unusable parameter range: min >= max, or a
// non-positive lower bound for geometric spacing.
type InvalidRangeError struct {
	Min    float64
	Max    float64
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid parameter range [%g, %g]: %s", e.Min, e.Max, e.Reason)
}

// InvalidArgumentError indicates a spec field outside the range the sampler
// accepts, such as a step count below one or an empty parameter name.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
