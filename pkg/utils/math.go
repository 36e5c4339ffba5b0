package utils

// ClampFloat64 clamps value to the [min, max] interval.
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
