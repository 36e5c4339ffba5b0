package score

import (
	"context"
	"fmt"

	"github.com/cae-assist/cae-cli/pkg/utils"
)

// Material constants for Q235 structural steel, the default material
// assumption for scored brackets.
const (
	yieldStrengthQ235 = 235.0 // MPa

	// allowableStressFloor keeps the computed allowable stress inside
	// the band engineering practice accepts for Q235.
	allowableStressFloor = 50.0
	allowableStressCeil  = yieldStrengthQ235 * 0.7

	safetyFactorFloor = 1.2
	safetyFactorCeil  = 3.0
)

// cubic millimeters per cubic meter; geometry files are in mm.
const mm3PerM3 = 1e9

// Mechanics estimates the allowable stress (MPa) and safety factor for
// a part with the given geometry at the given driving parameter value.
func Mechanics(stats Stats, value float64) (allowableStress, safetyFactor float64) {
	const baseSafetyFactor = 1.5

	var paramFactor float64
	switch {
	case value < 5:
		// Thin features concentrate stress.
		paramFactor = 0.8
		safetyFactor = baseSafetyFactor * 1.2
	case value < 15:
		paramFactor = 1.0
		safetyFactor = baseSafetyFactor
	default:
		paramFactor = 0.9
		safetyFactor = baseSafetyFactor * 1.1
	}

	volumeM3 := stats.Volume / mm3PerM3
	var volumeFactor float64
	switch {
	case volumeM3 < 0.0001:
		volumeFactor = 0.7
	case volumeM3 < 0.01:
		volumeFactor = 1.0
	default:
		volumeFactor = 0.8
	}

	complexity := stats.Vertices + stats.Faces
	var complexityFactor float64
	switch {
	case complexity < 1000:
		complexityFactor = 1.1
	case complexity < 10000:
		complexityFactor = 1.0
	default:
		complexityFactor = 0.9
	}

	allowableStress = yieldStrengthQ235 * paramFactor * volumeFactor * complexityFactor
	allowableStress = utils.ClampFloat64(allowableStress, allowableStressFloor, allowableStressCeil)
	safetyFactor = utils.ClampFloat64(safetyFactor, safetyFactorFloor, safetyFactorCeil)
	return allowableStress, safetyFactor
}

// QualityScore maps geometry statistics and the driving parameter value
// onto [0, 100]. Mid-band volumes, moderate tessellation density and
// mid-range parameter values score highest; the mechanical estimate
// contributes the remainder.
func QualityScore(stats Stats, value float64) float64 {
	score := 50.0

	volumeM3 := stats.Volume / mm3PerM3
	switch {
	case volumeM3 > 0.0001 && volumeM3 < 0.01:
		score += 15
	case volumeM3 < 0.0001:
		score += 5
	case volumeM3 < 0.1:
		score += 10
	default:
		score += 5
	}

	switch {
	case stats.Vertices > 100 && stats.Vertices < 50000:
		score += 10
	case stats.Vertices < 100:
		score += 5
	default:
		score += 7
	}

	switch {
	case stats.Faces > 100 && stats.Faces < 10000:
		score += 10
	case stats.Faces < 100:
		score += 5
	default:
		score += 7
	}

	switch {
	case value > 5 && value < 15:
		score += 20
	case value <= 5:
		score += 10
	default:
		score += 15
	}

	allowableStress, safetyFactor := Mechanics(stats, value)
	switch {
	case allowableStress > 140:
		score += 10
	case allowableStress > 120:
		score += 5
	default:
		score += 2
	}
	switch {
	case safetyFactor > 2.0:
		score += 10
	case safetyFactor > 1.5:
		score += 5
	default:
		score += 2
	}

	return utils.ClampFloat64(score, 0, 100)
}

// GeometryScorer scores exported artifacts by analyzing the file on
// disk. It satisfies the optimization engine's Scorer interface.
type GeometryScorer struct{}

func (GeometryScorer) Score(_ context.Context, artifactPath string, value float64) (float64, error) {
	stats, err := Analyze(artifactPath)
	if err != nil {
		return 0, fmt.Errorf("analyze artifact: %w", err)
	}
	return QualityScore(stats, value), nil
}
