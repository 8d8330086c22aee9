package hybrid

import (
	"fmt"
	"math"
)

// AnomalyEvaluation is the model-path score for one reading.
type AnomalyEvaluation struct {
	ReconstructionError float64
	RawAnomaly          bool
}

// EvaluateError compares a scaled reading with its reconstruction.
// RawAnomaly is set when the absolute error is strictly above threshold.
func EvaluateError(scaled, reconstruction, threshold float64) (AnomalyEvaluation, error) {
	if !finite(scaled) || !finite(reconstruction) {
		return AnomalyEvaluation{}, fmt.Errorf("%w: non-finite operand (scaled=%v, reconstruction=%v)",
			ErrInvalidInput, scaled, reconstruction)
	}

	diff := math.Abs(scaled - reconstruction)
	if math.IsInf(diff, 0) {
		return AnomalyEvaluation{}, fmt.Errorf("%w: reconstruction error overflows float64", ErrInvalidInput)
	}

	return AnomalyEvaluation{
		ReconstructionError: diff,
		RawAnomaly:          diff > threshold,
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
