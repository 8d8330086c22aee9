package hybrid

import (
	"errors"
	"fmt"
)

// Error kinds reported by the engine. Callers classify failures with errors.Is.
var (
	// ErrConfiguration marks invalid bounds, threshold, window size, or timeout.
	// It is fatal at startup.
	ErrConfiguration = errors.New("invalid detector configuration")

	// ErrScaling is returned when the scaler is unavailable or yields a non-finite value.
	ErrScaling = errors.New("scaling failed")

	// ErrOracle is returned when the reconstruction oracle is unavailable, times out,
	// or returns a non-finite value.
	ErrOracle = errors.New("reconstruction oracle failed")

	// ErrInvalidInput is returned for malformed or non-finite readings.
	ErrInvalidInput = errors.New("invalid input")
)

// Stage identifies the pipeline step at which an evaluation failed.
type Stage string

const (
	StageScale       Stage = "scale"
	StageReconstruct Stage = "reconstruct"
	StageEvaluate    Stage = "evaluate"
)

// Partial is the part of a verdict that does not depend on the model path.
type Partial struct {
	Temperature  float64 `json:"temperature"`
	BoundsBreach bool    `json:"bounds_breach"`
}

// EvaluationError describes a reading that failed on the model path.
// The persistence window is never advanced when one is returned.
type EvaluationError struct {
	Stage   Stage
	Kind    error // ErrScaling or ErrOracle
	Partial Partial
	Err     error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *EvaluationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PartialResult extracts the bounds-only verdict from err, if err carries one.
func PartialResult(err error) (Partial, bool) {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.Partial, true
	}
	return Partial{}, false
}
