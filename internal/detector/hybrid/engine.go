// Package hybrid implements the per-reading alert decision for cold-storage
// temperatures. A reading alerts when the reconstruction error has stayed
// above threshold for the whole persistence window, or when the raw value
// leaves the operational bounds.
package hybrid

import (
	"context"
	"fmt"
	"math"

	"github.com/HerbHall/coldguard/pkg/models"
)

// Scaler maps a raw temperature into the model's input space.
type Scaler interface {
	Transform(raw float64) (float64, error)
}

// Oracle returns the model's reconstruction of a scaled value.
type Oracle interface {
	Reconstruct(ctx context.Context, scaled float64) (float64, error)
}

// Engine runs the decision pipeline. The persistence window is its only
// mutable state.
type Engine struct {
	cfg     Config
	bounds  BoundsPolicy
	scaler  Scaler
	oracle  Oracle
	tracker *PersistenceTracker
}

// NewEngine validates cfg and returns an engine with an empty window.
// A nil scaler or oracle is accepted; readings then fail on the model path
// with ErrScaling or ErrOracle while the bounds verdict stays available.
func NewEngine(cfg Config, scaler Scaler, oracle Oracle) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		bounds:  cfg.Bounds(),
		scaler:  scaler,
		oracle:  oracle,
		tracker: NewPersistenceTracker(cfg.PersistenceWindowSize),
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Bounds returns the operational limits.
func (e *Engine) Bounds() BoundsPolicy { return e.bounds }

// Tracker exposes the persistence window for read-only inspection.
func (e *Engine) Tracker() *PersistenceTracker { return e.tracker }

// Evaluate produces the verdict for one reading. On a model-path failure the
// returned error is an *EvaluationError carrying the bounds verdict, and the
// window is left untouched.
func (e *Engine) Evaluate(ctx context.Context, temperature float64) (models.HybridResult, error) {
	breach := e.bounds.Breached(temperature)
	partial := Partial{Temperature: temperature, BoundsBreach: breach}

	if !finite(temperature) {
		return models.HybridResult{}, &EvaluationError{
			Stage:   StageScale,
			Kind:    ErrScaling,
			Partial: partial,
			Err:     fmt.Errorf("temperature must be finite, got %v", temperature),
		}
	}

	scaled, err := e.scale(temperature)
	if err != nil {
		return models.HybridResult{}, &EvaluationError{Stage: StageScale, Kind: ErrScaling, Partial: partial, Err: err}
	}

	recon, err := e.reconstruct(ctx, scaled)
	if err != nil {
		return models.HybridResult{}, &EvaluationError{Stage: StageReconstruct, Kind: ErrOracle, Partial: partial, Err: err}
	}

	eval, err := EvaluateError(scaled, recon, e.cfg.ReconstructionThreshold)
	if err != nil {
		return models.HybridResult{}, &EvaluationError{Stage: StageEvaluate, Kind: ErrOracle, Partial: partial, Err: err}
	}

	persistent := e.tracker.Observe(eval.RawAnomaly)
	return Combine(temperature, eval, persistent, breach), nil
}

func (e *Engine) scale(temperature float64) (float64, error) {
	if e.scaler == nil {
		return 0, fmt.Errorf("scaler not initialized")
	}
	scaled, err := e.scaler.Transform(temperature)
	if err != nil {
		return 0, err
	}
	if !finite(scaled) {
		return 0, fmt.Errorf("scaler produced non-finite value %v", scaled)
	}
	return scaled, nil
}

type reconstruction struct {
	value float64
	err   error
}

// reconstruct calls the oracle under the configured timeout. The result is
// abandoned on timeout even if the oracle ignores ctx.
func (e *Engine) reconstruct(ctx context.Context, scaled float64) (float64, error) {
	if e.oracle == nil {
		return 0, fmt.Errorf("oracle not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
	defer cancel()

	ch := make(chan reconstruction, 1)
	go func() {
		v, err := e.oracle.Reconstruct(ctx, scaled)
		ch <- reconstruction{value: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return 0, r.err
		}
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) {
			return 0, fmt.Errorf("oracle returned non-finite value %v", r.value)
		}
		return r.value, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("reconstruct: %w", ctx.Err())
	}
}
