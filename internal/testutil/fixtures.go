package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/coldguard/pkg/models"
)

// NewResult returns a HybridResult for an in-range, non-anomalous reading.
// Override individual fields with options.
func NewResult(opts ...func(*models.HybridResult)) models.HybridResult {
	r := models.HybridResult{
		Temperature:         -21.5,
		ReconstructionError: 0.05,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithTemperature sets the reading temperature.
func WithTemperature(t float64) func(*models.HybridResult) {
	return func(r *models.HybridResult) { r.Temperature = t }
}

// WithReconstructionError sets the error and the raw flag it implies at the default threshold.
func WithReconstructionError(e float64) func(*models.HybridResult) {
	return func(r *models.HybridResult) {
		r.ReconstructionError = e
		r.RawAnomaly = e > 0.2
	}
}

// Alerting marks the result as a persistence and hybrid alert.
func Alerting() func(*models.HybridResult) {
	return func(r *models.HybridResult) {
		r.RawAnomaly = true
		r.PersistenceAlert = true
		r.HybridAlert = true
	}
}

// Breaching marks the result as outside the safe band.
func Breaching() func(*models.HybridResult) {
	return func(r *models.HybridResult) {
		r.BoundsBreach = true
		r.HybridAlert = true
	}
}

// NewEvaluatedEvent wraps a result in an event payload with a fresh ID.
func NewEvaluatedEvent(seq int64, r models.HybridResult) models.EvaluatedEvent {
	return models.EvaluatedEvent{
		ID:          uuid.New().String(),
		Sequence:    seq,
		EvaluatedAt: time.Now().UTC(),
		Result:      r,
	}
}
