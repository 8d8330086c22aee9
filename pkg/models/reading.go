package models

import "time"

// HybridResult is the decision for a single temperature reading.
type HybridResult struct {
	Temperature         float64 `json:"temperature" example:"-21.5"`
	ReconstructionError float64 `json:"reconstruction_error" example:"0.031"`
	RawAnomaly          bool    `json:"raw_anomaly" example:"false"`
	PersistenceAlert    bool    `json:"persistence_alert" example:"false"`
	BoundsBreach        bool    `json:"bounds_breach" example:"false"`
	HybridAlert         bool    `json:"hybrid_alert" example:"false"`
}

// ReadingRequest is the body accepted by the evaluate endpoints.
type ReadingRequest struct {
	Temperature *float64 `json:"temperature" example:"-21.5"`
}

// StoredReading is a HybridResult as recorded by the reading sink.
type StoredReading struct {
	ID        int64     `json:"id" example:"42"`
	Timestamp time.Time `json:"timestamp"`
	HybridResult
}

// ReadingSummary aggregates the recorded history.
type ReadingSummary struct {
	Total           int64          `json:"total" example:"120"`
	RawAnomalies    int64          `json:"raw_anomalies" example:"7"`
	PersistenceHits int64          `json:"persistence_alerts" example:"3"`
	BoundsBreaches  int64          `json:"bounds_breaches" example:"5"`
	HybridAlerts    int64          `json:"hybrid_alerts" example:"6"`
	Latest          *StoredReading `json:"latest,omitempty"`
}

// WindowState describes the persistence window at a point in time.
type WindowState struct {
	Capacity int    `json:"capacity" example:"2"`
	Size     int    `json:"size" example:"2"`
	Full     bool   `json:"full" example:"true"`
	Flags    []bool `json:"flags"`
	Observed uint64 `json:"observed" example:"120"`
}

// EvaluatedEvent is the payload of detector.reading.evaluated events.
type EvaluatedEvent struct {
	ID          string       `json:"id"`
	Sequence    int64        `json:"sequence"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
	Result      HybridResult `json:"result"`
}
