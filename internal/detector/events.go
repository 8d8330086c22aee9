package detector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/HerbHall/coldguard/pkg/plugin"
)

// Event topics published by the detector. Payload is models.EvaluatedEvent.
const (
	TopicReadingEvaluated = "detector.reading.evaluated"
	TopicAlertRaised      = "detector.alert.raised"
)

func (m *Module) publish(ctx context.Context, seq int64, r models.HybridResult) {
	if m.bus == nil {
		return
	}
	payload := models.EvaluatedEvent{
		ID:          uuid.NewString(),
		Sequence:    seq,
		EvaluatedAt: time.Now().UTC(),
		Result:      r,
	}
	// Subscribers outlive the request that produced the reading.
	ctx = context.WithoutCancel(ctx)
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:     TopicReadingEvaluated,
		Source:    pluginName,
		Timestamp: payload.EvaluatedAt,
		Payload:   payload,
	})
	if r.HybridAlert {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:     TopicAlertRaised,
			Source:    pluginName,
			Timestamp: payload.EvaluatedAt,
			Payload:   payload,
		})
	}
}
