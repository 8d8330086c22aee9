package ws

import (
	"time"

	"github.com/HerbHall/coldguard/pkg/models"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageReadingEvaluated MessageType = "reading.evaluated"
	MessageAlertRaised      MessageType = "alert.raised"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ReadingData is the payload for reading.evaluated and alert.raised messages.
type ReadingData struct {
	Sequence int64               `json:"sequence"`
	Result   models.HybridResult `json:"result"`
}
