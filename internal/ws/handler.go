// Package ws streams detector decisions to dashboard clients over WebSocket.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/internal/server"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler provides the live readings WebSocket endpoint.
type Handler struct {
	hub            *Hub
	logger         *zap.Logger
	originPatterns []string
	pingInterval   time.Duration
	unsubs         []func()
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to detector events.
// originPatterns lists extra allowed Origin hosts; same-origin is always allowed.
func NewHandler(bus plugin.EventBus, logger *zap.Logger, originPatterns ...string) *Handler {
	h := &Handler{
		hub:            NewHub(logger),
		logger:         logger,
		originPatterns: originPatterns,
		pingInterval:   pingInterval,
	}
	if bus != nil {
		h.unsubs = append(h.unsubs,
			bus.Subscribe(detector.TopicReadingEvaluated, h.forward(MessageReadingEvaluated)),
			bus.Subscribe(detector.TopicAlertRaised, h.forward(MessageAlertRaised)),
		)
		logger.Info("subscribed to detector events for WebSocket broadcasting")
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/readings", h.handleReadingStream)
}

// Hub exposes the connection hub.
func (h *Handler) Hub() *Hub { return h.hub }

// Close detaches the handler from the event bus.
func (h *Handler) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

// handleReadingStream upgrades to a WebSocket that receives every
// evaluated reading, or only alerts with ?alerts=only.
func (h *Handler) handleReadingStream(w http.ResponseWriter, r *http.Request) {
	alertsOnly := r.URL.Query().Get("alerts") == "only"
	if h.hub.ClientCount() >= h.hub.maxClients {
		server.WriteProblem(w, server.Problem{
			Type:     "https://coldguard.dev/problems/too-many-clients",
			Status:   http.StatusServiceUnavailable,
			Detail:   ErrHubFull.Error(),
			Instance: r.URL.Path,
		})
		return
	}

	// The server's request timeouts would cut the stream; writePump sets its
	// own per-message deadline.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:       conn,
		remote:     r.RemoteAddr,
		alertsOnly: alertsOnly,
		send:       make(chan Message, sendBuffer),
		logger:     h.logger,
	}
	if err := h.hub.Register(client); err != nil {
		conn.Close(websocket.StatusTryAgainLater, err.Error())
		return
	}

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx, h.pingInterval)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

func (h *Handler) forward(typ MessageType) plugin.EventHandler {
	return func(_ context.Context, event plugin.Event) {
		var ev models.EvaluatedEvent
		switch p := event.Payload.(type) {
		case models.EvaluatedEvent:
			ev = p
		case *models.EvaluatedEvent:
			if p == nil {
				return
			}
			ev = *p
		default:
			return
		}
		h.hub.Broadcast(Message{
			Type:      typ,
			ID:        ev.ID,
			Timestamp: event.Timestamp,
			Data:      ReadingData{Sequence: ev.Sequence, Result: ev.Result},
		})
	}
}
