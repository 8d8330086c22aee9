package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	sendBuffer        = 64
	writeTimeout      = 5 * time.Second
	pingInterval      = 30 * time.Second
	defaultMaxClients = 256
)

// ErrHubFull is returned by Register when the client limit is reached.
var ErrHubFull = errors.New("websocket client limit reached")

// Client is one connected dashboard.
type Client struct {
	conn   *websocket.Conn
	remote string
	// alertsOnly clients receive alert.raised but not every reading.
	alertsOnly bool
	send       chan Message
	logger     *zap.Logger
}

func (c *Client) wants(msg Message) bool {
	return !c.alertsOnly || msg.Type == MessageAlertRaised
}

// Hub fans detector messages out to connected clients.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	maxClients int
	dropped    atomic.Uint64
	logger     *zap.Logger
}

// NewHub creates a hub accepting up to defaultMaxClients clients.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxClients: defaultMaxClients,
		logger:     logger,
	}
}

// Register adds a client, or returns ErrHubFull.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		h.mu.Unlock()
		return ErrHubFull
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected",
		zap.String("remote", c.remote),
		zap.Bool("alerts_only", c.alertsOnly),
		zap.Int("clients", n),
	)
	return nil
}

// Unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.logger.Debug("websocket client disconnected", zap.String("remote", c.remote))
	}
}

// Broadcast queues msg for every interested client. A client whose buffer
// is full misses the message and the drop is counted.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			h.logger.Warn("client send buffer full, dropping message",
				zap.String("remote", c.remote),
				zap.String("type", string(msg.Type)),
				zap.String("id", msg.ID),
			)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// writePump writes queued messages and pings the client periodically so
// idle proxies keep the connection open. It returns when the send channel
// closes, a write fails, or ctx ends.
func (c *Client) writePump(ctx context.Context, ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug("websocket ping failed", zap.String("remote", c.remote), zap.Error(err))
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write error", zap.String("remote", c.remote), zap.Error(err))
				return
			}
		}
	}
}

// readPump discards client frames until the connection closes. Reading is
// required for pong and close frames to be processed.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
