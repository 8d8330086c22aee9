// Package ingest subscribes to an MQTT topic carrying sensor readings and
// feeds each one to the evaluator plugin.
package ingest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/HerbHall/coldguard/pkg/roles"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

var errNoEvaluator = errors.New("no evaluator plugin available")

// Module implements the MQTT ingest plugin.
type Module struct {
	logger    *zap.Logger
	cfg       Config
	plugins   plugin.PluginResolver
	evaluator roles.Evaluator

	mu     sync.RWMutex
	client pahomqtt.Client

	received atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Module before Init.
type Option func(*Module)

// WithEvaluator fixes the evaluator instead of resolving it by role.
func WithEvaluator(e roles.Evaluator) Option { return func(m *Module) { m.evaluator = e } }

// New creates a new ingest plugin instance.
func New(opts ...Option) *Module {
	m := &Module{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "ingest",
		Version:      "0.1.0",
		Description:  "Evaluates temperature readings received over MQTT",
		Dependencies: []string{"detector"},
		Roles:        []string{roles.RoleIngest},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.plugins = deps.Plugins
	m.cfg = DefaultConfig()

	if deps.Config != nil {
		if u := deps.Config.GetString("broker_url"); u != "" {
			m.cfg.BrokerURL = u
		}
		if u := deps.Config.GetString("username"); u != "" {
			m.cfg.Username = u
		}
		if p := deps.Config.GetString("password"); p != "" {
			m.cfg.Password = p
		}
		if c := deps.Config.GetString("client_id"); c != "" {
			m.cfg.ClientID = c
		}
		if t := deps.Config.GetString("topic"); t != "" {
			m.cfg.Topic = t
		}
		if deps.Config.IsSet("qos") {
			m.cfg.QoS = byte(deps.Config.GetInt("qos"))
		}
		if d := deps.Config.GetDuration("timeout"); d > 0 {
			m.cfg.Timeout = d
		}
	}

	if m.cfg.BrokerURL == "" {
		m.logger.Info("MQTT broker URL not configured; ingest disabled")
	}

	m.logger.Info("ingest module initialized",
		zap.String("broker_url", m.cfg.BrokerURL),
		zap.String("client_id", m.cfg.ClientID),
		zap.String("topic", m.cfg.Topic),
		zap.Uint8("qos", m.cfg.QoS),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	if m.cfg.BrokerURL == "" {
		m.logger.Info("ingest module started (no-op: no broker configured)")
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(m.cfg.BrokerURL).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(m.cfg.Timeout).
		SetOnConnectHandler(m.subscribe).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			m.logger.Warn("mqtt connection lost", zap.Error(err))
		})

	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password) //nolint:gosec // G101: config field
	}

	client := pahomqtt.NewClient(opts)
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	token := client.Connect()
	switch {
	case !token.WaitTimeout(m.cfg.Timeout):
		m.logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		m.logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()),
		)
	default:
		m.logger.Info("mqtt connected to broker", zap.String("broker_url", m.cfg.BrokerURL))
	}
	return nil
}

// subscribe runs on every (re)connect so the subscription survives broker
// restarts.
func (m *Module) subscribe(c pahomqtt.Client) {
	token := c.Subscribe(m.cfg.Topic, m.cfg.QoS, m.onMessage)
	if !token.WaitTimeout(m.cfg.Timeout) {
		m.logger.Warn("mqtt subscribe timed out", zap.String("topic", m.cfg.Topic))
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Warn("mqtt subscribe failed", zap.String("topic", m.cfg.Topic), zap.Error(err))
		return
	}
	m.logger.Info("subscribed to readings", zap.String("topic", m.cfg.Topic))
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.Topic).WaitTimeout(m.cfg.Timeout)
		m.client.Disconnect(250)
		m.logger.Info("mqtt disconnected")
	}
	return nil
}

func (m *Module) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	m.handle(ctx, msg.Topic(), msg.Payload())
}

// handle evaluates one payload. Malformed payloads are dropped.
func (m *Module) handle(ctx context.Context, topic string, payload []byte) {
	m.received.Add(1)

	temp, err := detector.ParseReading(payload)
	if err != nil {
		m.dropped.Add(1)
		m.logger.Warn("dropping malformed reading",
			zap.String("topic", topic),
			zap.ByteString("payload", payload),
			zap.Error(err),
		)
		return
	}

	ev, err := m.resolveEvaluator()
	if err != nil {
		m.failed.Add(1)
		m.logger.Error("cannot evaluate reading", zap.Float64("temperature", temp), zap.Error(err))
		return
	}

	result, err := ev.Evaluate(ctx, temp)
	if err != nil {
		m.failed.Add(1)
		m.logger.Warn("reading evaluation failed",
			zap.String("topic", topic),
			zap.Float64("temperature", temp),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("reading evaluated",
		zap.String("topic", topic),
		zap.Float64("temperature", temp),
		zap.Bool("hybrid_alert", result.HybridAlert),
	)
}

// resolveEvaluator looks up the evaluator on first use. Lookup cannot
// happen during Init or Start because the registry is locked then.
func (m *Module) resolveEvaluator() (roles.Evaluator, error) {
	m.mu.RLock()
	ev := m.evaluator
	m.mu.RUnlock()
	if ev != nil {
		return ev, nil
	}
	if m.plugins == nil {
		return nil, errNoEvaluator
	}
	for _, p := range m.plugins.ResolveByRole(roles.RoleEvaluator) {
		if e, ok := p.(roles.Evaluator); ok {
			m.mu.Lock()
			m.evaluator = e
			m.mu.Unlock()
			return e, nil
		}
	}
	return nil, errNoEvaluator
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{
		"topic":    m.cfg.Topic,
		"received": formatCount(m.received.Load()),
		"dropped":  formatCount(m.dropped.Load()),
		"failed":   formatCount(m.failed.Load()),
	}
	if m.cfg.BrokerURL == "" {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "no broker configured (no-op mode)",
			Details: details,
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil || !m.client.IsConnected() {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "not connected to MQTT broker",
			Details: details,
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Message: "connected to " + m.cfg.BrokerURL,
		Details: details,
	}
}

func formatCount(n uint64) string { return strconv.FormatUint(n, 10) }
