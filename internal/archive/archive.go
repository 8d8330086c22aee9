// Package archive mirrors evaluated readings into Postgres for retention
// beyond the local SQLite history.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/HerbHall/coldguard/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
)

// Config holds archive settings. An empty DSN disables archiving.
type Config struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the archive defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns: 25,
		MaxIdleConns: 10,
		WriteTimeout: 5 * time.Second,
	}
}

// Module implements the archive plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config

	mu     sync.RWMutex
	writer Writer

	archived atomic.Uint64
	failed   atomic.Uint64
}

// Option customizes a Module before Init.
type Option func(*Module)

// WithWriter replaces the Postgres writer.
func WithWriter(w Writer) Option { return func(m *Module) { m.writer = w } }

// New creates a new archive plugin instance.
func New(opts ...Option) *Module {
	m := &Module{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "archive",
		Version:      "0.1.0",
		Description:  "Archives evaluated readings to Postgres",
		Dependencies: []string{"detector"},
		Roles:        []string{roles.RoleArchive},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal archive config: %w", err)
		}
	}

	if m.writer == nil && m.cfg.DSN != "" {
		w, err := OpenPostgres(ctx, m.cfg)
		if err != nil {
			return err
		}
		m.writer = w
	}

	if m.writer == nil {
		m.logger.Info("archive DSN not configured; readings will not be archived")
	}
	m.logger.Info("archive module initialized",
		zap.Bool("enabled", m.writer != nil),
		zap.Int("max_open_conns", m.cfg.MaxOpenConns),
		zap.Duration("write_timeout", m.cfg.WriteTimeout),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.WriteTimeout <= 0 {
		return fmt.Errorf("archive write_timeout must be positive, got %s", m.cfg.WriteTimeout)
	}
	if m.cfg.MaxOpenConns < 1 {
		return fmt.Errorf("archive max_open_conns must be at least 1, got %d", m.cfg.MaxOpenConns)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writer == nil {
		return nil
	}
	err := m.writer.Close()
	m.writer = nil
	return err
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: detector.TopicReadingEvaluated, Handler: m.archiveEvent},
	}
}

func (m *Module) archiveEvent(ctx context.Context, event plugin.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.writer == nil {
		return
	}

	ev, ok := extractEvaluated(event.Payload)
	if !ok {
		m.logger.Warn("unexpected reading event payload", zap.String("topic", event.Topic))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	defer cancel()
	if err := m.writer.Write(ctx, ev); err != nil {
		m.failed.Add(1)
		m.logger.Error("failed to archive reading",
			zap.String("event_id", ev.ID),
			zap.Int64("sequence", ev.Sequence),
			zap.Error(err),
		)
		return
	}
	m.archived.Add(1)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	details := map[string]string{
		"archived": strconv.FormatUint(m.archived.Load(), 10),
		"failed":   strconv.FormatUint(m.failed.Load(), 10),
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.writer == nil {
		return plugin.HealthStatus{Status: "healthy", Message: "archiving disabled", Details: details}
	}
	if err := m.writer.Ping(ctx); err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "archive database unreachable: " + err.Error(), Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// extractEvaluated accepts the detector payload by value, by pointer, or in
// any JSON-compatible form.
func extractEvaluated(payload any) (models.EvaluatedEvent, bool) {
	switch v := payload.(type) {
	case models.EvaluatedEvent:
		return v, true
	case *models.EvaluatedEvent:
		if v == nil {
			return models.EvaluatedEvent{}, false
		}
		return *v, true
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return models.EvaluatedEvent{}, false
		}
		var ev models.EvaluatedEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.ID == "" {
			return models.EvaluatedEvent{}, false
		}
		return ev, true
	}
}
