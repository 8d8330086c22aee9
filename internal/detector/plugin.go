// Package detector hosts the hybrid cold-storage anomaly engine as a
// coldguard plugin: it loads the scaler and oracle, evaluates readings,
// records them, and announces each decision on the event bus.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/internal/oracle"
	"github.com/HerbHall/coldguard/internal/scaler"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/HerbHall/coldguard/pkg/roles"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const pluginName = "detector"

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
	_ roles.Evaluator      = (*Module)(nil)
	_ roles.ReadingHistory = (*Module)(nil)
)

// Module implements the detector plugin.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	engine  *hybrid.Engine
	store   *ReadingStore
	db      plugin.Store
	sink    Sink
	bus     plugin.EventBus
	metrics *metrics

	// Injected collaborators; when nil they are built from config in Init.
	scaler     hybrid.Scaler
	oracle     hybrid.Oracle
	oracleName string
	s3         scaler.ObjectGetter
	registerer prometheus.Registerer

	mu      sync.RWMutex
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Module before Init.
type Option func(*Module)

// WithScaler overrides the configured scaler.
func WithScaler(s hybrid.Scaler) Option { return func(m *Module) { m.scaler = s } }

// WithOracle overrides the configured reconstruction oracle.
func WithOracle(o hybrid.Oracle) Option {
	return func(m *Module) {
		m.oracle = o
		m.oracleName = "custom"
	}
}

// WithS3Client sets the client used for s3:// scaler sources.
func WithS3Client(c scaler.ObjectGetter) Option { return func(m *Module) { m.s3 = c } }

// WithRegisterer sets where detector metrics are registered. Defaults to the
// process-wide Prometheus registry.
func WithRegisterer(r prometheus.Registerer) Option { return func(m *Module) { m.registerer = r } }

// New creates a new detector plugin instance.
func New(opts ...Option) *Module {
	m := &Module{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        pluginName,
		Version:     "0.1.0",
		Description: "Hybrid reconstruction, persistence, and bounds anomaly detector",
		Required:    true,
		Roles:       []string{roles.RoleEvaluator},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal detector config: %w", err)
		}
	}
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	if m.scaler == nil {
		s, err := m.loadScaler(ctx)
		if err != nil {
			return err
		}
		m.scaler = s
	}

	if m.oracle == nil {
		o, err := oracle.New(m.cfg.Oracle, m.logger.Named("oracle"))
		switch {
		case errors.Is(err, oracle.ErrNotConfigured):
			m.logger.Warn("no reconstruction oracle configured; evaluations will fail on the model path")
		case err != nil:
			return fmt.Errorf("detector oracle: %w", err)
		default:
			m.oracle = o
			m.oracleName = o.Name()
		}
	}

	m.metrics = newMetrics(m.registerer)
	var o hybrid.Oracle
	if m.oracle != nil {
		o = timedOracle{next: m.oracle, duration: m.metrics.oracleDuration}
	}

	engine, err := hybrid.NewEngine(m.cfg.Config, m.scaler, o)
	if err != nil {
		return err
	}
	m.engine = engine

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, pluginName, migrations()); err != nil {
			return fmt.Errorf("detector migrations: %w", err)
		}
		m.db = deps.Store
		m.store = NewReadingStore(deps.Store.DB())
		m.sink = m.store
	}

	m.logger.Info("detector module initialized",
		zap.Float64("min_temp", m.cfg.MinTemp),
		zap.Float64("max_temp", m.cfg.MaxTemp),
		zap.Int("persistence_window_size", m.cfg.PersistenceWindowSize),
		zap.Float64("reconstruction_threshold", m.cfg.ReconstructionThreshold),
		zap.String("oracle", m.oracleLabel()),
		zap.Bool("history", m.store != nil),
	)
	return nil
}

// loadScaler resolves the scaler from, in order, a source file or object,
// inline params, or an empty scaler that fails every Transform.
func (m *Module) loadScaler(ctx context.Context) (*scaler.Scaler, error) {
	sc := m.cfg.Scaler
	switch {
	case sc.Source != "":
		loader := &scaler.Loader{S3: m.s3, Region: sc.Region}
		params, err := loader.Load(ctx, sc.Source)
		if err != nil {
			return nil, fmt.Errorf("detector scaler: %w", err)
		}
		m.logger.Info("scaler loaded", zap.String("source", sc.Source), zap.String("kind", string(params.Kind)))
		return scaler.FromParams(params)
	case !sc.Params.IsZero():
		return scaler.FromParams(sc.Params)
	default:
		m.logger.Warn("no scaler parameters configured; evaluations will fail at scaling")
		return scaler.New(), nil
	}
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startMaintenance()
	m.logger.Info("detector module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.logger != nil {
		m.logger.Info("detector module stopped")
	}
	return nil
}

// Evaluate implements roles.Evaluator. Successful results are recorded and
// published; failures leave the persistence window untouched.
func (m *Module) Evaluate(ctx context.Context, temperature float64) (models.HybridResult, error) {
	if m.engine == nil {
		return models.HybridResult{}, fmt.Errorf("%w: detector not initialized", hybrid.ErrConfiguration)
	}

	result, err := m.engine.Evaluate(ctx, temperature)
	m.metrics.observe(result, err, m.engine.Tracker().Len())
	m.setLastErr(err)
	if err != nil {
		return result, err
	}

	var seq int64
	if m.sink != nil {
		seq, err = m.sink.Append(ctx, result)
		if err != nil {
			m.metrics.sinkErrors.Inc()
			m.logger.Error("failed to record reading", zap.Float64("temperature", temperature), zap.Error(err))
		}
	}
	m.publish(ctx, seq, result)

	if result.HybridAlert {
		m.logger.Warn("hybrid alert raised",
			zap.Float64("temperature", result.Temperature),
			zap.Float64("reconstruction_error", result.ReconstructionError),
			zap.Bool("persistence_alert", result.PersistenceAlert),
			zap.Bool("bounds_breach", result.BoundsBreach),
		)
	}
	return result, nil
}

// Recent implements roles.ReadingHistory.
func (m *Module) Recent(ctx context.Context, limit int) ([]models.StoredReading, error) {
	if m.store == nil {
		return nil, errors.New("reading history is not enabled")
	}
	return m.store.List(ctx, limit)
}

// Window reports the current persistence window.
func (m *Module) Window() models.WindowState {
	if m.engine == nil {
		return models.WindowState{Flags: []bool{}}
	}
	t := m.engine.Tracker()
	flags := t.Snapshot()
	return models.WindowState{
		Capacity: t.Capacity(),
		Size:     len(flags),
		Full:     len(flags) == t.Capacity(),
		Flags:    flags,
		Observed: t.Observed(),
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	win := m.Window()
	details := map[string]string{
		"oracle":          m.oracleLabel(),
		"scaler_loaded":   strconv.FormatBool(m.scalerLoaded()),
		"window_size":     strconv.Itoa(win.Size),
		"window_capacity": strconv.Itoa(win.Capacity),
		"window_full":     strconv.FormatBool(win.Full),
	}

	switch {
	case m.oracle == nil || !m.scalerLoaded():
		return plugin.HealthStatus{Status: "degraded", Message: "model path not configured", Details: details}
	case m.lastError() != nil:
		details["last_error"] = m.lastError().Error()
		return plugin.HealthStatus{Status: "degraded", Message: "last evaluation failed", Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

func (m *Module) scalerLoaded() bool {
	if s, ok := m.scaler.(*scaler.Scaler); ok {
		return s.Loaded()
	}
	return m.scaler != nil
}

func (m *Module) oracleLabel() string {
	if m.oracle == nil {
		return "none"
	}
	return m.oracleName
}

// setLastErr tracks model-path failures only; rejected input says nothing
// about the health of the scaler or oracle.
func (m *Module) setLastErr(err error) {
	var evalErr *hybrid.EvaluationError
	if err != nil && !errors.As(err, &evalErr) {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Module) lastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
