package detector

import (
	"context"
	"errors"
	"time"

	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation outcomes used as the "outcome" label.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid_input"
	outcomeScaling  = "scaling_error"
	outcomeOracle   = "oracle_error"
	outcomeCanceled = "canceled"
)

type metrics struct {
	evaluated      *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	reconError     prometheus.Histogram
	oracleDuration *prometheus.HistogramVec
	windowFill     prometheus.Gauge
	sinkErrors     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		evaluated: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coldguard",
			Name:      "readings_evaluated_total",
			Help:      "Readings processed by the detector, by outcome.",
		}, []string{"outcome"})),
		alerts: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coldguard",
			Name:      "alerts_total",
			Help:      "Positive signals raised per evaluated reading, by kind.",
		}, []string{"kind"})),
		reconError: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coldguard",
			Name:      "reconstruction_error",
			Help:      "Absolute reconstruction error of evaluated readings.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1, 2, 5},
		})),
		oracleDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coldguard",
			Name:      "oracle_duration_seconds",
			Help:      "Latency of reconstruction oracle calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"})),
		windowFill: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coldguard",
			Name:      "persistence_window_fill",
			Help:      "Entries currently held in the persistence window.",
		})),
		sinkErrors: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coldguard",
			Name:      "reading_sink_errors_total",
			Help:      "Evaluated readings that could not be recorded.",
		})),
	}
}

// register adds c to reg, reusing an identical collector that is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) observe(r models.HybridResult, err error, window int) {
	m.windowFill.Set(float64(window))
	if err != nil {
		m.evaluated.WithLabelValues(outcomeFor(err)).Inc()
		return
	}
	m.evaluated.WithLabelValues(outcomeOK).Inc()
	m.reconError.Observe(r.ReconstructionError)
	for kind, on := range map[string]bool{
		"raw":         r.RawAnomaly,
		"persistence": r.PersistenceAlert,
		"bounds":      r.BoundsBreach,
		"hybrid":      r.HybridAlert,
	} {
		if on {
			m.alerts.WithLabelValues(kind).Inc()
		}
	}
}

func outcomeFor(err error) string {
	var evalErr *hybrid.EvaluationError
	switch {
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.As(err, &evalErr) && errors.Is(evalErr.Kind, hybrid.ErrScaling):
		return outcomeScaling
	case errors.As(err, &evalErr):
		return outcomeOracle
	default:
		return outcomeInvalid
	}
}

// timedOracle records call latency around another oracle.
type timedOracle struct {
	next     hybrid.Oracle
	duration *prometheus.HistogramVec
}

func (o timedOracle) Reconstruct(ctx context.Context, scaled float64) (float64, error) {
	start := time.Now()
	v, err := o.next.Reconstruct(ctx, scaled)
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.duration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return v, err
}
