// Package oracle provides remote reconstruction models behind the
// hybrid.Oracle interface.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Oracle kinds selectable from configuration.
const (
	KindHTTP      = "http"
	KindSageMaker = "sagemaker"
)

// ErrNotConfigured is returned by New when no oracle kind is set.
var ErrNotConfigured = errors.New("reconstruction oracle not configured")

// Config selects and configures the reconstruction oracle.
type Config struct {
	Kind     string        `mapstructure:"kind"`
	URL      string        `mapstructure:"url"`      // http: model predict endpoint
	Endpoint string        `mapstructure:"endpoint"` // sagemaker: endpoint name
	Region   string        `mapstructure:"region"`   // sagemaker: AWS region
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns an unconfigured oracle with a 2s transport timeout.
func DefaultConfig() Config {
	return Config{
		Region:  "eu-west-1",
		Timeout: 2 * time.Second,
	}
}

// Reconstructor is implemented by every oracle in this package.
type Reconstructor interface {
	Reconstruct(ctx context.Context, scaled float64) (float64, error)
	Name() string
}

// New builds the oracle named by cfg.Kind.
func New(cfg Config, logger *zap.Logger) (Reconstructor, error) {
	switch cfg.Kind {
	case KindHTTP:
		o, err := NewHTTPOracle(cfg, logger)
		if err != nil {
			return nil, err
		}
		return o, nil
	case KindSageMaker:
		o, err := NewSageMakerOracle(cfg, nil, logger)
		if err != nil {
			return nil, err
		}
		return o, nil
	case "":
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("unknown oracle kind %q", cfg.Kind)
	}
}

// predictRequest is the TensorFlow-Serving row format for a single
// one-step, one-feature sequence.
type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

func encodeRequest(scaled float64) ([]byte, error) {
	return json.Marshal(predictRequest{Instances: [][][]float64{{{scaled}}}})
}

// decodePrediction extracts the first scalar from a predict response.
// Accepted shapes: {"predictions": <nested>}, or a bare nested array or number.
func decodePrediction(body []byte) (float64, error) {
	var wrapped struct {
		Predictions json.RawMessage `json:"predictions"`
	}
	raw := json.RawMessage(body)
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Predictions) > 0 {
		raw = wrapped.Predictions
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	return firstScalar(v)
}

func firstScalar(v any) (float64, error) {
	for {
		switch t := v.(type) {
		case float64:
			return t, nil
		case []any:
			if len(t) == 0 {
				return 0, fmt.Errorf("empty prediction")
			}
			v = t[0]
		default:
			return 0, fmt.Errorf("unexpected prediction type %T", v)
		}
	}
}
