package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// HTTPOracle calls a TensorFlow-Serving compatible REST predict endpoint,
// e.g. http://localhost:8501/v1/models/lstm_autoencoder:predict.
type HTTPOracle struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPOracle validates cfg.URL and returns an oracle for it.
func NewHTTPOracle(cfg Config, logger *zap.Logger) (*HTTPOracle, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http oracle: url is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse oracle url %q: %w", cfg.URL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPOracle{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Name implements Reconstructor.
func (o *HTTPOracle) Name() string { return KindHTTP }

// Reconstruct implements hybrid.Oracle.
func (o *HTTPOracle) Reconstruct(ctx context.Context, scaled float64) (float64, error) {
	body, err := encodeRequest(scaled)
	if err != nil {
		return 0, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read predict response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("predict endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	v, err := decodePrediction(respBody)
	if err != nil {
		return 0, err
	}
	o.logger.Debug("reconstruction received",
		zap.Float64("scaled", scaled),
		zap.Float64("reconstruction", v),
	)
	return v, nil
}
