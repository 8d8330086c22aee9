package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/internal/testutil"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEvaluator struct {
	result models.HybridResult
	err    error
	got    []float64
}

func (s *stubEvaluator) Evaluate(_ context.Context, t float64) (models.HybridResult, error) {
	s.got = append(s.got, t)
	return s.result, s.err
}

func request(method, body string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{RawPath: "/predict", Body: body}
	req.RequestContext.HTTP.Method = method
	return req
}

func TestHandle_Success(t *testing.T) {
	ev := &stubEvaluator{result: testutil.NewResult(testutil.WithTemperature(-20))}
	h := &handler{evaluator: ev, logger: zap.NewNop()}

	resp, err := h.handle(context.Background(), request(http.MethodPost, `{"temperature": -20}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var got models.HybridResult
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	assert.Equal(t, ev.result, got)
	assert.Equal(t, []float64{-20}, ev.got)
}

func TestHandle_Base64Body(t *testing.T) {
	ev := &stubEvaluator{result: testutil.NewResult()}
	h := &handler{evaluator: ev, logger: zap.NewNop()}

	req := request(http.MethodPost, base64.StdEncoding.EncodeToString([]byte(`-19.5`)))
	req.IsBase64Encoded = true
	resp, err := h.handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []float64{-19.5}, ev.got)
}

func TestHandle_Errors(t *testing.T) {
	modelDown := &hybrid.EvaluationError{
		Stage:   hybrid.StageReconstruct,
		Kind:    hybrid.ErrOracle,
		Err:     errors.New("connection refused"),
		Partial: hybrid.Partial{Temperature: -12, BoundsBreach: true},
	}
	tests := []struct {
		name       string
		req        events.APIGatewayV2HTTPRequest
		evalErr    error
		wantStatus int
		wantCalled bool
	}{
		{name: "bad json", req: request(http.MethodPost, `{"temperature":`), wantStatus: http.StatusBadRequest},
		{name: "missing field", req: request(http.MethodPost, `{}`), wantStatus: http.StatusBadRequest},
		{name: "bad base64", req: events.APIGatewayV2HTTPRequest{Body: "%%%", IsBase64Encoded: true}, wantStatus: http.StatusBadRequest},
		{name: "wrong method", req: request(http.MethodGet, ""), wantStatus: http.StatusMethodNotAllowed},
		{name: "model unavailable", req: request(http.MethodPost, `-12`), evalErr: modelDown, wantStatus: http.StatusServiceUnavailable, wantCalled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &stubEvaluator{err: tt.evalErr}
			h := &handler{evaluator: ev, logger: zap.NewNop()}

			resp, err := h.handle(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Headers["Content-Type"])
			assert.Equal(t, tt.wantCalled, len(ev.got) > 0)

			var p detector.Problem
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &p))
			assert.Equal(t, tt.wantStatus, p.Status)
		})
	}
}

func TestNewDetector_FromEnv(t *testing.T) {
	t.Setenv("CG_CONFIG", "")
	t.Setenv("CG_PLUGINS_DETECTOR_MIN_TEMP", "-30")
	t.Setenv("CG_PLUGINS_DETECTOR_PERSISTENCE_WINDOW_SIZE", "3")

	det, err := newDetector(context.Background(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, det.Window().Capacity)
}
