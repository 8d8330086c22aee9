package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "sensor-gw-42"},
		{name: "oversized replaced", incoming: strings.Repeat("x", 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))

			req := httptest.NewRequest("POST", "/predict", http.NoBody)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tt.name == "propagated" && got != tt.incoming {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.incoming)
			}
			if tt.name != "propagated" {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("generated ID %q is not a UUID: %v", got, err)
				}
			}
		})
	}
}

func TestLoggingMiddleware_SkipsOperationalPaths(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := LoggingMiddleware(zap.New(core), nil, []string{"/healthz"})(okHandler(http.StatusCreated))

	for _, path := range []string{"/healthz", "/api/v1/detector/evaluate"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", path, http.NoBody))
		if w.Code != http.StatusCreated {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d requests, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["path"]; got != "/api/v1/detector/evaluate" {
		t.Errorf("logged path = %v", got)
	}
}

func TestHeaderMiddlewares(t *testing.T) {
	handler := Chain(okHandler(http.StatusOK), SecurityHeadersMiddleware, VersionHeaderMiddleware)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", http.NoBody))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
	if w.Header().Get("X-Coldguard-Version") == "" {
		t.Error("missing X-Coldguard-Version")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("oracle client nil")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/predict", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{RPS: 0.25, Burst: 1}, false, []string{"/healthz"})(okHandler(http.StatusOK))

	do := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", path, http.NoBody)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := do("/predict", "10.0.0.1:1000"); w.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", w.Code)
	}
	w := do("/predict", "10.0.0.1:1001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "4" {
		t.Errorf("Retry-After = %q, want 4", got)
	}
	if w := do("/predict", "10.0.0.2:1000"); w.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", w.Code)
	}
	for i := 0; i < 5; i++ {
		if w := do("/healthz", "10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("skipped path request %d = %d", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{}, false, nil)(okHandler(http.StatusOK))
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/predict", http.NoBody))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
}

func TestClientLimiter_SweepsIdleClients(t *testing.T) {
	l := newClientLimiter(rate.Limit(1), 1)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.allow("10.0.0.1")
	now = now.Add(time.Hour)
	l.allow("10.0.0.2")

	l.mu.Lock()
	l.sweep(now)
	_, stale := l.clients["10.0.0.1"]
	_, fresh := l.clients["10.0.0.2"]
	l.mu.Unlock()
	if stale || !fresh {
		t.Errorf("after sweep stale=%v fresh=%v", stale, fresh)
	}
}

func TestLoggingMiddleware_MetricsUseRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newHTTPMetrics(reg)
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/detector/readings", okHandler(http.StatusOK))
	handler := LoggingMiddleware(zap.NewNop(), m, nil)(mux)

	for _, q := range []string{"?limit=5", "?limit=10", ""} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/detector/readings"+q, http.NoBody))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/random/path", http.NoBody))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /api/v1/detector/readings", "200")); got != 3 {
		t.Errorf("route counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched counter = %v, want 1", got)
	}

	// A second server in the same process reuses the collectors.
	if again := newHTTPMetrics(reg); again.requests != m.requests {
		t.Error("duplicate registration did not reuse the existing collector")
	}
}

func TestLoggingMiddleware_ServerErrorsWarn(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := LoggingMiddleware(zap.New(core), nil, nil)(okHandler(http.StatusServiceUnavailable))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/predict", http.NoBody))

	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestBodyLimitMiddleware(t *testing.T) {
	var readErr error
	handler := BodyLimitMiddleware(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/predict", strings.NewReader(`{"temperature":-20}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("declared oversize body = %d, want 413", w.Code)
	}

	// Unknown length is caught while reading.
	req := httptest.NewRequest("POST", "/predict", io.NopCloser(strings.NewReader(strings.Repeat("9", 64))))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil {
		t.Error("streamed oversize body read without error")
	}

	readErr = nil
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/predict", strings.NewReader(`{"t":-20}`)))
	if readErr != nil {
		t.Errorf("small body: %v", readErr)
	}
}

func TestWriteProblem_FillsTitleAndRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req-7")
	NotFound(w, "no route", "/nope")

	var p Problem
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Title != "Not Found" || p.RequestID != "req-7" || p.Type != ProblemTypeNotFound || p.Status != 404 {
		t.Errorf("problem = %+v", p)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(http.StatusOK), mark("outer"), mark("inner")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v", order)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, xff string
		trust       bool
		want        string
	}{
		{remote: "192.168.1.100:12345", want: "192.168.1.100"},
		{remote: "10.0.0.1:80", xff: "203.0.113.50, 10.0.0.1", trust: true, want: "203.0.113.50"},
		{remote: "10.0.0.1:80", xff: "203.0.113.50", want: "10.0.0.1"},
		{remote: "10.0.0.1:80", xff: " , 10.0.0.9", trust: true, want: "10.0.0.1"},
		{remote: "not-a-hostport", want: "not-a-hostport"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", http.NoBody)
		req.RemoteAddr = tt.remote
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := clientIP(req, tt.trust); got != tt.want {
			t.Errorf("clientIP(%q, %q, %v) = %q, want %q", tt.remote, tt.xff, tt.trust, got, tt.want)
		}
	}
}

func TestStatusWriter_FirstWriteHeaderWins(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	sw.WriteHeader(http.StatusServiceUnavailable)
	sw.WriteHeader(http.StatusOK)
	if sw.status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", sw.status)
	}
}

func TestStatusWriter_CountsAndUnwraps(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	_, _ = sw.Write([]byte("hello"))
	if sw.written != 5 {
		t.Errorf("written = %d", sw.written)
	}
	// ResponseController finds the recorder's Flush through Unwrap.
	if err := http.NewResponseController(sw).Flush(); err != nil {
		t.Errorf("Flush through statusWriter: %v", err)
	}
	if !rec.Flushed {
		t.Error("recorder not flushed")
	}
}
