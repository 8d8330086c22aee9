package detector

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"go.uber.org/zap"
)

const maxReadingBody = 4 << 10

// Problem is an RFC 7807 body extended with the partial bounds verdict
// when the model path fails after the reading was accepted.
type Problem struct {
	Type         string   `json:"type" example:"https://coldguard.dev/problems/model-unavailable"`
	Title        string   `json:"title" example:"Service Unavailable"`
	Status       int      `json:"status" example:"503"`
	Detail       string   `json:"detail,omitempty" example:"oracle: reconstruct: context deadline exceeded"`
	Instance     string   `json:"instance,omitempty" example:"/predict"`
	Stage        string   `json:"stage,omitempty" example:"reconstruct"`
	Temperature  *float64 `json:"temperature,omitempty" example:"-12.5"`
	BoundsBreach *bool    `json:"bounds_breach,omitempty" example:"true"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/evaluate", Handler: m.handleEvaluate},
		{Method: "GET", Path: "/readings", Handler: m.handleListReadings},
		{Method: "GET", Path: "/readings/summary", Handler: m.handleSummary},
		{Method: "GET", Path: "/window", Handler: m.handleWindow},
	}
}

// RegisterRoutes mounts the unversioned POST /predict alias used by existing sensor gateways.
func (m *Module) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", m.handleEvaluate)
}

// handleEvaluate runs one reading through the hybrid pipeline.
//
//	@Summary		Evaluate reading
//	@Description	Scores a temperature reading and returns the hybrid alert decision. Also served at POST /predict.
//	@Tags			detector
//	@Accept			json
//	@Produce		json
//	@Param			reading body models.ReadingRequest true "Temperature reading"
//	@Success		200 {object} models.HybridResult
//	@Failure		400 {object} Problem
//	@Failure		503 {object} Problem
//	@Router			/detector/evaluate [post]
func (m *Module) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReadingBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	temperature, err := ParseReading(body)
	var result models.HybridResult
	if err == nil {
		result, err = m.Evaluate(r.Context(), temperature)
	}

	status, payload := Response(result, err)
	if p, ok := payload.(*Problem); ok {
		p.Instance = r.URL.Path
		m.logger.Warn("reading rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeJSONType(w, status, "application/problem+json", p)
		return
	}
	writeJSON(w, status, payload)
}

// Response maps an evaluation outcome to an HTTP status and body. Success
// yields the HybridResult; failures yield a *Problem.
func Response(result models.HybridResult, err error) (int, any) {
	if err == nil {
		return http.StatusOK, result
	}

	var evalErr *hybrid.EvaluationError
	if errors.As(err, &evalErr) {
		t, breach := evalErr.Partial.Temperature, evalErr.Partial.BoundsBreach
		return http.StatusServiceUnavailable, &Problem{
			Type:         problemBase + "model-unavailable",
			Title:        http.StatusText(http.StatusServiceUnavailable),
			Status:       http.StatusServiceUnavailable,
			Detail:       err.Error(),
			Stage:        string(evalErr.Stage),
			Temperature:  &t,
			BoundsBreach: &breach,
		}
	}

	if errors.Is(err, hybrid.ErrInvalidInput) {
		return http.StatusBadRequest, &Problem{
			Type:   problemBase + "bad-request",
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		}
	}

	return http.StatusInternalServerError, &Problem{
		Type:   problemBase + "internal-error",
		Title:  http.StatusText(http.StatusInternalServerError),
		Status: http.StatusInternalServerError,
		Detail: err.Error(),
	}
}

// handleListReadings returns recorded readings, newest first.
//
//	@Summary		List readings
//	@Description	Returns the most recent evaluated readings.
//	@Tags			detector
//	@Produce		json
//	@Param			limit query int false "Maximum results" default(20)
//	@Success		200 {array} models.StoredReading
//	@Failure		503 {object} Problem
//	@Router			/detector/readings [get]
func (m *Module) handleListReadings(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "reading history is not enabled")
		return
	}
	readings, err := m.store.List(r.Context(), parseLimit(r, 20))
	if err != nil {
		m.logger.Error("failed to list readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}
	if readings == nil {
		readings = []models.StoredReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleSummary returns aggregate alert counts.
//
//	@Summary		Reading summary
//	@Description	Returns totals per signal and the latest reading.
//	@Tags			detector
//	@Produce		json
//	@Success		200 {object} models.ReadingSummary
//	@Failure		503 {object} Problem
//	@Router			/detector/readings/summary [get]
func (m *Module) handleSummary(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "reading history is not enabled")
		return
	}
	sum, err := m.store.Summary(r.Context())
	if err != nil {
		m.logger.Error("failed to summarize readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to summarize readings")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleWindow returns the current persistence window.
//
//	@Summary		Persistence window
//	@Description	Returns the raw-anomaly flags currently in the persistence window, oldest first.
//	@Tags			detector
//	@Produce		json
//	@Success		200 {object} models.WindowState
//	@Router			/detector/window [get]
func (m *Module) handleWindow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.Window())
}

const problemBase = "https://coldguard.dev/problems/"

func writeJSON(w http.ResponseWriter, status int, v any) {
	writeJSONType(w, status, "application/json", v)
}

func writeJSONType(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSONType(w, status, "application/problem+json", &Problem{
		Type:   problemBase + strconv.Itoa(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
