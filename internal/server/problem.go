package server

import (
	"encoding/json"
	"net/http"
)

// Problem type URIs served by the platform itself. Detector failures use
// their own types, see detector.Problem.
const (
	problemBase            = "https://coldguard.dev/problems/"
	ProblemTypeNotFound    = problemBase + "not-found"
	ProblemTypeInternal    = problemBase + "internal-error"
	ProblemTypeRateLimited = problemBase + "rate-limited"
	ProblemTypeTooLarge    = problemBase + "payload-too-large"
)

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type      string `json:"type" example:"https://coldguard.dev/problems/not-found"`
	Title     string `json:"title" example:"Not Found"`
	Status    int    `json:"status" example:"404"`
	Detail    string `json:"detail,omitempty" example:"no route for GET /api/v1/sensors"`
	Instance  string `json:"instance,omitempty" example:"/api/v1/sensors"`
	RequestID string `json:"request_id,omitempty" example:"4b7f0e0c-9c1e-4a8e-bb3f-6a0d8f0c2d11"`
}

// WriteProblem writes p as application/problem+json. A blank Title is
// filled from the status code. The request ID is copied from the response
// header set by RequestIDMiddleware.
func WriteProblem(w http.ResponseWriter, p Problem) {
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if p.RequestID == "" {
		p.RequestID = w.Header().Get("X-Request-ID")
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{Type: ProblemTypeNotFound, Status: http.StatusNotFound, Detail: detail, Instance: instance})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
	})
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{Type: ProblemTypeRateLimited, Status: http.StatusTooManyRequests, Detail: detail, Instance: instance})
}
