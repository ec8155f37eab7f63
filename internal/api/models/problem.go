package models

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const problemBase = "https://api.groundscanner.dev/problems/"

// ProblemKind is one entry of the API's error catalogue.
type ProblemKind struct {
	Slug      string
	Title     string
	Status    int
	Retryable bool
}

// URI is the problem type reference written to Problem.Type.
func (k ProblemKind) URI() string {
	return problemBase + k.Slug
}

// The error catalogue. Every error the API writes is one of these.
var (
	ProblemValidation       = ProblemKind{Slug: "validation-error", Title: "Validation error", Status: http.StatusBadRequest}
	ProblemUnauthorized     = ProblemKind{Slug: "unauthorized", Title: "Unauthorized", Status: http.StatusUnauthorized}
	ProblemTLSRequired      = ProblemKind{Slug: "tls-required", Title: "TLS required", Status: http.StatusForbidden}
	ProblemNotFound         = ProblemKind{Slug: "not-found", Title: "Not found", Status: http.StatusNotFound}
	ProblemUnsupportedMedia = ProblemKind{Slug: "unsupported-media-type", Title: "Unsupported media type", Status: http.StatusUnsupportedMediaType}
	ProblemRateLimited      = ProblemKind{Slug: "too-many-requests", Title: "Too many requests", Status: http.StatusTooManyRequests, Retryable: true}
	ProblemInternal         = ProblemKind{Slug: "internal-error", Title: "Internal server error", Status: http.StatusInternalServerError}
	ProblemUnavailable      = ProblemKind{Slug: "service-unavailable", Title: "Service unavailable", Status: http.StatusServiceUnavailable, Retryable: true}
)

// Problem is an RFC 7807 document, written as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`

	// Retryable tells the client the same request may succeed later.
	Retryable bool `json:"retryable,omitempty"`

	// RetryAfter, when positive, is sent as the Retry-After header in whole
	// seconds.
	RetryAfter time.Duration `json:"-"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewProblem fills a Problem from kind.
func NewProblem(kind ProblemKind, traceID, detail string) *Problem {
	return &Problem{
		Type:      kind.URI(),
		Title:     kind.Title,
		Status:    kind.Status,
		Detail:    detail,
		TraceID:   traceID,
		Retryable: kind.Retryable,
	}
}

// WithErrors attaches field errors.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// WithRetryAfter sets the Retry-After hint.
func (p *Problem) WithRetryAfter(d time.Duration) *Problem {
	p.RetryAfter = d
	return p
}

// Write sends the problem as the answer to r. Instance defaults to the
// request path.
func (p *Problem) Write(w http.ResponseWriter, r *http.Request) {
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	if secs := int(p.RetryAfter.Round(time.Second) / time.Second); secs > 0 {
		h.Set("Retry-After", strconv.Itoa(secs))
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
