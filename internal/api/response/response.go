// Package response writes API responses tagged with the request id.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/groundscanner/groundscanner/internal/api/middleware"
	"github.com/groundscanner/groundscanner/internal/api/models"
)

// JSON writes data as a JSON body with the given status. A nil data writes
// the status alone.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	tagRequest(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	tagRequest(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Problem writes a problem of kind.
func Problem(w http.ResponseWriter, r *http.Request, kind models.ProblemKind, detail string) {
	newProblem(r, kind, detail).Write(w, r)
}

// Invalid writes a validation problem listing errs.
func Invalid(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	newProblem(r, models.ProblemValidation, detail).WithErrors(errs).Write(w, r)
}

// Unavailable writes a retryable 503 with a Retry-After hint.
func Unavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfter time.Duration) {
	newProblem(r, models.ProblemUnavailable, detail).WithRetryAfter(retryAfter).Write(w, r)
}

func newProblem(r *http.Request, kind models.ProblemKind, detail string) *models.Problem {
	return models.NewProblem(kind, middleware.GetRequestID(r.Context()), detail)
}

func tagRequest(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}
