package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/api/middleware"
	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/api/response"
	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/featureflags"
	"github.com/groundscanner/groundscanner/internal/groundapi"
)

// retryAfter is the hint sent with retryable 503 responses.
const retryAfter = 30 * time.Second

// writeError maps a service error onto a Problem response.
func writeError(w http.ResponseWriter, r *http.Request, fallback zerolog.Logger, err error) {
	log := requestLogger(r, fallback)
	switch {
	case errors.Is(err, comparison.ErrSuperseded):
		response.NoContent(w, r)

	case errors.Is(err, groundapi.ErrNotFound),
		errors.Is(err, fares.ErrNotFound),
		errors.Is(err, comparison.ErrUnknownOption):
		response.Problem(w, r, models.ProblemNotFound, err.Error())

	case errors.Is(err, featureflags.ErrInvalidValue):
		response.Problem(w, r, models.ProblemValidation, err.Error())

	case errors.Is(err, comparison.ErrNoRoute):
		response.Problem(w, r, models.ProblemNotFound, "option has no stop sequence to draw")

	case errors.Is(err, groundapi.ErrUpstreamUnavailable),
		errors.Is(err, groundapi.ErrRateLimited),
		errors.Is(err, comparison.ErrSnapshotMiss),
		errors.Is(err, airports.ErrNotLoaded):
		log.Warn().Err(err).Msg("upstream unavailable")
		response.Unavailable(w, r, "upstream data is temporarily unavailable", retryAfter)

	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("request timed out")
		response.Unavailable(w, r, "upstream did not answer in time", retryAfter)

	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		log.Debug().Msg("request canceled")

	default:
		log.Error().Err(err).Msg("request failed")
		response.Problem(w, r, models.ProblemInternal, "an unexpected error occurred")
	}
}

// writeFieldErrors answers 400 when errs is non-empty and reports whether it did.
func writeFieldErrors(w http.ResponseWriter, r *http.Request, errs fieldErrors) bool {
	if len(errs) == 0 {
		return false
	}
	response.Invalid(w, r, "invalid request parameters", errs)
	return true
}

// requestLogger returns the logger the access log middleware stored for r,
// or fallback tagged with the request id when r did not pass through it.
func requestLogger(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := fallback.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()
	return &l
}
