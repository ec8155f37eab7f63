package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/groundscanner/groundscanner/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem and marks the request
// span as failed. http.ErrAbortHandler is re-raised so the server aborts the
// response.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				requestID := GetRequestID(r.Context())
				span := trace.SpanFromContext(r.Context())
				span.RecordError(fmt.Errorf("panic: %v", v))
				span.SetStatus(codes.Error, "panic")

				log.Error().
					Str("request_id", requestID).
					Str("route", RoutePattern(r)).
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				models.NewProblem(models.ProblemInternal, requestID, "an unexpected error occurred").Write(w, r)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
