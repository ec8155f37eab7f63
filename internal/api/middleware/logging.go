package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger writes one access log line per request: error level for 5xx, debug
// for health probes, info otherwise. The request logger, tagged with the
// request and trace ids, is stored in the context for zerolog.Ctx.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lc := log.With().Str("request_id", GetRequestID(r.Context()))
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
			}
			reqLog := lc.Logger()

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(reqLog.WithContext(r.Context())))

			var event *zerolog.Event
			switch {
			case sw.statusCode >= http.StatusInternalServerError:
				event = reqLog.Error()
			case isProbe(r.URL.Path):
				event = reqLog.Debug()
			default:
				event = reqLog.Info()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", RoutePattern(r)).
				Str("session", GetSessionID(r)).
				Int("status", sw.statusCode).
				Int64("bytes", sw.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

func isProbe(path string) bool {
	return strings.HasSuffix(path, "/ops/health") || strings.HasSuffix(path, "/ops/ready")
}
