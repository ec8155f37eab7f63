package middleware

import (
	"net/http"
	"strings"

	"github.com/groundscanner/groundscanner/internal/api/models"
)

// securityHeaders are set on every response. The API only serves JSON, so
// the content policy forbids everything.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders sets the hardening headers before the handler runs, so a
// handler may still override one.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests the load balancer reports as plain HTTP in
// X-Forwarded-Proto. Requests without the header reach the pod directly, as
// health probes do, and pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && !strings.EqualFold(proto, "https") {
				models.NewProblem(models.ProblemTLSRequired, GetRequestID(r.Context()),
					"This endpoint requires HTTPS").Write(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
