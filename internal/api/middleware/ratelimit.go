package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/groundscanner/groundscanner/internal/api/models"
)

// RateLimitConfig is a fixed request budget per client and window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration

	// BySession keys the budget on SessionHeader, falling back to the client
	// IP for requests without one.
	BySession bool
}

// Budgets used by the router.
var (
	// AdminRateLimit guards the ops endpoints.
	AdminRateLimit = RateLimitConfig{Requests: 10, Window: time.Minute}

	// ComparisonRateLimit guards endpoints that may reach the upstream. A
	// client's budget follows its session across IPs.
	ComparisonRateLimit = RateLimitConfig{Requests: 30, Window: time.Minute, BySession: true}

	// LookupRateLimit guards directory and fare lookups.
	LookupRateLimit = RateLimitConfig{Requests: 100, Window: time.Minute}
)

// RateLimit returns a limiter for cfg. Rejected requests get a 429 problem
// with Retry-After set to the window, since httprate does not expose the
// exact reset time.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	key := httprate.KeyByRealIP
	if cfg.BySession {
		key = keyBySessionOrIP
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			models.NewProblem(models.ProblemRateLimited, GetRequestID(r.Context()),
				"request budget for this client is spent").
				WithRetryAfter(cfg.Window).
				Write(w, r)
		}),
	)
}

// SessionHeader carries the client's comparison session id.
const SessionHeader = "X-Client-Session"

// GetSessionID returns the client session id of r, or "" when absent.
// Ids longer than 128 bytes are ignored.
func GetSessionID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if len(id) > 128 {
		return ""
	}
	return id
}

func keyBySessionOrIP(r *http.Request) (string, error) {
	if id := GetSessionID(r); id != "" {
		return "session:" + id, nil
	}
	return httprate.KeyByRealIP(r)
}
