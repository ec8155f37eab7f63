package resilience

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status summarises an upstream for the ops endpoints.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Health is a point-in-time view of one upstream. Zero times mean the event
// has not happened since start.
type Health struct {
	Name                string
	State               gobreaker.State
	Counts              gobreaker.Counts
	LastSuccess         time.Time
	LastFailure         time.Time
	LastError           string
	ConsecutiveFailures int
}

// Status maps the circuit state: open is unhealthy, half-open is degraded.
// A closed circuit whose latest calls failed is degraded as well.
func (h Health) Status() Status {
	switch {
	case h.State == gobreaker.StateOpen:
		return StatusUnhealthy
	case h.State == gobreaker.StateHalfOpen, h.ConsecutiveFailures > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Registry tracks upstream clients and their latest outcomes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	client      *Client
	lastSuccess time.Time
	lastFailure time.Time
	lastError   string
	failures    int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry), now: time.Now}
}

// Register adds or replaces the client under name, clearing its history.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{client: client}
}

// Record stores the outcome of one call: success when err is nil. Unknown
// names are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	now := r.now()
	if err == nil {
		e.lastSuccess = now
		e.failures = 0
		return
	}
	e.lastFailure = now
	e.lastError = err.Error()
	e.failures++
}

// Health returns the view of one upstream.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Health{}, false
	}
	return e.health(name), true
}

// Snapshot returns every upstream ordered by name.
func (r *Registry) Snapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Health, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.health(name))
	}
	slices.SortFunc(out, func(a, b Health) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func (e *entry) health(name string) Health {
	return Health{
		Name:                name,
		State:               e.client.CircuitBreakerState(),
		Counts:              e.client.CircuitBreakerCounts(),
		LastSuccess:         e.lastSuccess,
		LastFailure:         e.lastFailure,
		LastError:           e.lastError,
		ConsecutiveFailures: e.failures,
	}
}
