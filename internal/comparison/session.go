package comparison

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a request that a newer request of the same
// session replaced before it completed.
var ErrSuperseded = errors.New("comparison superseded by a newer query")

// Session serializes the queries of one client. Only the latest query is
// answered: starting a query cancels the one in flight, and a completion
// whose generation is no longer current is discarded.
type Session struct {
	svc *Service

	mu         sync.Mutex
	generation uint64
	key        string
	cancel     context.CancelFunc
	lastUsed   time.Time
}

// NewSession creates a session on svc.
func NewSession(svc *Service) *Session {
	return &Session{svc: svc, lastUsed: time.Now()}
}

// Compare runs q as the session's current query.
func (s *Session) Compare(ctx context.Context, q Query) (*Result, error) {
	ctx, gen := s.begin(ctx, q.Key())
	defer s.end(gen)

	res, err := s.svc.Compare(ctx, q)
	if !s.current(gen) {
		return nil, ErrSuperseded
	}
	return res, err
}

// Generation returns the generation of the latest query.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Key returns the query key of the latest query.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *Session) begin(parent context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.key = key
	s.cancel = cancel
	s.lastUsed = time.Now()
	return ctx, s.generation
}

func (s *Session) end(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Sessions keeps one Session per client id and evicts idle ones.
type Sessions struct {
	svc     *Service
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	lastScan time.Time
}

// NewSessions creates a registry. A zero idleTTL keeps sessions for 30 minutes.
func NewSessions(svc *Service, idleTTL time.Duration) *Sessions {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Sessions{
		svc:      svc,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session of id, creating it if needed.
func (r *Sessions) Get(id string) *Session {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastScan) > r.idleTTL {
		for k, s := range r.sessions {
			if now.Sub(s.idleSince()) > r.idleTTL {
				delete(r.sessions, k)
			}
		}
		r.lastScan = now
	}

	s, ok := r.sessions[id]
	if !ok {
		s = NewSession(r.svc)
		r.sessions[id] = s
	}
	return s
}

// Len returns the number of tracked sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
