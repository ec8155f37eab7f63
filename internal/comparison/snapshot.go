package comparison

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// ErrSnapshotMiss is returned by a SnapshotStore that holds no live snapshot
// for a key.
var ErrSnapshotMiss = errors.New("snapshot not found")

// DefaultSnapshotTTL is how long a fetched result set is reused.
const DefaultSnapshotTTL = 10 * time.Minute

// Snapshot is one point-in-time upstream result set. The raw records are kept
// so normalization rules can change without invalidating stored snapshots.
type Snapshot struct {
	Airport    string             `json:"airport"`
	Passengers int                `json:"passengers"`
	Records    []transport.Record `json:"records"`
	FetchedAt  time.Time          `json:"fetchedAt"`
}

// Key returns the query key of the snapshot.
func (s *Snapshot) Key() string {
	return QueryKey(s.Airport, s.Passengers)
}

// QueryKey identifies a result set: "AIRPORT:passengers".
func QueryKey(airport string, passengers int) string {
	return fmt.Sprintf("%s:%d", strings.ToUpper(strings.TrimSpace(airport)), passengers)
}

// SnapshotStore keeps snapshots by query key.
type SnapshotStore interface {
	// Get returns the live snapshot for key or ErrSnapshotMiss.
	Get(ctx context.Context, key string) (*Snapshot, error)

	// Set stores s under s.Key().
	Set(ctx context.Context, s *Snapshot) error

	// Name identifies the store in logs and metrics.
	Name() string
}

// MemorySnapshotStore is an in-process SnapshotStore with a fixed TTL.
type MemorySnapshotStore struct {
	ttl time.Duration
	now func() time.Time

	mu              sync.RWMutex
	entries         map[string]*cachedSnapshot
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type cachedSnapshot struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// NewMemorySnapshotStore creates a store. A zero ttl uses DefaultSnapshotTTL.
func NewMemorySnapshotStore(ttl time.Duration) *MemorySnapshotStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &MemorySnapshotStore{
		ttl:             ttl,
		now:             time.Now,
		entries:         make(map[string]*cachedSnapshot),
		cleanupInterval: 5 * time.Minute,
	}
}

// Get returns the live snapshot for key.
func (m *MemorySnapshotStore) Get(_ context.Context, key string) (*Snapshot, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.now().Before(entry.expiresAt) {
		return nil, ErrSnapshotMiss
	}
	return entry.snapshot, nil
}

// Set stores s until the TTL elapses.
func (m *MemorySnapshotStore) Set(_ context.Context, s *Snapshot) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[s.Key()] = &cachedSnapshot{snapshot: s, expiresAt: now.Add(m.ttl)}
	if now.Sub(m.lastCleanup) > m.cleanupInterval {
		for k, e := range m.entries {
			if !now.Before(e.expiresAt) {
				delete(m.entries, k)
			}
		}
		m.lastCleanup = now
	}
	return nil
}

// Name returns "memory".
func (m *MemorySnapshotStore) Name() string { return "memory" }

// Len returns the number of stored entries, live or not yet swept.
func (m *MemorySnapshotStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
