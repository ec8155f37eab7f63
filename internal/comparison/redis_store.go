package comparison

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore shares snapshots between processes through Redis.
// Values are JSON under "groundscanner:snapshot:<key>".
type RedisSnapshotStore struct {
	cache *cache.Cache[string]
}

// NewRedisSnapshotStore creates a store on client. A zero ttl uses DefaultSnapshotTTL.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))
	return &RedisSnapshotStore{cache: cache.New[string](redisStore)}
}

func redisKey(key string) string {
	return "groundscanner:snapshot:" + key
}

// Get returns the live snapshot for key.
func (r *RedisSnapshotStore) Get(ctx context.Context, key string) (*Snapshot, error) {
	value, err := r.cache.Get(ctx, redisKey(key))
	if err != nil {
		if errors.Is(err, store.NotFound{}) || errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotMiss
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", key, err)
	}

	var s Snapshot
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", key, err)
	}
	return &s, nil
}

// Set stores s under its query key.
func (r *RedisSnapshotStore) Set(ctx context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", s.Key(), err)
	}
	return r.cache.Set(ctx, redisKey(s.Key()), string(data))
}

// Name returns "redis".
func (r *RedisSnapshotStore) Name() string { return "redis" }

// Ensure both stores implement SnapshotStore.
var (
	_ SnapshotStore = (*RedisSnapshotStore)(nil)
	_ SnapshotStore = (*MemorySnapshotStore)(nil)
)
