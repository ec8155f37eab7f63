package featureflags

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	// Repository stores overrides. Defaults to an in-memory repository.
	Repository Repository

	// CacheTTL is how long a loaded flag set is served before it is re-read
	// (default: 1 minute).
	CacheTTL time.Duration

	// DefaultFlags fill keys without a stored value. Defaults to DefaultFlags().
	DefaultFlags map[string]*Flag

	Logger zerolog.Logger
}

// Service evaluates flags. It reads the whole flag set from the repository
// at most once per CacheTTL, keeps serving the last good set while the
// repository fails, and falls back to the defaults when it never loaded one.
type Service struct {
	repo     Repository
	ttl      time.Duration
	defaults map[string]*Flag
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	current  map[string]*Flag
	loadedAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	defaults := cfg.DefaultFlags
	if defaults == nil {
		defaults = DefaultFlags()
	}
	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepositoryWithFlags(defaults)
	}
	return &Service{
		repo:     repo,
		ttl:      ttl,
		defaults: defaults,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Get returns the flag under key, or nil for an unknown key.
func (s *Service) Get(ctx context.Context, key string) *Flag {
	return s.snapshot(ctx)[key]
}

// All returns every flag, defaults included, ordered by key.
func (s *Service) All(ctx context.Context) []*Flag {
	set := s.snapshot(ctx)
	out := make([]*Flag, 0, len(set))
	for _, f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Update validates and stores values in one write. by names the actor and is
// kept with each flag. Nothing is stored when any value is invalid.
func (s *Service) Update(ctx context.Context, by string, values map[string]interface{}) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	flags := make([]*Flag, 0, len(keys))
	for _, key := range keys {
		if err := Validate(key, values[key]); err != nil {
			return err
		}
		flags = append(flags, &Flag{Key: key, Value: values[key], UpdatedBy: by})
	}
	if err := s.repo.Save(ctx, flags...); err != nil {
		return fmt.Errorf("saving flags: %w", err)
	}
	s.Invalidate()
	return nil
}

// Invalidate drops the loaded set so the next read goes to the repository.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedAt = time.Time{}
}

// Enabled reports whether a boolean flag is on. Unknown keys are off.
func (s *Service) Enabled(ctx context.Context, key string) bool {
	return s.Get(ctx, key).BoolValue(false)
}

func (s *Service) snapshot(ctx context.Context) map[string]*Flag {
	s.mu.RLock()
	current, loadedAt := s.current, s.loadedAt
	s.mu.RUnlock()

	if current != nil && s.now().Sub(loadedAt) < s.ttl {
		return current
	}

	stored, err := s.repo.List(ctx)
	if err != nil {
		if current != nil {
			s.logger.Warn().Err(err).Msg("feature flag reload failed, serving last loaded set")
			return current
		}
		s.logger.Warn().Err(err).Msg("feature flags unavailable, serving defaults")
		return s.defaults
	}

	set := make(map[string]*Flag, len(s.defaults)+len(stored))
	for key, f := range s.defaults {
		set[key] = f
	}
	for _, f := range stored {
		set[f.Key] = f
	}

	s.mu.Lock()
	s.current, s.loadedAt = set, s.now()
	s.mu.Unlock()
	return set
}

// The accessors below are safe on a nil Service and then report defaults.

// HidesSponsored reports whether sponsored options are removed from results.
func (s *Service) HidesSponsored(ctx context.Context) bool {
	return s != nil && s.Enabled(ctx, FlagHideSponsored)
}

// IsCachedOnly reports whether comparisons must be served from stored snapshots.
func (s *Service) IsCachedOnly(ctx context.Context) bool {
	return s != nil && s.Enabled(ctx, FlagCachedOnlySnapshots)
}

// FareBadgesDisabled reports whether payment badges are suppressed.
func (s *Service) FareBadgesDisabled(ctx context.Context) bool {
	return s != nil && s.Enabled(ctx, FlagDisableFareBadges)
}

// DisabledModes returns the transport modes switched off at runtime.
// Unknown mode names are ignored.
func (s *Service) DisabledModes(ctx context.Context) map[transport.Mode]bool {
	out := map[transport.Mode]bool{}
	if s == nil {
		return out
	}
	for _, name := range s.Get(ctx, FlagDisabledModes).ListValue() {
		if m := transport.Mode(name); m.Valid() {
			out[m] = true
		}
	}
	return out
}

// EmissionMethod returns the runtime emission method override, or fallback
// when unset or unknown.
func (s *Service) EmissionMethod(ctx context.Context, fallback transport.EmissionMethod) transport.EmissionMethod {
	if s == nil {
		return fallback
	}
	if m, ok := transport.ParseMethod(s.Get(ctx, FlagEmissionMethod).StringValue("")); ok {
		return m
	}
	return fallback
}
