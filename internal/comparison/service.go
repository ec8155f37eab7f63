// Package comparison is the fetch boundary of the comparison pipeline. It
// deduplicates upstream fetches per query key, keeps point-in-time snapshots
// and evaluates normalized options for one query.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/featureflags"
	"github.com/groundscanner/groundscanner/internal/filter"
	"github.com/groundscanner/groundscanner/internal/ranking"
	"github.com/groundscanner/groundscanner/internal/topology"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// Sentinel errors for comparison operations.
var (
	// ErrUnknownOption is returned when an option id is not in the result set.
	ErrUnknownOption = errors.New("option not found")
	// ErrNoRoute is returned when an option has no stop sequence to draw.
	ErrNoRoute = errors.New("option has no stop sequence")
)

// Upstream fetches raw transport records.
type Upstream interface {
	GetTransports(ctx context.Context, code string, passengers int) ([]transport.Record, error)
}

// CacheRecorder receives snapshot lookups. telemetry.ProviderMetrics satisfies it.
type CacheRecorder interface {
	RecordCacheHit(store string)
	RecordCacheMiss(store string)
}

// ServiceConfig holds configuration for the comparison service.
type ServiceConfig struct {
	// Upstream is the transport record source (required).
	Upstream Upstream

	// Store keeps snapshots. Defaults to an in-memory store with SnapshotTTL.
	Store SnapshotStore

	// SnapshotTTL is the in-memory store TTL (default: 10 minutes).
	SnapshotTTL time.Duration

	// FetchTimeout bounds one shared upstream fetch (default: 30 seconds).
	FetchTimeout time.Duration

	// Normalizer maps records onto options. Defaults to the built-in central stops.
	Normalizer *transport.Normalizer

	// Directory supplies airport display names (optional).
	Directory *airports.Directory

	// FeatureFlags adjusts results at runtime (optional).
	FeatureFlags *featureflags.Service

	// DefaultMethod is used when a query names no emission method.
	DefaultMethod transport.EmissionMethod

	// Metrics, when set, counts snapshot hits and misses.
	Metrics CacheRecorder

	Logger zerolog.Logger
}

// Service evaluates comparisons for airport queries.
type Service struct {
	upstream      Upstream
	store         SnapshotStore
	fetchTimeout  time.Duration
	normalizer    *transport.Normalizer
	directory     *airports.Directory
	flags         *featureflags.Service
	defaultMethod transport.EmissionMethod
	metrics       CacheRecorder
	logger        zerolog.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewService creates a new comparison service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewMemorySnapshotStore(cfg.SnapshotTTL)
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 30 * time.Second
	}

	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = transport.NewNormalizer(transport.NormalizerConfig{})
	}

	method := cfg.DefaultMethod
	if _, ok := transport.ParseMethod(string(method)); !ok {
		method = transport.DefaultMethod
	}

	return &Service{
		upstream:      cfg.Upstream,
		store:         store,
		fetchTimeout:  fetchTimeout,
		normalizer:    normalizer,
		directory:     cfg.Directory,
		flags:         cfg.FeatureFlags,
		defaultMethod: method,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           time.Now,
	}
}

// Query selects and shapes one comparison.
type Query struct {
	Airport    string
	Passengers int
	Method     transport.EmissionMethod
	Tab        ranking.Tab
	Filter     FilterParams
}

// Key returns the fetch key of the query.
func (q Query) Key() string {
	return QueryKey(q.Airport, q.Passengers)
}

// Compare fetches (or reuses) the result set of q and evaluates it.
func (s *Service) Compare(ctx context.Context, q Query) (*Result, error) {
	opts, snap, batch, err := s.options(ctx, q.Airport, q.Passengers)
	if err != nil {
		return nil, err
	}

	method := s.method(ctx, q.Method)
	res := Evaluate(opts, q.Airport, q.Filter, q.Tab, method)
	res.Passengers = snap.Passengers
	res.AirportName = s.airportName(res.Airport, opts)
	res.DroppedStops = batch.DroppedStops
	res.InferredModes = batch.InferredModes
	res.FetchedAt = snap.FetchedAt

	s.logger.Debug().
		Str("airport", res.Airport).
		Int("passengers", res.Passengers).
		Int("options", res.Total).
		Int("visible", len(res.Options)).
		Str("tab", string(res.Tab)).
		Msg("comparison evaluated")
	return &res, nil
}

// Insights summarizes every option of the airport, unfiltered.
func (s *Service) Insights(ctx context.Context, airport string, passengers int, method transport.EmissionMethod) (*ranking.Insights, error) {
	opts, _, _, err := s.options(ctx, airport, passengers)
	if err != nil {
		return nil, err
	}
	in := ranking.Summarize(ranking.Classify(filter.ForAirport(opts, airport)), s.method(ctx, method))
	return &in, nil
}

// Topology returns the drawing plan of one option.
func (s *Service) Topology(ctx context.Context, airport string, passengers int, optionID string) (topology.Plan, transport.Option, error) {
	opts, _, _, err := s.options(ctx, airport, passengers)
	if err != nil {
		return topology.Plan{}, transport.Option{}, err
	}
	for _, o := range opts {
		if o.ID != optionID {
			continue
		}
		if !o.Stops.IsSequence() {
			return topology.Plan{}, o, ErrNoRoute
		}
		return topology.ForOption(o), o, nil
	}
	return topology.Plan{}, transport.Option{}, ErrUnknownOption
}

// Refresh fetches the result set of a query from upstream and replaces the
// stored snapshot, ignoring any live one.
func (s *Service) Refresh(ctx context.Context, airport string, passengers int) (*Snapshot, error) {
	return s.fetch(ctx, airport, passengers)
}

// Snapshot returns the live snapshot of a query, fetching it when missing.
// Concurrent callers for the same key share one upstream fetch.
func (s *Service) Snapshot(ctx context.Context, airport string, passengers int) (*Snapshot, error) {
	key := QueryKey(airport, passengers)

	snap, err := s.store.Get(ctx, key)
	if err == nil {
		s.logger.Debug().Str("key", key).Str("store", s.store.Name()).Msg("snapshot hit")
		if s.metrics != nil {
			s.metrics.RecordCacheHit(s.store.Name())
		}
		return snap, nil
	}
	if !errors.Is(err, ErrSnapshotMiss) {
		s.logger.Warn().Err(err).Str("key", key).Str("store", s.store.Name()).Msg("snapshot store read failed")
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(s.store.Name())
	}

	if s.flags.IsCachedOnly(ctx) {
		return nil, fmt.Errorf("%s: %w", key, ErrSnapshotMiss)
	}
	return s.fetch(ctx, airport, passengers)
}

// fetch runs one shared upstream fetch per key. The fetch is detached from
// the caller so a canceled caller neither aborts nor poisons it for others;
// each caller still stops waiting when its own ctx ends.
func (s *Service) fetch(ctx context.Context, airport string, passengers int) (*Snapshot, error) {
	key := QueryKey(airport, passengers)
	code := airports.NormalizeCode(airport)

	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		start := s.now()
		records, err := s.upstream.GetTransports(fetchCtx, code, passengers)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("upstream fetch failed")
			return nil, err
		}

		snap := &Snapshot{
			Airport:    code,
			Passengers: passengers,
			Records:    records,
			FetchedAt:  s.now(),
		}
		if err := s.store.Set(fetchCtx, snap); err != nil {
			s.logger.Error().Err(err).Str("key", key).Msg("failed to store snapshot")
		}

		s.logger.Debug().
			Str("key", key).
			Int("records", len(records)).
			Dur("elapsed", s.now().Sub(start)).
			Msg("snapshot fetched")
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// options normalizes a snapshot and applies runtime flags.
func (s *Service) options(ctx context.Context, airport string, passengers int) ([]transport.Option, *Snapshot, transport.Batch, error) {
	snap, err := s.Snapshot(ctx, airport, passengers)
	if err != nil {
		return nil, nil, transport.Batch{}, err
	}

	batch := s.normalizer.NormalizeAll(snap.Records, snap.Airport)
	if batch.DroppedStops > 0 || batch.InferredModes > 0 {
		s.logger.Debug().
			Str("airport", snap.Airport).
			Int("dropped_stops", batch.DroppedStops).
			Int("inferred_modes", batch.InferredModes).
			Msg("normalized with defaults")
	}

	hideSponsored := s.flags.HidesSponsored(ctx)
	disabled := s.flags.DisabledModes(ctx)
	if !hideSponsored && len(disabled) == 0 {
		return batch.Options, snap, batch, nil
	}

	kept := make([]transport.Option, 0, len(batch.Options))
	for _, o := range batch.Options {
		if (hideSponsored && o.Sponsored) || disabled[o.Mode] {
			continue
		}
		kept = append(kept, o)
	}
	return kept, snap, batch, nil
}

func (s *Service) method(ctx context.Context, requested transport.EmissionMethod) transport.EmissionMethod {
	if m, ok := transport.ParseMethod(string(requested)); ok {
		return m
	}
	return s.flags.EmissionMethod(ctx, s.defaultMethod)
}

func (s *Service) airportName(code string, opts []transport.Option) string {
	if s.directory != nil {
		if a, ok := s.directory.Lookup(code); ok {
			return a.Name
		}
	}
	for _, o := range opts {
		if o.AirportName != "" {
			return o.AirportName
		}
	}
	return ""
}
