package fares

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Fetcher retrieves a fare summary from the upstream backend.
type Fetcher interface {
	GetFareSummary(ctx context.Context, city string) (*Summary, error)
}

// ServiceConfig holds configuration for the fare service.
type ServiceConfig struct {
	// Repository stores summaries. Defaults to an in-memory repository.
	Repository Repository

	// Fetcher is consulted when a city is missing from the repository (optional).
	Fetcher Fetcher

	Logger zerolog.Logger
}

// Service serves fare summaries from storage, filling gaps from upstream.
type Service struct {
	repo    Repository
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewService creates a new fare service.
func NewService(cfg ServiceConfig) *Service {
	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}
	return &Service{
		repo:    repo,
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
	}
}

// Get returns the summary of a city. A stored summary wins; otherwise the
// upstream copy is fetched and stored. A summary that cannot be stored is
// still returned.
func (s *Service) Get(ctx context.Context, city string) (*Summary, error) {
	key := CityKey(city)
	if key == "" {
		return nil, ErrNotFound
	}

	summary, err := s.repo.Get(ctx, key)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.logger.Warn().Err(err).Str("city", key).Msg("fare repository lookup failed")
	}
	if s.fetcher == nil {
		return nil, ErrNotFound
	}
	return s.fetch(ctx, key)
}

// Refresh replaces the stored summary with the upstream copy.
func (s *Service) Refresh(ctx context.Context, city string) (*Summary, error) {
	key := CityKey(city)
	if key == "" {
		return nil, ErrNotFound
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("refreshing fares for %s: no upstream configured", key)
	}
	return s.fetch(ctx, key)
}

// Cities lists the cities that have a stored summary.
func (s *Service) Cities(ctx context.Context) ([]string, error) {
	return s.repo.ListCities(ctx)
}

func (s *Service) fetch(ctx context.Context, key string) (*Summary, error) {
	summary, err := s.fetcher.GetFareSummary(ctx, key)
	if err != nil {
		return nil, err
	}
	if summary.City == "" {
		summary.City = key
	}

	if err := s.repo.Save(ctx, summary); err != nil {
		s.logger.Error().Err(err).Str("city", key).Msg("failed to store fare summary")
	} else {
		s.logger.Debug().Str("city", key).Int("modes", len(summary.Modes)).Msg("fare summary stored")
	}
	return summary, nil
}
