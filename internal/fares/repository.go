package fares

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no summary is stored for a city.
var ErrNotFound = errors.New("fare summary not found")

// Repository defines the interface for fare summary storage. Cities are
// keyed by CityKey.
type Repository interface {
	// Get retrieves the summary of a city.
	Get(ctx context.Context, city string) (*Summary, error)

	// Save creates or replaces the summary of a city.
	Save(ctx context.Context, summary *Summary) error

	// ListCities returns every stored city key, sorted.
	ListCities(ctx context.Context) ([]string, error)
}
