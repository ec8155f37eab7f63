package fares

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	summaries map[string][]byte
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		summaries: make(map[string][]byte),
	}
}

// Get retrieves the summary of a city. Callers receive their own copy.
func (r *InMemoryRepository) Get(_ context.Context, city string) (*Summary, error) {
	r.mu.RLock()
	data, ok := r.summaries[CityKey(city)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save creates or replaces the summary of a city.
func (r *InMemoryRepository) Save(_ context.Context, summary *Summary) error {
	key := CityKey(summary.City)
	cp := *summary
	cp.City = key
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[key] = data
	return nil
}

// ListCities returns every stored city key, sorted.
func (r *InMemoryRepository) ListCities(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cities := make([]string, 0, len(r.summaries))
	for k := range r.summaries {
		cities = append(cities, k)
	}
	slices.Sort(cities)
	return cities, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
