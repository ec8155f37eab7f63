package airports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/latch"
)

// ErrNotLoaded is returned by lookups before the directory has loaded.
var ErrNotLoaded = errors.New("airport directory not loaded")

// Source lists every known airport.
type Source interface {
	GetAirports(ctx context.Context) ([]Airport, error)
}

// DirectoryConfig holds configuration for the airport directory.
type DirectoryConfig struct {
	Source Source
	Logger zerolog.Logger
}

// Directory is the airport list, loaded once from its source.
type Directory struct {
	source Source
	logger zerolog.Logger
	once   latch.Latch

	mu     sync.RWMutex
	list   []Airport
	byCode map[string]Airport
}

// NewDirectory creates an unloaded directory.
func NewDirectory(cfg DirectoryConfig) *Directory {
	return &Directory{
		source: cfg.Source,
		logger: cfg.Logger,
		byCode: make(map[string]Airport),
	}
}

// NewStaticDirectory creates a directory that is already loaded with list.
func NewStaticDirectory(list []Airport) *Directory {
	d := NewDirectory(DirectoryConfig{Logger: zerolog.Nop()})
	d.set(list)
	_ = d.once.Do(context.Background(), func(context.Context) error { return nil })
	return d
}

// Load fetches the airport list. Concurrent callers share one fetch and a
// successful load is never repeated; a failed load is retried on the next call.
func (d *Directory) Load(ctx context.Context) error {
	return d.once.Do(ctx, func(ctx context.Context) error {
		if d.source == nil {
			return fmt.Errorf("loading airports: %w", ErrNotLoaded)
		}
		list, err := d.source.GetAirports(ctx)
		if err != nil {
			d.logger.Warn().Err(err).Msg("airport directory load failed")
			return fmt.Errorf("loading airports: %w", err)
		}
		d.set(list)
		d.logger.Info().Int("airports", len(list)).Msg("airport directory loaded")
		return nil
	})
}

// Loaded reports whether the directory holds data.
func (d *Directory) Loaded() bool {
	return d.once.State() == latch.Done
}

func (d *Directory) set(list []Airport) {
	byCode := make(map[string]Airport, len(list))
	clean := make([]Airport, 0, len(list))
	for _, a := range list {
		a.IATA = NormalizeCode(a.IATA)
		if !ValidCode(a.IATA) {
			continue
		}
		if _, dup := byCode[a.IATA]; dup {
			continue
		}
		byCode[a.IATA] = a
		clean = append(clean, a)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = clean
	d.byCode = byCode
}

// All returns every airport in source order.
func (d *Directory) All() []Airport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Airport, len(d.list))
	copy(out, d.list)
	return out
}

// Lookup returns the airport with the given code, in any case.
func (d *Directory) Lookup(code string) (Airport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byCode[NormalizeCode(code)]
	return a, ok
}

// DisplayNameFor returns "Name (CODE)" for a known code and "" otherwise.
func (d *Directory) DisplayNameFor(code string) string {
	a, ok := d.Lookup(code)
	if !ok {
		return ""
	}
	return DisplayName(a)
}

// Search returns airports whose display name, city or aliases contain query,
// case-insensitively. A blank query matches nothing.
func (d *Directory) Search(query string) []Airport {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Airport{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Airport{}
	for _, a := range d.list {
		if a.matches(q) {
			out = append(out, a)
		}
	}
	return out
}
