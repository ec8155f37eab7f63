// Package worker keeps comparison snapshots and fare summaries warm ahead of
// user traffic. Runs are triggered on an interval or by Pub/Sub messages.
package worker

import (
	"strings"
	"time"
)

// Target is one snapshot to prefetch.
type Target struct {
	Airport    string
	Passengers int
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Airports are the IATA codes to prefetch.
	// If empty, uses DefaultAirports.
	Airports []string

	// Passengers are the party sizes prefetched per airport.
	// Default: 1 and 2
	Passengers []int

	// Cities are the fare summary cities to refresh.
	Cities []string

	// Concurrency bounds the number of refreshes in flight.
	// Default: 3
	Concurrency int

	// Timeout bounds each refresh.
	// Default: 30 seconds
	Timeout time.Duration

	RefreshSnapshots bool
	RefreshFares     bool
}

// DefaultAirports are the London airports.
func DefaultAirports() []string {
	return []string{"LHR", "LGW", "STN", "LTN", "LCY"}
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Airports:         DefaultAirports(),
		Passengers:       []int{1, 2},
		Cities:           []string{"London"},
		Concurrency:      3,
		Timeout:          30 * time.Second,
		RefreshSnapshots: true,
		RefreshFares:     true,
	}
}

// Targets expands airports by passenger counts, airports first. Blank and
// repeated codes are skipped.
func (c RefreshConfig) Targets() []Target {
	passengers := c.Passengers
	if len(passengers) == 0 {
		passengers = []int{1}
	}

	seen := make(map[string]bool, len(c.Airports))
	var targets []Target
	for _, raw := range c.Airports {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		for _, n := range passengers {
			targets = append(targets, Target{Airport: code, Passengers: n})
		}
	}
	return targets
}

// TotalTargets returns the number of refreshes one run performs.
func (c RefreshConfig) TotalTargets() int {
	total := 0
	if c.RefreshSnapshots {
		total += len(c.Targets())
	}
	if c.RefreshFares {
		total += len(c.Cities)
	}
	return total
}
