// Package featureflags provides runtime switches for the comparison pipeline.
package featureflags

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// Well-known feature flag keys.
const (
	// FlagHideSponsored removes sponsored options from comparison results.
	FlagHideSponsored = "hide_sponsored_options"

	// FlagCachedOnlySnapshots serves stored snapshots only and never calls upstream.
	FlagCachedOnlySnapshots = "cached_only_snapshots"

	// FlagDisableFareBadges suppresses payment badges on fare responses.
	FlagDisableFareBadges = "disable_fare_badges"

	// FlagDisabledModes is a comma-separated list of transport modes to drop.
	FlagDisabledModes = "disabled_modes"

	// FlagEmissionMethod overrides the configured default emission method.
	// An empty value keeps the configured default.
	FlagEmissionMethod = "emission_method"
)

// Flag is one runtime switch. Value holds whatever JSON decoded: bool,
// string, float64 or a list.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedBy string      `json:"updatedBy,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FlagUpdateRequest is the body of an admin flag update.
type FlagUpdateRequest struct {
	Flags  map[string]interface{} `json:"flags"`
	Reason string                 `json:"reason"`
}

// BoolValue returns the flag as a boolean, or def when unset or not a boolean.
// A JSON number counts as true when non-zero.
func (f *Flag) BoolValue(def bool) bool {
	if f == nil {
		return def
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return def
}

// StringValue returns the flag as a string, or def when unset or not a string.
func (f *Flag) StringValue(def string) string {
	if f == nil {
		return def
	}
	if v, ok := f.Value.(string); ok {
		return v
	}
	return def
}

// ListValue returns a comma-separated string flag, or a JSON array of
// strings, as trimmed lower-case items.
func (f *Flag) ListValue() []string {
	if f == nil {
		return nil
	}
	var raw []string
	switch v := f.Value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var defaultValues = map[string]interface{}{
	FlagHideSponsored:       false,
	FlagCachedOnlySnapshots: false,
	FlagDisableFareBadges:   false,
	FlagDisabledModes:       "",
	FlagEmissionMethod:      "",
}

// DefaultFlags returns a fresh set of the well-known flags at their defaults.
// Defaults carry a zero UpdatedAt.
func DefaultFlags() map[string]*Flag {
	flags := make(map[string]*Flag, len(defaultValues))
	for key, value := range defaultValues {
		flags[key] = &Flag{Key: key, Value: value}
	}
	return flags
}

// KnownKey reports whether key is one of the well-known flags.
func KnownKey(key string) bool {
	_, ok := defaultValues[key]
	return ok
}

// ErrInvalidValue is returned by Validate for a value of the wrong shape.
var ErrInvalidValue = errors.New("invalid feature flag value")

var descriptions = map[string]string{
	FlagHideSponsored:       "Remove sponsored options from comparison results",
	FlagCachedOnlySnapshots: "Serve stored snapshots only; never call upstream on a miss",
	FlagDisableFareBadges:   "Suppress payment badges on fare responses",
	FlagDisabledModes:       "Comma-separated transport modes dropped from results",
	FlagEmissionMethod:      "Emission method override: fuel_combustion, well_to_tank or empty",
}

// Description returns the human description of a well-known flag.
func Description(key string) string {
	return descriptions[key]
}

// Validate checks that value fits the well-known flag key.
func Validate(key string, value interface{}) error {
	switch key {
	case FlagHideSponsored, FlagCachedOnlySnapshots, FlagDisableFareBadges:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s must be a boolean: %w", key, ErrInvalidValue)
		}
	case FlagDisabledModes:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string: %w", key, ErrInvalidValue)
		}
		for _, name := range (&Flag{Value: s}).ListValue() {
			if !transport.Mode(name).Valid() {
				return fmt.Errorf("%s: unknown mode %q: %w", key, name, ErrInvalidValue)
			}
		}
	case FlagEmissionMethod:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string: %w", key, ErrInvalidValue)
		}
		if _, valid := transport.ParseMethod(s); s != "" && !valid {
			return fmt.Errorf("%s: unknown method %q: %w", key, s, ErrInvalidValue)
		}
	default:
		return fmt.Errorf("unknown flag %q: %w", key, ErrInvalidValue)
	}
	return nil
}
