// Package fares holds city fare summaries: per-mode payment rules and airport
// terminal services. Summaries annotate options for display and never affect
// ranking.
package fares

import (
	"strings"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// Fare summary mode keys.
const (
	KeyMetroTube = "metro_tube"
	KeyTrainRail = "train_rail"
	KeyBus       = "bus"
	KeyCoach     = "coach"
	KeyOther     = "other"
)

// Payment methods that produce badges.
const (
	MethodOyster      = "oyster"
	MethodContactless = "contactless"
)

// Payment lists the accepted and refused payment methods.
type Payment struct {
	Allowed    []string `json:"allowed,omitempty" yaml:"allowed"`
	NotAllowed []string `json:"not_allowed,omitempty" yaml:"not_allowed"`
}

// Accepts reports whether method is explicitly allowed.
func (p Payment) Accepts(method string) bool {
	return containsMethod(p.Allowed, method)
}

// Refuses reports whether method is explicitly not allowed.
func (p Payment) Refuses(method string) bool {
	return containsMethod(p.NotAllowed, method)
}

func containsMethod(list []string, method string) bool {
	for _, m := range list {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}

// ModeFare is the fare guidance for one mode in a city.
type ModeFare struct {
	Summary string   `json:"summary" yaml:"summary"`
	Payment *Payment `json:"payment,omitempty" yaml:"payment"`
}

// TerminalService is a transport service reachable from a terminal.
type TerminalService struct {
	Name    string   `json:"name" yaml:"name"`
	Payment *Payment `json:"payment,omitempty" yaml:"payment"`
}

// Terminal groups the services of one airport.
type Terminal struct {
	Services []TerminalService `json:"services" yaml:"services"`
}

// Airports holds terminal information keyed by IATA code.
type Airports struct {
	Terminals map[string]Terminal `json:"terminals,omitempty" yaml:"terminals"`
}

// Summary is the fare reference data of one city.
type Summary struct {
	City     string              `json:"city" yaml:"city"`
	Modes    map[string]ModeFare `json:"modes" yaml:"modes"`
	Airports Airports            `json:"airports" yaml:"airports"`
}

// CityKey normalizes a city name into its storage key.
func CityKey(city string) string {
	return strings.ToUpper(strings.TrimSpace(city))
}

// ModeKey maps a transport mode onto its fare summary key.
func ModeKey(mode transport.Mode) string {
	switch mode {
	case transport.ModeUnderground:
		return KeyMetroTube
	case transport.ModeTrain:
		return KeyTrainRail
	case transport.ModeBus:
		return KeyBus
	case transport.ModeCoach:
		return KeyCoach
	default:
		return KeyOther
	}
}

// ForMode returns the fare entry for mode.
func (s *Summary) ForMode(mode transport.Mode) (ModeFare, bool) {
	if s == nil || s.Modes == nil {
		return ModeFare{}, false
	}
	mf, ok := s.Modes[ModeKey(mode)]
	return mf, ok
}

// TerminalServices returns the services listed for an airport, nil when unknown.
func (s *Summary) TerminalServices(iata string) []TerminalService {
	if s == nil || s.Airports.Terminals == nil {
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(iata))
	if t, ok := s.Airports.Terminals[code]; ok {
		return t.Services
	}
	// Keys from upstream are not always upper-cased.
	for k, t := range s.Airports.Terminals {
		if strings.EqualFold(k, code) {
			return t.Services
		}
	}
	return nil
}

// Badge is a payment-method annotation shown next to an option.
type Badge struct {
	Method  string `json:"method"`
	Allowed bool   `json:"allowed"`
	Label   string `json:"label"`
}

// Badges derives payment badges. Refusals come first, then acceptances;
// within each group oyster and contactless keep a fixed order.
func Badges(p *Payment) []Badge {
	if p == nil {
		return []Badge{}
	}
	badges := make([]Badge, 0, 4)
	if p.Refuses(MethodOyster) {
		badges = append(badges, Badge{Method: MethodOyster, Label: "❌ Oyster"})
	}
	if p.Refuses(MethodContactless) {
		badges = append(badges, Badge{Method: MethodContactless, Label: "❌ Contactless"})
	}
	if p.Accepts(MethodContactless) {
		badges = append(badges, Badge{Method: MethodContactless, Allowed: true, Label: "💳 Contactless"})
	}
	if p.Accepts(MethodOyster) {
		badges = append(badges, Badge{Method: MethodOyster, Allowed: true, Label: "🦪 Oyster"})
	}
	return badges
}

// BadgesForMode returns the badges for mode, empty when the summary has no
// payment data for it.
func (s *Summary) BadgesForMode(mode transport.Mode) []Badge {
	mf, ok := s.ForMode(mode)
	if !ok {
		return []Badge{}
	}
	return Badges(mf.Payment)
}
