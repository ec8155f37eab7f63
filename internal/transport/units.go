package transport

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	digitRun   = regexp.MustCompile(`\d+`)
	decimalRun = regexp.MustCompile(`\d+(?:\.\d+)?`)
	nonStop    = regexp.MustCompile(`\bnon[\s-]?stop\b`)
)

// firstInt returns the first run of digits in s, or 0.
func firstInt(s string) int {
	m := digitRun.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// ParseDurationMinutes derives whole minutes from a provider duration value.
// Numbers are used as-is (rounded, never negative), strings yield their first
// run of digits (0 when there is none) and stop sequences are estimated.
func ParseDurationMinutes(value any) int {
	switch v := value.(type) {
	case int:
		return max(v, 0)
	case float64:
		return wholeMinutes(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return wholeMinutes(f)
	case string:
		return firstInt(v)
	case []Stop:
		return EstimateDuration(len(v))
	case []any:
		return EstimateDuration(len(v))
	default:
		return 0
	}
}

// EstimateDuration guesses a journey length from its stop count.
func EstimateDuration(stopCount int) int {
	return max(10, 2*stopCount)
}

func wholeMinutes(f float64) int {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(f))
}

// ParseAmount extracts a non-negative currency amount from a number or a string
// such as "£6.50" or "GBP 1,250". Anything else is 0.
func ParseAmount(value any) float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		m := decimalRun.FindString(strings.ReplaceAll(v, ",", ""))
		if m == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// CentralStops is the allow-list of major interchange stops whose fare is taken
// as the journey price when a route lists a fare ladder.
type CentralStops struct {
	names map[string]struct{}
}

// DefaultCentralStopNames are the interchanges used when no list is configured.
var DefaultCentralStopNames = []string{
	"King's Cross St. Pancras",
	"St Pancras International",
	"Paddington",
	"Victoria",
	"Liverpool Street",
	"London Bridge",
	"Waterloo",
	"Euston",
	"Farringdon",
	"Tottenham Court Road",
	"Oxford Circus",
	"Piccadilly Circus",
	"Leicester Square",
	"Green Park",
	"Bond Street",
	"Bank",
	"Stratford",
}

// NewCentralStops builds an allow-list. Names match exactly after normalization.
func NewCentralStops(names ...string) CentralStops {
	c := CentralStops{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if key := normalizeStopName(n); key != "" {
			c.names[key] = struct{}{}
		}
	}
	return c
}

// DefaultCentralStops returns the default allow-list.
func DefaultCentralStops() CentralStops {
	return NewCentralStops(DefaultCentralStopNames...)
}

// Match reports whether the stop name is on the list.
func (c CentralStops) Match(name string) bool {
	_, ok := c.names[normalizeStopName(name)]
	return ok
}

// Len returns the number of names on the list.
func (c CentralStops) Len() int { return len(c.names) }

var stopNameReplacer = strings.NewReplacer("'", "", "’", "", ".", "", ",", "", "&", " and ", "-", " ")

func normalizeStopName(name string) string {
	s := stopNameReplacer.Replace(strings.ToLower(name))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, " underground station")
	s = strings.TrimSuffix(s, " station")
	return s
}

// ResolvePrice picks the journey price for a route. In order: the fare of the
// first central stop listing one, the last stop's lowest fare, the lowest fare
// anywhere on the route, a positive flat price, else 0.
func ResolvePrice(flat float64, stops []Stop, central CentralStops) float64 {
	for _, s := range stops {
		if !central.Match(s.Name) {
			continue
		}
		if fare, ok := s.LowestFare(); ok {
			return fare
		}
	}

	if len(stops) > 0 {
		if fare, ok := stops[len(stops)-1].LowestFare(); ok {
			return fare
		}
	}

	lowest, found := 0.0, false
	for _, s := range stops {
		if fare, ok := s.LowestFare(); ok && (!found || fare < lowest) {
			lowest, found = fare, true
		}
	}
	if found {
		return lowest
	}

	if flat > 0 && !math.IsInf(flat, 0) && !math.IsNaN(flat) {
		return flat
	}
	return 0
}
