// Package filter narrows a canonical option set by the user's compound filter
// state and derives the slider bounds the filter UI offers.
package filter

import (
	"math"
	"strings"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// Spec is the user's filter state. MaxPrice and MaxTime are inclusive
// ceilings; DepartureWindow is a pair of hours, wrapping past midnight when
// the second is not after the first.
type Spec struct {
	AirportCode     string                  `json:"airportCode"`
	TransportModes  map[transport.Mode]bool `json:"transportModes"`
	MaxPrice        float64                 `json:"maxPrice"`
	MaxTime         int                     `json:"maxTime"`
	DepartureWindow [2]int                  `json:"departureWindow"`
	Direct          bool                    `json:"direct"`
	OneOrMore       bool                    `json:"oneOrMore"`
	FlexibleOnly    bool                    `json:"flexibleOnly"`
	FirstClassOnly  bool                    `json:"firstClassOnly"`
}

// Unbounded disables the price or time ceiling when used as MaxPrice or MaxTime.
const Unbounded = -1

const minutesPerDay = 24 * 60

// FullDay is the departure window that admits every service.
var FullDay = [2]int{0, 24}

// Bounds are the slider limits of a result set.
type Bounds struct {
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
	MinTime  int     `json:"minTime"`
	MaxTime  int     `json:"maxTime"`
}

// BoundsOf computes the price and duration range of opts. An empty set has
// zero bounds.
func BoundsOf(opts []transport.Option) Bounds {
	if len(opts) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinPrice: math.Inf(1),
		MinTime:  math.MaxInt,
	}
	for _, o := range opts {
		b.MinPrice = min(b.MinPrice, o.Price)
		b.MaxPrice = max(b.MaxPrice, o.Price)
		b.MinTime = min(b.MinTime, o.Duration)
		b.MaxTime = max(b.MaxTime, o.Duration)
	}
	return b
}

// DefaultSpec enables every mode and sets the ceilings to the observed maxima.
func DefaultSpec(airport string, opts []transport.Option) Spec {
	b := BoundsOf(opts)
	modes := make(map[transport.Mode]bool, len(transport.AllModes()))
	for _, m := range transport.AllModes() {
		modes[m] = true
	}
	return Spec{
		AirportCode:     strings.ToUpper(strings.TrimSpace(airport)),
		TransportModes:  modes,
		MaxPrice:        b.MaxPrice,
		MaxTime:         b.MaxTime,
		DepartureWindow: FullDay,
	}
}

// Apply returns the options matching every criterion of spec, in input order.
// The input is not modified.
func Apply(opts []transport.Option, spec Spec) []transport.Option {
	out := make([]transport.Option, 0, len(opts))
	for _, o := range opts {
		if Match(o, spec) {
			out = append(out, o)
		}
	}
	return out
}

// ForAirport returns the options serving code, in input order. An empty code
// keeps every option.
func ForAirport(opts []transport.Option, code string) []transport.Option {
	out := make([]transport.Option, 0, len(opts))
	for _, o := range opts {
		if matchAirport(o, code) {
			out = append(out, o)
		}
	}
	return out
}

// Match reports whether o satisfies spec.
func Match(o transport.Option, spec Spec) bool {
	return matchAirport(o, spec.AirportCode) &&
		matchMode(o, spec.TransportModes) &&
		matchPrice(o, spec.MaxPrice) &&
		matchTime(o, spec.MaxTime) &&
		matchStops(o, spec.Direct, spec.OneOrMore) &&
		matchDeparture(o, spec.DepartureWindow) &&
		(!spec.FlexibleOnly || o.FlexibleTicket) &&
		(!spec.FirstClassOnly || o.HasFirstClass)
}

func matchAirport(o transport.Option, code string) bool {
	code = strings.TrimSpace(code)
	return code == "" || strings.EqualFold(o.Airport, code)
}

func matchMode(o transport.Option, modes map[transport.Mode]bool) bool {
	return modes[o.Mode]
}

func matchPrice(o transport.Option, maxPrice float64) bool {
	return maxPrice < 0 || o.Price <= maxPrice
}

func matchTime(o transport.Option, maxTime int) bool {
	return maxTime < 0 || o.Duration <= maxTime
}

// matchStops passes everything when neither or both toggles are set.
func matchStops(o transport.Option, direct, oneOrMore bool) bool {
	if direct == oneOrMore {
		return true
	}
	return o.Stops.HasStops() == oneOrMore
}

// matchDeparture passes options with unknown service hours.
func matchDeparture(o transport.Option, window [2]int) bool {
	if o.ServiceHours == nil {
		return true
	}
	first, last, ok := o.ServiceHours.Window()
	if !ok {
		return true
	}
	from, to := window[0]*60, window[1]*60
	if to <= from {
		to += minutesPerDay
	}
	// Service hours span up to two days; try the window on the day before and after too.
	for _, shift := range []int{0, minutesPerDay, -minutesPerDay} {
		if overlaps(first, last, from+shift, to+shift) {
			return true
		}
	}
	return false
}

func overlaps(aFrom, aTo, bFrom, bTo int) bool {
	return aFrom <= bTo && bFrom <= aTo
}
