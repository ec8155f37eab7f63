// Package ranking classifies transport options and orders them for the
// comparison tabs.
//
// All functions are pure. They never mutate their input and always return a
// fresh slice, so callers can rank the same canonical set repeatedly.
package ranking

import (
	"slices"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// Tab is a comparison ordering.
type Tab string

const (
	// TabBest keeps the provider's order.
	TabBest     Tab = "best"
	TabCheapest Tab = "cheapest"
	TabFastest  Tab = "fastest"
	TabEco      Tab = "eco"
)

// AllTabs returns every tab in display order.
func AllTabs() []Tab {
	return []Tab{TabBest, TabCheapest, TabFastest, TabEco}
}

// ParseTab maps a query value to a Tab.
func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabBest, TabCheapest, TabFastest, TabEco:
		return t, true
	}
	return "", false
}

// Classify returns a copy of opts with IsCheapest, IsFastest and IsBest
// recomputed. Every option tied for the lowest price or duration is flagged.
// IsBest marks the first option.
func Classify(opts []transport.Option) []transport.Option {
	out := slices.Clone(opts)
	if len(out) == 0 {
		return out
	}

	minPrice, minDuration := out[0].Price, out[0].Duration
	for _, o := range out[1:] {
		minPrice = min(minPrice, o.Price)
		minDuration = min(minDuration, o.Duration)
	}

	for i := range out {
		out[i].IsCheapest = out[i].Price == minPrice
		out[i].IsFastest = out[i].Duration == minDuration
		out[i].IsBest = i == 0
	}
	return out
}

// Cheapest orders by ascending price. Ties keep input order.
func Cheapest(opts []transport.Option) []transport.Option {
	out := slices.Clone(opts)
	slices.SortStableFunc(out, func(a, b transport.Option) int {
		return cmpFloat(a.Price, b.Price)
	})
	return out
}

// Fastest orders by ascending duration. Ties keep input order.
func Fastest(opts []transport.Option) []transport.Option {
	out := slices.Clone(opts)
	slices.SortStableFunc(out, func(a, b transport.Option) int {
		return a.Duration - b.Duration
	})
	return out
}

// Eco orders by ascending CO₂ under method. Unknown emissions sort last.
func Eco(opts []transport.Option, method transport.EmissionMethod) []transport.Option {
	out := slices.Clone(opts)
	slices.SortStableFunc(out, func(a, b transport.Option) int {
		return cmpFloat(a.CO2.RankValue(method), b.CO2.RankValue(method))
	})
	return out
}

// Best returns the input order.
func Best(opts []transport.Option) []transport.Option {
	return slices.Clone(opts)
}

// Order dispatches on tab. Unknown tabs fall back to Best.
func Order(opts []transport.Option, tab Tab, method transport.EmissionMethod) []transport.Option {
	switch tab {
	case TabCheapest:
		return Cheapest(opts)
	case TabFastest:
		return Fastest(opts)
	case TabEco:
		return Eco(opts, method)
	default:
		return Best(opts)
	}
}

// MostEco returns the option with the lowest known CO₂ under method. Options
// with unknown emissions are never chosen.
func MostEco(opts []transport.Option, method transport.EmissionMethod) (transport.Option, bool) {
	ordered := Eco(opts, method)
	if len(ordered) == 0 || !hasEmissions(ordered[0], method) {
		return transport.Option{}, false
	}
	return ordered[0], true
}

// TabOrders lists option ids per tab.
type TabOrders struct {
	Best     []string `json:"best"`
	Cheapest []string `json:"cheapest"`
	Fastest  []string `json:"fastest"`
	Eco      []string `json:"eco"`
}

// Tabs computes every tab ordering as id lists.
func Tabs(opts []transport.Option, method transport.EmissionMethod) TabOrders {
	return TabOrders{
		Best:     ids(Best(opts)),
		Cheapest: ids(Cheapest(opts)),
		Fastest:  ids(Fastest(opts)),
		Eco:      ids(Eco(opts, method)),
	}
}

func ids(opts []transport.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.ID
	}
	return out
}

func hasEmissions(o transport.Option, method transport.EmissionMethod) bool {
	_, ok := o.CO2.Resolve(method)
	return ok
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
