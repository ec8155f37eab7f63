package comparison

import (
	"time"

	"github.com/groundscanner/groundscanner/internal/filter"
	"github.com/groundscanner/groundscanner/internal/ranking"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// FilterParams are the user's filter choices. Nil fields keep the default
// spec's value: every mode and the observed price and time maxima.
type FilterParams struct {
	Modes          []transport.Mode
	MaxPrice       *float64
	MaxTime        *int
	DepartFrom     *int
	DepartTo       *int
	Direct         bool
	OneOrMore      bool
	FlexibleOnly   bool
	FirstClassOnly bool
}

// Spec overlays p on def. def is not modified.
func (p FilterParams) Spec(def filter.Spec) filter.Spec {
	spec := def
	spec.TransportModes = make(map[transport.Mode]bool, len(def.TransportModes))
	if p.Modes != nil {
		for _, m := range p.Modes {
			spec.TransportModes[m] = true
		}
	} else {
		for m, on := range def.TransportModes {
			spec.TransportModes[m] = on
		}
	}

	if p.MaxPrice != nil {
		spec.MaxPrice = *p.MaxPrice
	}
	if p.MaxTime != nil {
		spec.MaxTime = *p.MaxTime
	}
	if p.DepartFrom != nil {
		spec.DepartureWindow[0] = *p.DepartFrom
	}
	if p.DepartTo != nil {
		spec.DepartureWindow[1] = *p.DepartTo
	}
	spec.Direct = p.Direct
	spec.OneOrMore = p.OneOrMore
	spec.FlexibleOnly = p.FlexibleOnly
	spec.FirstClassOnly = p.FirstClassOnly
	return spec
}

// Result is one evaluated comparison.
type Result struct {
	Airport       string                   `json:"airport"`
	AirportName   string                   `json:"airportName,omitempty"`
	Passengers    int                      `json:"passengers"`
	Method        transport.EmissionMethod `json:"method"`
	Tab           ranking.Tab              `json:"tab"`
	Options       []transport.Option       `json:"options"`
	Tabs          ranking.TabOrders        `json:"tabs"`
	Bounds        filter.Bounds            `json:"bounds"`
	DefaultFilter filter.Spec              `json:"defaultFilter"`
	Filter        filter.Spec              `json:"filter"`
	Insights      ranking.Insights         `json:"insights"`
	Total         int                      `json:"total"`
	DroppedStops  int                      `json:"droppedStops"`
	InferredModes int                      `json:"inferredModes"`
	FetchedAt     time.Time                `json:"fetchedAt"`
}

// Evaluate runs the pure part of a comparison on normalized options:
// keep the airport's options, classify, bound, filter, order by every tab and
// summarize. Flags, bounds and the default filter describe the airport's whole
// set; orderings and insights describe the filtered view.
func Evaluate(opts []transport.Option, airport string, params FilterParams, tab ranking.Tab, method transport.EmissionMethod) Result {
	classified := ranking.Classify(filter.ForAirport(opts, airport))
	def := filter.DefaultSpec(airport, classified)
	spec := params.Spec(def)
	visible := filter.Apply(classified, spec)

	if _, ok := ranking.ParseTab(string(tab)); !ok {
		tab = ranking.TabBest
	}

	return Result{
		Airport:       def.AirportCode,
		Method:        method,
		Tab:           tab,
		Options:       ranking.Order(visible, tab, method),
		Tabs:          ranking.Tabs(visible, method),
		Bounds:        filter.BoundsOf(classified),
		DefaultFilter: def,
		Filter:        spec,
		Insights:      ranking.Summarize(visible, method),
		Total:         len(classified),
	}
}
