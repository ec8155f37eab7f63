package models

import (
	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/groundapi"
	"github.com/groundscanner/groundscanner/internal/ranking"
	"github.com/groundscanner/groundscanner/internal/topology"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// Airport is one directory entry.
type Airport struct {
	IATA        string   `json:"iata"`
	Name        string   `json:"name"`
	City        string   `json:"city,omitempty"`
	Country     string   `json:"country,omitempty"`
	DisplayName string   `json:"displayName"`
	Aliases     []string `json:"aliases,omitempty"`
}

// NewAirport converts a directory entry.
func NewAirport(a airports.Airport) Airport {
	return Airport{
		IATA:        a.IATA,
		Name:        a.Name,
		City:        a.City,
		Country:     a.Country,
		DisplayName: airports.DisplayName(a),
		Aliases:     a.Aliases,
	}
}

// AirportList is the body of GET /v1/airports.
type AirportList struct {
	Query    string    `json:"query,omitempty"`
	Airports []Airport `json:"airports"`
}

// OptionView is an option with its display strings.
type OptionView struct {
	transport.Option
	DurationDisplay string `json:"durationDisplay"`
	PriceDisplay    string `json:"priceDisplay"`
	StopsDisplay    string `json:"stopsDisplay"`
	CO2Display      string `json:"co2Display"`
}

// NewOptionView adds display strings to o under method.
func NewOptionView(o transport.Option, method transport.EmissionMethod) OptionView {
	return OptionView{
		Option:          o,
		DurationDisplay: o.DurationDisplay(),
		PriceDisplay:    o.PriceDisplay(),
		StopsDisplay:    o.Stops.Display(),
		CO2Display:      transport.Co2Display(o.CO2, method),
	}
}

// TopologyResponse is the drawing plan of one option.
type TopologyResponse struct {
	OptionID string         `json:"optionId"`
	Mode     transport.Mode `json:"mode"`
	Route    string         `json:"route"`
	Plan     topology.Plan  `json:"plan"`
}

// InsightsResponse is the body of GET /v1/airports/{code}/insights.
type InsightsResponse struct {
	Airport    string `json:"airport"`
	Passengers int    `json:"passengers"`
	ranking.Insights
}

// FaresResponse is the body of GET /v1/cities/{city}/fares.
type FaresResponse struct {
	City    string         `json:"city"`
	Mode    string         `json:"mode,omitempty"`
	FareKey string         `json:"fareKey,omitempty"`
	Badges  []fares.Badge  `json:"badges"`
	Summary *fares.Summary `json:"summary"`
}

// TerminalTransfersResponse is the body of GET /v1/airports/{code}/terminal-transfers,
// passed through from upstream.
type TerminalTransfersResponse = groundapi.TerminalTransfers

// OptionsResponse is the body of GET /v1/airports/{code}/options. Options
// shadows the embedded result's plain option list.
type OptionsResponse struct {
	*comparison.Result
	Options []OptionView `json:"options"`
}

// NewOptionsResponse adds display strings to every visible option of res.
func NewOptionsResponse(res *comparison.Result) OptionsResponse {
	views := make([]OptionView, len(res.Options))
	for i, o := range res.Options {
		views[i] = NewOptionView(o, res.Method)
	}
	return OptionsResponse{Result: res, Options: views}
}
