package ranking

import (
	"slices"
	"strings"

	"github.com/groundscanner/groundscanner/internal/transport"
)

// Card is one summary tile of the insights view.
type Card struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Subtext  string `json:"subtext"`
	OptionID string `json:"optionId,omitempty"`
}

// GasAmount is one constituent gas of a breakdown, in the breakdown's unit.
type GasAmount struct {
	Gas    string  `json:"gas"`
	Amount float64 `json:"amount"`
}

// Insights aggregates a result set for display.
type Insights struct {
	MostEco      Card                     `json:"mostEco"`
	Fastest      Card                     `json:"fastest"`
	Cheapest     Card                     `json:"cheapest"`
	AveragePrice *float64                 `json:"averagePrice"`
	AverageCO2   *float64                 `json:"averageCo2"`
	Method       transport.EmissionMethod `json:"method"`
	Breakdowns   map[string][]GasAmount   `json:"breakdowns,omitempty"`
}

// Card titles.
const (
	TitleMostEco  = "Most Eco-Friendly"
	TitleFastest  = "Fastest Option"
	TitleCheapest = "Most Affordable"
)

// Summarize builds the insight cards for opts. Cards of an empty set read "N/A".
func Summarize(opts []transport.Option, method transport.EmissionMethod) Insights {
	in := Insights{
		MostEco:  emptyCard(TitleMostEco),
		Fastest:  emptyCard(TitleFastest),
		Cheapest: emptyCard(TitleCheapest),
		Method:   method,
	}

	if eco, ok := MostEco(opts, method); ok {
		in.MostEco = card(TitleMostEco, transport.Co2Display(eco.CO2, method), eco)
	}
	if fastest := Fastest(opts); len(fastest) > 0 {
		in.Fastest = card(TitleFastest, fastest[0].DurationDisplay(), fastest[0])
	}
	if cheapest := Cheapest(opts); len(cheapest) > 0 {
		in.Cheapest = card(TitleCheapest, cheapest[0].PriceDisplay(), cheapest[0])
	}

	if avg, ok := AveragePrice(opts); ok {
		in.AveragePrice = &avg
	}
	if avg, ok := AverageCO2(opts, method); ok {
		in.AverageCO2 = &avg
	}

	for _, o := range opts {
		if gases := GasBreakdown(o, method); len(gases) > 0 {
			if in.Breakdowns == nil {
				in.Breakdowns = make(map[string][]GasAmount)
			}
			in.Breakdowns[o.ID] = gases
		}
	}
	return in
}

func emptyCard(title string) Card {
	return Card{Title: title, Value: transport.NotAvailable}
}

func card(title, value string, o transport.Option) Card {
	return Card{Title: title, Value: value, Subtext: o.Name, OptionID: o.ID}
}

// AveragePrice is the mean price of opts.
func AveragePrice(opts []transport.Option) (float64, bool) {
	if len(opts) == 0 {
		return 0, false
	}
	var sum float64
	for _, o := range opts {
		sum += o.Price
	}
	return sum / float64(len(opts)), true
}

// AverageCO2 is the mean CO₂ under method over options with known emissions.
func AverageCO2(opts []transport.Option, method transport.EmissionMethod) (float64, bool) {
	var sum float64
	n := 0
	for _, o := range opts {
		if kg, ok := o.CO2.Resolve(method); ok {
			sum += kg
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// GasBreakdown lists the constituent gases of o under method, largest first.
func GasBreakdown(o transport.Option, method transport.EmissionMethod) []GasAmount {
	me, ok := o.CO2.Method(method)
	if !ok || len(me.Gases) == 0 {
		return nil
	}
	out := make([]GasAmount, 0, len(me.Gases))
	for gas, amount := range me.Gases {
		out = append(out, GasAmount{Gas: gas, Amount: amount})
	}
	slices.SortFunc(out, func(a, b GasAmount) int {
		if c := cmpFloat(b.Amount, a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Gas, b.Gas)
	})
	return out
}
