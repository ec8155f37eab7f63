// Package transport defines the canonical airport ground-transport model and
// normalizes heterogeneous provider records into it.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for transport record decoding.
var (
	// ErrMalformedPayload indicates the upstream payload is not a JSON array of records.
	ErrMalformedPayload = errors.New("malformed transport payload")
	// ErrMalformedRecord indicates a record is not a JSON object.
	ErrMalformedRecord = errors.New("malformed transport record")
)

// Mode is a ground-transport mode. The set is closed.
type Mode string

const (
	ModeTrain       Mode = "train"
	ModeBus         Mode = "bus"
	ModeCoach       Mode = "coach"
	ModeTaxi        Mode = "taxi"
	ModeUnderground Mode = "underground"
)

// AllModes returns every mode in display order.
func AllModes() []Mode {
	return []Mode{ModeTrain, ModeUnderground, ModeBus, ModeCoach, ModeTaxi}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeTrain, ModeBus, ModeCoach, ModeTaxi, ModeUnderground:
		return true
	}
	return false
}

// Price is one entry of a stop's fare ladder.
type Price struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// Stop is one waypoint on a route. An empty BranchID marks a trunk stop.
type Stop struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Currency string  `json:"currency,omitempty"`
	Prices   []Price `json:"prices,omitempty"`
	BranchID string  `json:"branchId,omitempty"`
}

// IsTrunk reports whether the stop belongs to the shared trunk.
func (s Stop) IsTrunk() bool {
	return s.BranchID == ""
}

// LowestFare returns the lowest positive fare listed at the stop.
func (s Stop) LowestFare() (float64, bool) {
	lowest, found := 0.0, false
	for _, p := range s.Prices {
		if p.Amount <= 0 {
			continue
		}
		if !found || p.Amount < lowest {
			lowest, found = p.Amount, true
		}
	}
	return lowest, found
}

// Stops is either a display label ("Direct", "3 stops") or an ordered stop sequence.
type Stops struct {
	label    string
	sequence []Stop
	isSeq    bool
}

// LabelStops wraps a provider display string.
func LabelStops(label string) Stops {
	return Stops{label: strings.TrimSpace(label)}
}

// SequenceStops wraps an ordered stop sequence. The slice is copied.
func SequenceStops(seq []Stop) Stops {
	cp := make([]Stop, len(seq))
	copy(cp, seq)
	return Stops{sequence: cp, isSeq: true}
}

// IsSequence reports whether the stops carry coordinates.
func (s Stops) IsSequence() bool { return s.isSeq }

// Label returns the provider display string, empty for sequences.
func (s Stops) Label() string { return s.label }

// Sequence returns a copy of the stop sequence.
func (s Stops) Sequence() []Stop {
	if !s.isSeq {
		return nil
	}
	cp := make([]Stop, len(s.sequence))
	copy(cp, s.sequence)
	return cp
}

// Count returns the number of stops: the sequence length, or the number in the label.
func (s Stops) Count() int {
	if s.isSeq {
		return len(s.sequence)
	}
	if !s.HasStops() {
		return 0
	}
	return firstInt(s.label)
}

// HasStops reports whether the option calls at intermediate stops.
// A label counts when it mentions "stop" and is neither "0 stops" nor
// "non-stop"; a sequence counts when non-empty.
func (s Stops) HasStops() bool {
	if s.isSeq {
		return len(s.sequence) > 0
	}
	lower := strings.ToLower(s.label)
	if !strings.Contains(lower, "stop") || nonStop.MatchString(lower) {
		return false
	}
	return !digitRun.MatchString(lower) || firstInt(lower) > 0
}

// Display renders the stops the way the comparison list shows them.
func (s Stops) Display() string {
	if !s.isSeq {
		if s.label == "" {
			return "Direct"
		}
		return s.label
	}
	switch n := len(s.sequence); n {
	case 0:
		return "Direct"
	case 1:
		return "1 stop"
	default:
		return fmt.Sprintf("%d stops", n)
	}
}

// MarshalJSON encodes a label as a string and a sequence as an array.
func (s Stops) MarshalJSON() ([]byte, error) {
	if s.isSeq {
		if s.sequence == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.sequence)
	}
	return json.Marshal(s.Display())
}

// ServiceHours is the daily operating window of an option, "HH:MM" bounds.
type ServiceHours struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Window returns the bounds in minutes after midnight. A last departure earlier
// than the first is treated as running past midnight.
func (h ServiceHours) Window() (from, to int, ok bool) {
	from, okFrom := ClockMinutes(h.First)
	to, okTo := ClockMinutes(h.Last)
	if !okFrom || !okTo {
		return 0, 0, false
	}
	if to < from {
		to += minutesPerDay
	}
	return from, to, true
}

// Option is one comparable way to travel between an airport and a city.
// Options are built by the Normalizer and treated as immutable values.
type Option struct {
	ID           string    `json:"id"`
	Mode         Mode      `json:"mode"`
	SourceMode   string    `json:"sourceMode,omitempty"`
	ModeInferred bool      `json:"modeInferred,omitempty"`
	Name         string    `json:"name"`
	Route        string    `json:"route"`
	Airport      string    `json:"airport"`
	AirportName  string    `json:"airportName,omitempty"`
	Duration     int       `json:"duration"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Stops        Stops     `json:"stops"`
	CO2          Emissions `json:"co2"`

	DistanceKm   *float64      `json:"distanceKm,omitempty"`
	ServiceHours *ServiceHours `json:"serviceHours,omitempty"`

	IsEco      bool `json:"isEco"`
	IsFastest  bool `json:"isFastest"`
	IsCheapest bool `json:"isCheapest"`
	IsBest     bool `json:"isBest"`

	Sponsored      bool   `json:"sponsored,omitempty"`
	HasFirstClass  bool   `json:"hasFirstClass,omitempty"`
	FlexibleTicket bool   `json:"flexibleTicket,omitempty"`
	URL            string `json:"url,omitempty"`
}

// DurationDisplay formats the duration for display.
func (o Option) DurationDisplay() string {
	return FormatDuration(o.Duration)
}

// PriceDisplay formats the price for display, "FREE" for zero.
func (o Option) PriceDisplay() string {
	return FormatPrice(o.Price, o.Currency)
}
