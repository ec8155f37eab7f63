package transport

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
)

// EmissionMethod names an emission-accounting methodology.
type EmissionMethod string

const (
	// MethodFuelCombustion counts tailpipe emissions only.
	MethodFuelCombustion EmissionMethod = "fuel_combustion"
	// MethodWellToTank counts upstream fuel production and distribution.
	MethodWellToTank EmissionMethod = "well_to_tank"

	// DefaultMethod is used when no method is selected.
	DefaultMethod = MethodFuelCombustion
)

// ParseMethod maps a query value to a known method.
func ParseMethod(s string) (EmissionMethod, bool) {
	switch EmissionMethod(s) {
	case MethodFuelCombustion, MethodWellToTank:
		return EmissionMethod(s), true
	}
	return "", false
}

// EmissionsKind discriminates the Emissions variant.
type EmissionsKind int

const (
	EmissionsUnknown EmissionsKind = iota
	EmissionsScalar
	EmissionsBreakdown
)

func (k EmissionsKind) String() string {
	switch k {
	case EmissionsScalar:
		return "scalar"
	case EmissionsBreakdown:
		return "breakdown"
	default:
		return "unknown"
	}
}

// MethodEmission is the CO₂-equivalent figure under one accounting method.
type MethodEmission struct {
	Total  float64            `json:"co2e"`
	Unit   string             `json:"co2e_unit,omitempty"`
	Gases  map[string]float64 `json:"constituent_gases,omitempty"`
	Source string             `json:"source,omitempty"`
	Factor string             `json:"emission_factor_name,omitempty"`
	Year   int                `json:"year,omitempty"`
}

// Emissions is the CO₂ figure of an option: unknown, a flat kg value, or a
// per-method breakdown. The zero value is unknown.
type Emissions struct {
	kind    EmissionsKind
	kg      float64
	methods map[EmissionMethod]MethodEmission
}

// UnknownEmissions returns the unknown variant.
func UnknownEmissions() Emissions {
	return Emissions{}
}

// ScalarEmissions returns a flat kg value. Negative or non-finite values are unknown.
func ScalarEmissions(kg float64) Emissions {
	if kg < 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
		return Emissions{}
	}
	return Emissions{kind: EmissionsScalar, kg: kg}
}

// BreakdownEmissions returns a per-method breakdown. An empty map is unknown.
func BreakdownEmissions(methods map[EmissionMethod]MethodEmission) Emissions {
	if len(methods) == 0 {
		return Emissions{}
	}
	cp := make(map[EmissionMethod]MethodEmission, len(methods))
	for m, e := range methods {
		e.Gases = maps.Clone(e.Gases)
		cp[m] = e
	}
	return Emissions{kind: EmissionsBreakdown, methods: cp}
}

// Kind returns the variant.
func (e Emissions) Kind() EmissionsKind { return e.kind }

// Known reports whether any figure is available.
func (e Emissions) Known() bool { return e.kind != EmissionsUnknown }

// Scalar returns the flat kg value of a scalar variant.
func (e Emissions) Scalar() (float64, bool) {
	if e.kind != EmissionsScalar {
		return 0, false
	}
	return e.kg, true
}

// Method returns the breakdown entry for m.
func (e Emissions) Method(m EmissionMethod) (MethodEmission, bool) {
	if e.kind != EmissionsBreakdown {
		return MethodEmission{}, false
	}
	me, ok := e.methods[m]
	if !ok {
		return MethodEmission{}, false
	}
	me.Gases = maps.Clone(me.Gases)
	return me, true
}

// Methods lists the methods present in a breakdown, sorted.
func (e Emissions) Methods() []EmissionMethod {
	out := make([]EmissionMethod, 0, len(e.methods))
	for m := range e.methods {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Resolve returns the kg figure under method m. A scalar resolves under every method.
func (e Emissions) Resolve(m EmissionMethod) (float64, bool) {
	switch e.kind {
	case EmissionsScalar:
		return e.kg, true
	case EmissionsBreakdown:
		me, ok := e.methods[m]
		if !ok {
			return 0, false
		}
		return me.Total, true
	default:
		return 0, false
	}
}

// RankValue is Resolve with unknown mapped to +Inf so it sorts last.
func (e Emissions) RankValue(m EmissionMethod) float64 {
	if v, ok := e.Resolve(m); ok {
		return v
	}
	return math.Inf(1)
}

// MarshalJSON encodes unknown as null, a scalar as a number and a breakdown as
// an object keyed by method.
func (e Emissions) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case EmissionsScalar:
		return json.Marshal(e.kg)
	case EmissionsBreakdown:
		return json.Marshal(e.methods)
	default:
		return []byte("null"), nil
	}
}
