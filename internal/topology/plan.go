package topology

import (
	"github.com/groundscanner/groundscanner/internal/transport"
	"github.com/groundscanner/groundscanner/pkg/geo"
)

// Role is the marker role of a stop.
type Role string

const (
	RoleStart    Role = "start"
	RoleEnd      Role = "end"
	RoleWaypoint Role = "waypoint"
)

// LineStyle is how a mode's segments are drawn. An empty Dash is a solid line.
type LineStyle struct {
	Color string `json:"color"`
	Dash  string `json:"dash,omitempty"`
}

const dashed = "5, 5"

var styles = map[transport.Mode]LineStyle{
	transport.ModeTrain:       {Color: "#45B7D1"},
	transport.ModeBus:         {Color: "#4ECDC4", Dash: dashed},
	transport.ModeCoach:       {Color: "#FF6B35", Dash: dashed},
	transport.ModeTaxi:        {Color: "#FFD93D", Dash: dashed},
	transport.ModeUnderground: {Color: "#96CEB4", Dash: dashed},
}

// Style returns the line style for mode. Unknown modes draw like train.
func Style(mode transport.Mode) LineStyle {
	if s, ok := styles[mode]; ok {
		return s
	}
	return styles[transport.ModeTrain]
}

// Marker is one stop of the drawing plan.
type Marker struct {
	Index int            `json:"index"`
	Stop  transport.Stop `json:"stop"`
	Role  Role           `json:"role"`
}

// Segment is one line of the drawing plan.
type Segment struct {
	From     int      `json:"from"`
	To       int      `json:"to"`
	Kind     EdgeKind `json:"kind"`
	Polyline string   `json:"polyline"`
}

// Plan is the drawing plan of one route. Segments are in edge insertion order.
type Plan struct {
	Style    LineStyle `json:"style"`
	Markers  []Marker  `json:"markers"`
	Segments []Segment `json:"segments"`
}

// Build reconstructs the drawing plan for stops. An empty sequence yields an
// empty plan and fewer than two stops yield markers only.
func Build(stops []transport.Stop) Plan {
	plan := Plan{
		Style:    Style(transport.ModeTrain),
		Markers:  []Marker{},
		Segments: []Segment{},
	}
	if len(stops) == 0 {
		return plan
	}

	g := NewGraph(stops)
	plan.Markers = markers(g)
	for _, e := range g.Edges() {
		a, b := g.Stop(e.From), g.Stop(e.To)
		plan.Segments = append(plan.Segments, Segment{
			From:     e.From,
			To:       e.To,
			Kind:     e.Kind,
			Polyline: geo.Encode([]geo.Point{{Lat: a.Lat, Lon: a.Lon}, {Lat: b.Lat, Lon: b.Lon}}),
		})
	}
	return plan
}

// ForOption builds the plan for an option's stop sequence, styled by its mode.
// Options with a stops label have no sequence and get an empty plan.
func ForOption(o transport.Option) Plan {
	plan := Build(o.Stops.Sequence())
	plan.Style = Style(o.Mode)
	return plan
}

func markers(g *Graph) []Marker {
	spans := make(map[string]branchSpan)
	for _, b := range g.branches() {
		spans[b.id] = b
	}

	out := make([]Marker, g.Len())
	last := g.Len() - 1
	for i := range out {
		s := g.Stop(i)
		first, end := 0, last
		if !s.IsTrunk() {
			first, end = spans[s.BranchID].first, spans[s.BranchID].last
		}

		role := RoleWaypoint
		switch i {
		case first:
			role = RoleStart
		case end:
			role = RoleEnd
		}
		out[i] = Marker{Index: i, Stop: s, Role: role}
	}
	return out
}
