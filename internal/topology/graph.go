// Package topology reconstructs a drawable route from a stop sequence whose
// branches merge into a shared trunk.
package topology

import "github.com/groundscanner/groundscanner/internal/transport"

// EdgeKind classifies why two stops are joined.
type EdgeKind string

const (
	// EdgeTrunk joins consecutive trunk stops.
	EdgeTrunk EdgeKind = "trunk"
	// EdgeBranch joins consecutive stops of one branch.
	EdgeBranch EdgeKind = "branch"
	// EdgeConnector joins a branch stop to the trunk stop listed right after it.
	EdgeConnector EdgeKind = "connector"
	// EdgeFallback joins a branch's last stop to the first trunk stop when the
	// branch is never listed next to the trunk.
	EdgeFallback EdgeKind = "fallback"
)

// Edge is a directed edge between two stop positions.
type Edge struct {
	From int
	To   int
	Kind EdgeKind
}

// Graph is a directed graph over stop positions. Edges are unique per
// (from, to) pair and kept in insertion order.
type Graph struct {
	stops []transport.Stop
	edges []Edge
	seen  map[[2]int]struct{}
}

// NewGraph builds the graph for stops. The slice is copied.
func NewGraph(stops []transport.Stop) *Graph {
	g := &Graph{
		stops: append([]transport.Stop(nil), stops...),
		seen:  make(map[[2]int]struct{}),
	}
	g.build()
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.stops) }

// Stop returns the stop at position i.
func (g *Graph) Stop(i int) transport.Stop { return g.stops[i] }

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

func (g *Graph) addEdge(from, to int, kind EdgeKind) bool {
	if from == to {
		return false
	}
	key := [2]int{from, to}
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	g.edges = append(g.edges, Edge{From: from, To: to, Kind: kind})
	return true
}

func (g *Graph) build() {
	if len(g.stops) < 2 {
		return
	}

	joined := make(map[string]bool)
	for i := 0; i+1 < len(g.stops); i++ {
		cur, next := g.stops[i], g.stops[i+1]
		switch {
		case cur.BranchID == next.BranchID && cur.IsTrunk():
			g.addEdge(i, i+1, EdgeTrunk)
		case cur.BranchID == next.BranchID:
			g.addEdge(i, i+1, EdgeBranch)
		case !cur.IsTrunk() && next.IsTrunk():
			g.addEdge(i, i+1, EdgeConnector)
			joined[cur.BranchID] = true
		}
	}

	firstTrunk := -1
	for i, s := range g.stops {
		if s.IsTrunk() {
			firstTrunk = i
			break
		}
	}
	if firstTrunk < 0 {
		return
	}

	for _, b := range g.branches() {
		if joined[b.id] {
			continue
		}
		g.addEdge(b.last, firstTrunk, EdgeFallback)
	}
}

type branchSpan struct {
	id          string
	first, last int
}

// branches lists branch groups in order of first appearance.
func (g *Graph) branches() []branchSpan {
	var spans []branchSpan
	index := make(map[string]int)
	for i, s := range g.stops {
		if s.IsTrunk() {
			continue
		}
		if j, ok := index[s.BranchID]; ok {
			spans[j].last = i
			continue
		}
		index[s.BranchID] = len(spans)
		spans = append(spans, branchSpan{id: s.BranchID, first: i, last: i})
	}
	return spans
}
