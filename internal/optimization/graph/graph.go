// Package graph holds the weighted undirected graph the solvers work on and
// its minimum spanning tree.
//
// Vertices are dense indices 0..n-1 into the point slice the graph was built
// from. Weights live in a symmetric gonum matrix; a separate presence mask
// makes sparse graphs representable, so a zero weight is distinguishable
// from an absent edge.
package graph

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

const component = "graph"

// Graph is a weighted undirected simple graph over dense vertex indices
type Graph struct {
	names   []string
	weights *mat.SymDense
	present []bool // row-major n×n, kept symmetric
	edges   int
}

// New creates a graph with the given vertex names and no edges.
func New(names []string) (*Graph, error) {
	n := len(names)
	if n == 0 {
		return nil, optimization.NewErrorf("graph needs at least one vertex").
			WithCause(optimization.ErrInvalidInput).
			WithComponent(component).WithOperation("New")
	}
	return &Graph{
		names:   append([]string(nil), names...),
		weights: mat.NewSymDense(n, nil),
		present: make([]bool, n*n),
	}, nil
}

// Complete builds the complete graph over points, one edge per unordered
// pair, weighted by m. Points are validated first.
func Complete(points []optimization.Point, m metric.Metric) (*Graph, error) {
	if err := optimization.ValidatePoints(points); err != nil {
		return nil, err
	}

	names := make([]string, len(points))
	for i, p := range points {
		names[i] = p.Name
	}
	g, err := New(names)
	if err != nil {
		return nil, err
	}

	for u := 0; u < len(points); u++ {
		a := points[u].Location()
		for v := u + 1; v < len(points); v++ {
			if err := g.AddEdge(u, v, m.Distance(a, points[v].Location())); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// AddEdge sets the weight of the undirected edge u–v, replacing any previous weight.
func (g *Graph) AddEdge(u, v int, w float64) error {
	const op = "AddEdge"

	n := g.Len()
	switch {
	case u < 0 || u >= n || v < 0 || v >= n:
		return optimization.NewErrorf("edge %d-%d out of range [0,%d)", u, v, n).
			WithCause(optimization.ErrInvalidInput).WithComponent(component).WithOperation(op)
	case u == v:
		return optimization.NewErrorf("self loop on vertex %d", u).
			WithCause(optimization.ErrInvalidInput).WithComponent(component).WithOperation(op)
	case w < 0 || math.IsNaN(w) || math.IsInf(w, 0):
		return optimization.NewErrorf("edge %d-%d has invalid weight %v", u, v, w).
			WithCause(optimization.ErrInvalidInput).WithComponent(component).WithOperation(op)
	}

	if !g.present[u*n+v] {
		g.edges++
	}
	g.present[u*n+v] = true
	g.present[v*n+u] = true
	g.weights.SetSym(u, v, w)
	return nil
}

// Len returns the number of vertices
func (g *Graph) Len() int { return len(g.names) }

// EdgeCount returns the number of undirected edges
func (g *Graph) EdgeCount() int { return g.edges }

// Name returns the name of vertex v
func (g *Graph) Name(v int) string { return g.names[v] }

// Names returns a copy of the vertex names
func (g *Graph) Names() []string { return append([]string(nil), g.names...) }

// Has reports whether the edge u–v exists
func (g *Graph) Has(u, v int) bool {
	n := g.Len()
	if u < 0 || u >= n || v < 0 || v >= n {
		return false
	}
	return g.present[u*n+v]
}

// Weight returns the weight of u–v and whether the edge exists.
// The weight of a vertex to itself is 0.
func (g *Graph) Weight(u, v int) (float64, bool) {
	if u == v && u >= 0 && u < g.Len() {
		return 0, true
	}
	if !g.Has(u, v) {
		return math.Inf(1), false
	}
	return g.weights.At(u, v), true
}

// Matrix exposes the weights as a read-only gonum matrix; absent edges read as 0.
func (g *Graph) Matrix() mat.Symmetric { return g.weights }

// Edges returns all edges with U < V, ordered by (U, V).
func (g *Graph) Edges() []optimization.Edge {
	n := g.Len()
	edges := make([]optimization.Edge, 0, g.edges)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if g.present[u*n+v] {
				edges = append(edges, optimization.Edge{U: u, V: v, Weight: g.weights.At(u, v)})
			}
		}
	}
	return edges
}

// Induced returns the subgraph induced by vertices, re-indexed so that
// vertices[i] becomes vertex i. Duplicate or out-of-range vertices are rejected.
func (g *Graph) Induced(vertices []int) (*Graph, error) {
	names := make([]string, len(vertices))
	seen := make(map[int]bool, len(vertices))
	for i, v := range vertices {
		if v < 0 || v >= g.Len() || seen[v] {
			return nil, optimization.NewErrorf("invalid or repeated vertex %d", v).
				WithCause(optimization.ErrInvalidInput).WithComponent(component).WithOperation("Induced")
		}
		seen[v] = true
		names[i] = g.names[v]
	}

	sub, err := New(names)
	if err != nil {
		return nil, err
	}
	for i := range vertices {
		for j := i + 1; j < len(vertices); j++ {
			if w, ok := g.Weight(vertices[i], vertices[j]); ok {
				if err := sub.AddEdge(i, j, w); err != nil {
					return nil, err
				}
			}
		}
	}
	return sub, nil
}

// SortEdges orders edges by weight, breaking ties by (U, V) after normalizing
// each edge so that U < V.
func SortEdges(edges []optimization.Edge) {
	for i, e := range edges {
		k := e.Key()
		edges[i].U, edges[i].V = k[0], k[1]
	}
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Weight != b.Weight {
			return a.Weight < b.Weight
		}
		if a.U != b.U {
			return a.U < b.U
		}
		return a.V < b.V
	})
}
