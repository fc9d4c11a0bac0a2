package christofides

import (
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

// Origin records which construction step contributed a multigraph edge
type Origin uint8

const (
	OriginMST Origin = iota
	OriginMatching
)

func (o Origin) String() string {
	if o == OriginMatching {
		return "matching"
	}
	return "mst"
}

// MultiEdge is an edge of the Eulerian multigraph
type MultiEdge struct {
	optimization.Edge
	Origin Origin
}

// Step is one traversal of a multigraph edge
type Step struct {
	From, To int
	// Edge indexes Multigraph.Edges().
	Edge int
}

// Multigraph is an undirected multigraph over dense vertices; parallel edges
// are kept as distinct entries.
type Multigraph struct {
	n     int
	edges []MultiEdge
	adj   [][]int // vertex -> incident edge ids, in insertion order
}

// NewMultigraph unions the tree edges and the matching edges over n vertices.
func NewMultigraph(n int, tree, matching []optimization.Edge) *Multigraph {
	mg := &Multigraph{
		n:     n,
		edges: make([]MultiEdge, 0, len(tree)+len(matching)),
		adj:   make([][]int, n),
	}
	for _, e := range tree {
		mg.add(e, OriginMST)
	}
	for _, e := range matching {
		mg.add(e, OriginMatching)
	}
	return mg
}

func (mg *Multigraph) add(e optimization.Edge, origin Origin) {
	id := len(mg.edges)
	mg.edges = append(mg.edges, MultiEdge{Edge: e, Origin: origin})
	mg.adj[e.U] = append(mg.adj[e.U], id)
	mg.adj[e.V] = append(mg.adj[e.V], id)
}

// Len returns the number of vertices
func (mg *Multigraph) Len() int { return mg.n }

// Edges returns the multigraph edges, tree edges first
func (mg *Multigraph) Edges() []MultiEdge { return mg.edges }

// Degrees returns the degree of every vertex, parallel edges counted separately
func (mg *Multigraph) Degrees() []int {
	deg := make([]int, mg.n)
	for v := range mg.adj {
		deg[v] = len(mg.adj[v])
	}
	return deg
}

// EulerianCircuit returns a closed walk from start that traverses every edge
// exactly once, using Hierholzer's algorithm with an explicit stack.
//
// Complexity: O(V + E).
func (mg *Multigraph) EulerianCircuit(start int) ([]Step, error) {
	const op = "EulerianCircuit"

	if start < 0 || start >= mg.n {
		return nil, optimization.NewErrorf("start vertex %d out of range [0,%d)", start, mg.n).
			WithCause(optimization.ErrInvalidInput).WithComponent(component).WithOperation(op)
	}
	for v, d := range mg.Degrees() {
		if d&1 == 1 {
			return nil, optimization.NewErrorf("vertex %d has odd degree %d", v, d).
				WithCause(optimization.ErrInvariantViolation).WithComponent(component).WithOperation(op)
		}
	}
	if len(mg.edges) == 0 {
		return []Step{}, nil
	}

	type frame struct {
		v   int
		via int // edge used to reach v, -1 for start
	}

	used := make([]bool, len(mg.edges))
	next := make([]int, mg.n)
	stack := []frame{{v: start, via: -1}}
	popped := make([]frame, 0, len(mg.edges)+1)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		u := top.v
		for next[u] < len(mg.adj[u]) && used[mg.adj[u][next[u]]] {
			next[u]++
		}
		if next[u] == len(mg.adj[u]) {
			popped = append(popped, top)
			stack = stack[:len(stack)-1]
			continue
		}
		id := mg.adj[u][next[u]]
		used[id] = true
		v := mg.edges[id].V
		if v == u {
			v = mg.edges[id].U
		}
		stack = append(stack, frame{v: v, via: id})
	}

	// popped lists the circuit backwards; the edge between popped[i] and
	// popped[i+1] is the one popped[i] was reached by.
	if len(popped) != len(mg.edges)+1 {
		return nil, optimization.NewErrorf("circuit covers %d of %d edges", len(popped)-1, len(mg.edges)).
			WithCause(optimization.ErrInvariantViolation).WithComponent(component).WithOperation(op)
	}
	walk := make([]Step, 0, len(mg.edges))
	for i := 0; i+1 < len(popped); i++ {
		walk = append(walk, Step{From: popped[i].v, To: popped[i+1].v, Edge: popped[i].via})
	}
	return walk, nil
}

// WalkVertices returns the vertex sequence of a walk, start repeated at the end.
func WalkVertices(walk []Step) []int {
	if len(walk) == 0 {
		return []int{}
	}
	vertices := make([]int, 0, len(walk)+1)
	vertices = append(vertices, walk[0].From)
	for _, s := range walk {
		vertices = append(vertices, s.To)
	}
	return vertices
}
