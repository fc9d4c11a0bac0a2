package graph

import (
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

// Tree is a spanning tree given by its edges
type Tree struct {
	Edges  []optimization.Edge
	Weight float64
}

// Degrees returns the degree of every vertex 0..n-1 in the tree.
func (t Tree) Degrees(n int) []int {
	deg := make([]int, n)
	for _, e := range t.Edges {
		deg[e.U]++
		deg[e.V]++
	}
	return deg
}

// MinimumSpanningTree computes a minimum spanning tree with Kruskal's
// algorithm. Equal weights are broken by (U, V), so the result depends only
// on the graph. A graph that is not connected yields ErrDisconnected.
//
// Complexity: O(E log E).
func MinimumSpanningTree(g *Graph) (Tree, error) {
	n := g.Len()
	if n == 1 {
		return Tree{Edges: []optimization.Edge{}}, nil
	}

	edges := g.Edges()
	SortEdges(edges)

	ds := newDisjointSet(n)
	tree := Tree{Edges: make([]optimization.Edge, 0, n-1)}
	for _, e := range edges {
		if !ds.union(e.U, e.V) {
			continue
		}
		tree.Edges = append(tree.Edges, e)
		tree.Weight += e.Weight
		if len(tree.Edges) == n-1 {
			break
		}
	}

	if len(tree.Edges) < n-1 {
		return Tree{}, optimization.NewErrorf("spanning forest has %d edges, need %d", len(tree.Edges), n-1).
			WithCause(optimization.ErrDisconnected).
			WithComponent(component).WithOperation("MinimumSpanningTree")
	}
	return tree, nil
}

// disjointSet is union-find with path halving and union by rank
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

// union merges the sets of a and b; it reports false if they were already joined.
func (ds *disjointSet) union(a, b int) bool {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return false
	}
	switch {
	case ds.rank[ra] < ds.rank[rb]:
		ds.parent[ra] = rb
	case ds.rank[ra] > ds.rank[rb]:
		ds.parent[rb] = ra
	default:
		ds.parent[rb] = ra
		ds.rank[ra]++
	}
	return true
}
