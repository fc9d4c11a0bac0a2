package graph

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

// randomPoints generates n points in a small box over France
func randomPoints(rng *rand.Rand, n int) []optimization.Point {
	points := make([]optimization.Point, n)
	for i := range points {
		points[i] = optimization.Point{
			Name: fmt.Sprintf("p%d", i),
			Lat:  43 + 7*rng.Float64(),
			Lon:  -2 + 10*rng.Float64(),
		}
	}
	return points
}

// assertSpanningTree checks edge count, acyclicity and connectivity
func assertSpanningTree(t *testing.T, tree Tree, n int) {
	t.Helper()

	require.Len(t, tree.Edges, n-1)
	ds := newDisjointSet(n)
	sum := 0.0
	for _, e := range tree.Edges {
		require.True(t, ds.union(e.U, e.V), "edge %d-%d closes a cycle", e.U, e.V)
		sum += e.Weight
	}
	root := ds.find(0)
	for v := 1; v < n; v++ {
		require.Equal(t, root, ds.find(v), "vertex %d not connected", v)
	}
	assert.InDelta(t, sum, tree.Weight, 1e-9)
}

// bruteForceMST enumerates every (n-1)-edge subset and keeps the lightest spanning tree
func bruteForceMST(g *Graph) float64 {
	edges := g.Edges()
	n := g.Len()
	best := math.Inf(1)
	chosen := make([]optimization.Edge, 0, n-1)

	var rec func(start int)
	rec = func(start int) {
		if len(chosen) == n-1 {
			ds := newDisjointSet(n)
			w := 0.0
			for _, e := range chosen {
				if !ds.union(e.U, e.V) {
					return
				}
				w += e.Weight
			}
			if w < best {
				best = w
			}
			return
		}
		for i := start; i <= len(edges)-(n-1-len(chosen)); i++ {
			chosen = append(chosen, edges[i])
			rec(i + 1)
			chosen = chosen[:len(chosen)-1]
		}
	}
	rec(0)
	return best
}

func TestMinimumSpanningTreeBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{2, 3, 5, 7, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			g, err := Complete(randomPoints(rng, n), metric.NewHaversine())
			require.NoError(t, err)

			tree, err := MinimumSpanningTree(g)
			require.NoError(t, err)
			assertSpanningTree(t, tree, n)
			assert.InDelta(t, bruteForceMST(g), tree.Weight, 1e-9)
		})
	}
}

func TestMinimumSpanningTreeMatchesGonum(t *testing.T) {
	g, err := Complete(optimization.FrenchCities(), metric.NewHaversine())
	require.NoError(t, err)

	tree, err := MinimumSpanningTree(g)
	require.NoError(t, err)
	assertSpanningTree(t, tree, g.Len())

	src := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, e := range g.Edges() {
		src.SetWeightedEdge(src.NewWeightedEdge(simple.Node(e.U), simple.Node(e.V), e.Weight))
	}
	dst := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	want := path.Kruskal(dst, src)

	assert.InDelta(t, want, tree.Weight, 1e-9)
}

func TestMinimumSpanningTreeDeterministicTies(t *testing.T) {
	// Every edge has the same weight: the (U, V) tie-break must pick a star on vertex 0.
	g, err := New([]string{"a", "b", "c", "d"})
	require.NoError(t, err)
	for u := 0; u < 4; u++ {
		for v := u + 1; v < 4; v++ {
			require.NoError(t, g.AddEdge(u, v, 1))
		}
	}

	tree, err := MinimumSpanningTree(g)
	require.NoError(t, err)
	assert.Equal(t, []optimization.Edge{
		{U: 0, V: 1, Weight: 1},
		{U: 0, V: 2, Weight: 1},
		{U: 0, V: 3, Weight: 1},
	}, tree.Edges)
	assert.Equal(t, []int{3, 1, 1, 1}, tree.Degrees(4))
}

func TestMinimumSpanningTreeDisconnected(t *testing.T) {
	g, err := New([]string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(0, 1, 1))
	require.NoError(t, g.AddEdge(2, 3, 1))

	_, err = MinimumSpanningTree(g)
	assert.ErrorIs(t, err, optimization.ErrDisconnected)
}

func TestMinimumSpanningTreeSingleVertex(t *testing.T) {
	g, err := New([]string{"solo"})
	require.NoError(t, err)
	tree, err := MinimumSpanningTree(g)
	require.NoError(t, err)
	assert.Empty(t, tree.Edges)
	assert.Zero(t, tree.Weight)
}

func BenchmarkMinimumSpanningTree(b *testing.B) {
	g, err := Complete(randomPoints(rand.New(rand.NewSource(1)), 200), metric.NewHaversine())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MinimumSpanningTree(g)
	}
}
