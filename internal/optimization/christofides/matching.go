package christofides

import (
	"math"
	"math/bits"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/graph"
)

const (
	// DefaultDPMatchingLimit is the largest odd set matched by subset DP by default.
	DefaultDPMatchingLimit = 20
	// MaxDPMatchingLimit bounds the subset table at 2^24 entries.
	MaxDPMatchingLimit = 24
)

// Matching methods
const (
	MatchingDP      = "subset_dp"
	MatchingBlossom = "blossom"
)

// Matching is a perfect matching over a vertex subset
type Matching struct {
	// Pairs are in g's vertex indices with U < V.
	Pairs  []optimization.Edge
	Weight float64
	// Method is MatchingDP or MatchingBlossom. Both are exact.
	Method string
}

// MinimumWeightPerfectMatching pairs up vertices so that the summed weight
// of the pairs in g is minimal. The matching is computed on the subgraph
// induced by vertices. len(vertices) must be even. Sets of at most dpLimit
// vertices use dynamic programming over subsets, larger ones the weighted
// blossom algorithm.
func MinimumWeightPerfectMatching(g *graph.Graph, vertices []int, dpLimit int) (Matching, error) {
	const op = "MinimumWeightPerfectMatching"

	if len(vertices)&1 == 1 {
		return Matching{}, optimization.NewErrorf("cannot perfectly match %d vertices", len(vertices)).
			WithCause(optimization.ErrInvariantViolation).
			WithComponent(component).WithOperation(op)
	}
	if len(vertices) == 0 {
		return Matching{Pairs: []optimization.Edge{}, Method: MatchingDP}, nil
	}
	if dpLimit <= 0 {
		dpLimit = DefaultDPMatchingLimit
	}
	if dpLimit > MaxDPMatchingLimit {
		dpLimit = MaxDPMatchingLimit
	}

	sub, err := g.Induced(vertices)
	if err != nil {
		return Matching{}, err
	}

	pairs, method := [][2]int(nil), MatchingDP
	if len(vertices) <= dpLimit {
		pairs = subsetMatching(sub)
	} else {
		pairs, method = blossomMatching(sub), MatchingBlossom
	}
	if pairs == nil {
		return Matching{}, optimization.NewErrorf("no perfect matching among %d vertices", len(vertices)).
			WithCause(optimization.ErrDisconnected).
			WithComponent(component).WithOperation(op)
	}

	m := Matching{Pairs: make([]optimization.Edge, 0, len(pairs)), Method: method}
	for _, p := range pairs {
		w, _ := sub.Weight(p[0], p[1])
		key := optimization.Edge{U: vertices[p[0]], V: vertices[p[1]]}.Key()
		m.Pairs = append(m.Pairs, optimization.Edge{U: key[0], V: key[1], Weight: w})
		m.Weight += w
	}
	return m, nil
}

// subsetMatching solves the matching by dynamic programming over subsets:
// best[mask] is the cheapest way to match the vertices not in mask, always
// pairing the lowest unmatched vertex first. It returns nil if no perfect
// matching exists.
func subsetMatching(g *graph.Graph) [][2]int {
	k := g.Len()
	full := uint32(1)<<k - 1

	w := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w[i*k+j], _ = g.Weight(i, j)
		}
	}

	best := make([]float64, full+1)
	choice := make([]int8, full+1)
	for mask := int64(full); mask >= 0; mask-- {
		m := uint32(mask)
		if m == full {
			continue
		}
		best[m] = math.Inf(1)
		choice[m] = -1
		if bits.OnesCount32(m)&1 == 1 {
			continue
		}
		i := bits.TrailingZeros32(^m)
		for j := i + 1; j < k; j++ {
			bit := uint32(1) << j
			if m&bit != 0 {
				continue
			}
			next := m | 1<<i | bit
			if c := w[i*k+j] + best[next]; c < best[m] {
				best[m] = c
				choice[m] = int8(j)
			}
		}
	}
	if math.IsInf(best[0], 1) {
		return nil
	}

	pairs := make([][2]int, 0, k/2)
	for m := uint32(0); m != full; {
		i := bits.TrailingZeros32(^m)
		j := int(choice[m])
		pairs = append(pairs, [2]int{i, j})
		m |= 1<<i | 1<<j
	}
	return pairs
}
