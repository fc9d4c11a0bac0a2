package christofides

import (
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/graph"
)

const component = "christofides"

// OddVertices returns the vertices of odd degree in tree, ascending.
// The handshake lemma makes an odd count impossible; one is reported as
// ErrInvariantViolation.
func OddVertices(tree graph.Tree, n int) ([]int, error) {
	odd := make([]int, 0, n)
	for v, d := range tree.Degrees(n) {
		if d&1 == 1 {
			odd = append(odd, v)
		}
	}
	if len(odd)&1 == 1 {
		return nil, optimization.NewErrorf("%d odd-degree vertices", len(odd)).
			WithCause(optimization.ErrInvariantViolation).
			WithComponent(component).WithOperation("OddVertices")
	}
	return odd, nil
}
