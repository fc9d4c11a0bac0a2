package christofides

import (
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

// Shortcut turns a closed walk into a Hamiltonian cycle over n vertices by
// keeping each vertex at its first occurrence and returning to the start.
// Under the triangle inequality the cycle is no longer than the walk.
func Shortcut(walk []Step, n int) (optimization.Tour, error) {
	const op = "Shortcut"

	if len(walk) == 0 {
		return nil, optimization.NewErrorf("empty walk").
			WithCause(optimization.ErrInvariantViolation).WithComponent(component).WithOperation(op)
	}

	visited := make([]bool, n)
	tour := make(optimization.Tour, 0, n+1)
	visit := func(v int) {
		if !visited[v] {
			visited[v] = true
			tour = append(tour, v)
		}
	}
	visit(walk[0].From)
	for _, s := range walk {
		visit(s.To)
	}

	if len(tour) != n {
		return nil, optimization.NewErrorf("walk reaches %d of %d vertices", len(tour), n).
			WithCause(optimization.ErrInvariantViolation).WithComponent(component).WithOperation(op)
	}
	return append(tour, tour[0]), nil
}
