package optimization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks v against its `validate` tags. Failures are wrapped
// in cause (ErrInvalidConfig or ErrInvalidInput) and list every failed field.
func ValidateStruct(op string, cause error, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return WrapError(err, "validation failed").WithOperation(op)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return NewErrorf("%s", strings.Join(msgs, "; ")).WithCause(cause).WithOperation(op)
}

// ValidatePoints checks that points can form a tour: at least two points,
// each with a non-empty unique name. Coordinates are not range-checked here.
func ValidatePoints(points []Point) error {
	const op = "ValidatePoints"

	if len(points) < 2 {
		return NewErrorf("need at least 2 points, got %d", len(points)).
			WithCause(ErrInvalidInput).WithOperation(op)
	}
	seen := make(map[string]int, len(points))
	for i, p := range points {
		if p.Name == "" {
			return NewErrorf("point %d has an empty name", i).
				WithCause(ErrInvalidInput).WithOperation(op)
		}
		if j, dup := seen[p.Name]; dup {
			return NewErrorf("duplicate point name %q at positions %d and %d", p.Name, j, i).
				WithCause(ErrInvalidInput).WithOperation(op)
		}
		seen[p.Name] = i
	}
	return nil
}

// ValidateTour checks that tour is closed over n vertices and visits each exactly once.
func ValidateTour(tour []int, n int) error {
	const op = "ValidateTour"

	if len(tour) != n+1 {
		return NewErrorf("tour has %d entries, want %d", len(tour), n+1).
			WithCause(ErrInvariantViolation).WithOperation(op)
	}
	if tour[0] != tour[n] {
		return NewErrorf("tour is not closed: starts at %d, ends at %d", tour[0], tour[n]).
			WithCause(ErrInvariantViolation).WithOperation(op)
	}
	seen := make([]bool, n)
	for _, v := range tour[:n] {
		if v < 0 || v >= n {
			return NewErrorf("vertex %d out of range [0,%d)", v, n).
				WithCause(ErrInvariantViolation).WithOperation(op)
		}
		if seen[v] {
			return NewErrorf("vertex %d visited twice", v).
				WithCause(ErrInvariantViolation).WithOperation(op)
		}
		seen[v] = true
	}
	return nil
}

// TourLength sums the consecutive edge weights of a closed tour under m.
// An open permutation is closed implicitly.
func TourLength(tour []int, points []Point, m metric.Metric) float64 {
	if len(tour) < 2 {
		return 0
	}
	total := 0.0
	for i := 0; i+1 < len(tour); i++ {
		total += m.Distance(points[tour[i]].Location(), points[tour[i+1]].Location())
	}
	if tour[0] != tour[len(tour)-1] {
		total += m.Distance(points[tour[len(tour)-1]].Location(), points[tour[0]].Location())
	}
	return total
}
