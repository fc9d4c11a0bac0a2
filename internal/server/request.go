package server

import (
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/genetic"
)

// Built-in datasets selectable instead of explicit points
const (
	DatasetFrenchCities = "french_cities"
	DatasetUnitSquare   = "unit_square"
)

// OptimizeRequest starts an optimization job. Exactly one of Points and
// Dataset is set. Empty Algorithms runs both solvers.
type OptimizeRequest struct {
	Points     []optimization.Point `json:"points,omitempty" validate:"dive"`
	Dataset    string               `json:"dataset,omitempty" validate:"omitempty,oneof=french_cities unit_square"`
	Algorithms []string             `json:"algorithms,omitempty" validate:"dive,oneof=christofides genetic"`
	Metric     string               `json:"metric,omitempty" validate:"omitempty,oneof=haversine euclidean"`

	// Start names the point the Christofides tour starts from.
	Start string `json:"start,omitempty"`

	Genetic *GeneticOverrides `json:"genetic,omitempty"`
}

// GeneticOverrides replaces individual GA defaults for one job.
type GeneticOverrides struct {
	PopulationSize *int     `json:"population_size,omitempty"`
	Generations    *int     `json:"generations,omitempty"`
	TournamentK    *int     `json:"tournament_k,omitempty"`
	CrossoverRate  *float64 `json:"crossover_rate,omitempty"`
	MutationRate   *float64 `json:"mutation_rate,omitempty"`
	MutationOp     *string  `json:"mutation_op,omitempty"`
	Elitism        *int     `json:"elitism,omitempty"`
	Patience       *int     `json:"patience,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
}

// apply returns base with every set override replaced
func (o *GeneticOverrides) apply(base genetic.Config) genetic.Config {
	if o == nil {
		return base
	}
	if o.PopulationSize != nil {
		base.PopulationSize = *o.PopulationSize
	}
	if o.Generations != nil {
		base.Generations = *o.Generations
	}
	if o.TournamentK != nil {
		base.TournamentK = *o.TournamentK
	}
	if o.CrossoverRate != nil {
		base.CrossoverRate = *o.CrossoverRate
	}
	if o.MutationRate != nil {
		base.MutationRate = *o.MutationRate
	}
	if o.MutationOp != nil {
		base.MutationOp = genetic.MutationOp(*o.MutationOp)
	}
	if o.Elitism != nil {
		base.Elitism = *o.Elitism
	}
	if o.Patience != nil {
		base.Patience = *o.Patience
	}
	if o.Seed != nil {
		base = base.WithSeed(*o.Seed)
	}
	return base
}

// resolve validates the request and returns its point set and algorithms.
func (req *OptimizeRequest) resolve() ([]optimization.Point, []string, error) {
	const op = "OptimizeRequest.resolve"

	if err := optimization.ValidateStruct(op, optimization.ErrInvalidInput, req); err != nil {
		return nil, nil, err
	}

	points := req.Points
	switch {
	case req.Dataset != "" && len(points) > 0:
		return nil, nil, optimization.NewErrorf("points and dataset are mutually exclusive").
			WithCause(optimization.ErrInvalidInput).WithOperation(op)
	case req.Dataset == DatasetFrenchCities:
		points = optimization.FrenchCities()
	case req.Dataset == DatasetUnitSquare:
		points = optimization.UnitSquare()
	}
	if err := optimization.ValidatePoints(points); err != nil {
		return nil, nil, err
	}
	if req.Start != "" && !hasPoint(points, req.Start) {
		return nil, nil, optimization.NewErrorf("start point %q is not in the point set", req.Start).
			WithCause(optimization.ErrInvalidInput).WithOperation(op)
	}

	algorithms := req.Algorithms
	if len(algorithms) == 0 {
		algorithms = []string{optimization.AlgorithmChristofides, optimization.AlgorithmGenetic}
	}
	seen := make(map[string]bool, len(algorithms))
	unique := algorithms[:0:0]
	for _, a := range algorithms {
		if !seen[a] {
			seen[a] = true
			unique = append(unique, a)
		}
	}
	return points, unique, nil
}

func hasPoint(points []optimization.Point, name string) bool {
	for _, p := range points {
		if p.Name == name {
			return true
		}
	}
	return false
}
