package genetic

import (
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

// MutationOp selects the mutation operator
type MutationOp string

const (
	// MutationSwap exchanges two random positions.
	MutationSwap MutationOp = "swap"
	// MutationInversion reverses a random contiguous slice.
	MutationInversion MutationOp = "inversion"
)

// DefaultEpsilon is the minimum strict improvement that resets stagnation.
const DefaultEpsilon = 1e-9

// Config contains configuration for the genetic engine
type Config struct {
	// PopulationSize is the number of tours per generation.
	PopulationSize int `json:"population_size" validate:"gt=0"`
	// Generations caps the number of generations.
	Generations int `json:"generations" validate:"gt=0"`
	// TournamentK is the number of individuals sampled per selection.
	TournamentK int `json:"tournament_k" validate:"gt=0"`
	// CrossoverRate is the probability a child is recombined rather than copied.
	CrossoverRate float64 `json:"crossover_rate" validate:"gte=0,lte=1"`
	// MutationRate is the probability a child is mutated.
	MutationRate float64 `json:"mutation_rate" validate:"gte=0,lte=1"`
	// MutationOp is the mutation operator.
	MutationOp MutationOp `json:"mutation_op" validate:"oneof=swap inversion"`
	// Elitism is the number of best individuals carried over unchanged.
	Elitism int `json:"elitism" validate:"gte=0,ltfield=PopulationSize"`
	// Patience is the number of generations without improvement before stopping.
	Patience int `json:"patience" validate:"gt=0"`
	// Seed makes runs reproducible. Nil draws a fresh seed per run; the seed
	// used is reported in the result either way.
	Seed *int64 `json:"seed,omitempty"`
	// Workers evaluates fitness on this many goroutines; 0 or 1 is serial.
	Workers int `json:"workers" validate:"gte=0"`
	// Epsilon is the improvement threshold; 0 selects DefaultEpsilon.
	Epsilon float64 `json:"epsilon" validate:"gte=0"`
}

// DefaultConfig returns the defaults: 400 tours, 800 generations, inversion
// mutation, unseeded.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 400,
		Generations:    800,
		TournamentK:    5,
		CrossoverRate:  0.95,
		MutationRate:   0.15,
		MutationOp:     MutationInversion,
		Elitism:        4,
		Patience:       120,
		Workers:        1,
		Epsilon:        DefaultEpsilon,
	}
}

// Validate checks every field and returns ErrInvalidConfig on failure.
func (c Config) Validate() error {
	return optimization.ValidateStruct("genetic.Config.Validate", optimization.ErrInvalidConfig, c)
}

// WithSeed returns a copy of c seeded with seed.
func (c Config) WithSeed(seed int64) Config {
	c.Seed = &seed
	return c
}
