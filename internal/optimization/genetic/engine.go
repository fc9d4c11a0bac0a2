// Package genetic implements a genetic algorithm for the TSP: tournament
// selection, order crossover, swap or inversion mutation, elitism, and
// stagnation-based termination.
//
// All randomness comes from one *rand.Rand owned by the engine and is drawn
// in a fixed order (initial permutations; then per child: parent 1
// tournament, parent 2 tournament, crossover coin, crossover cuts, mutation
// coin, mutation positions). Fitness evaluation may run on several
// goroutines since it draws no randomness.
package genetic

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/graph"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

const component = "genetic"

// GenerationFunc is called after every completed generation with the
// generation number (1-based) and the incumbent best fitness.
type GenerationFunc func(generation int, best float64)

// Engine is the genetic optimizer. An Engine may be reused for several runs
// but runs one at a time; Best and History are safe to call concurrently
// with a run.
type Engine struct {
	cfg          Config
	metric       metric.Metric
	logger       *zap.Logger
	onGeneration GenerationFunc

	mu         sync.RWMutex
	best       []int
	bestFit    float64
	history    []float64
	generation int
}

// NewEngine validates cfg and creates an engine. A nil metric means
// haversine; a nil logger discards output.
func NewEngine(cfg Config, m metric.Metric, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if m == nil {
		m = metric.NewHaversine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		metric: m,
		logger: logger.Named(component),
	}, nil
}

// OnGeneration registers fn to be called after each generation.
func (e *Engine) OnGeneration(fn GenerationFunc) {
	e.onGeneration = fn
}

// Name returns the algorithm name
func (e *Engine) Name() string { return optimization.AlgorithmGenetic }

// Config returns the engine configuration
func (e *Engine) Config() Config { return e.cfg }

// Best returns the incumbent best permutation (open, not closed) and its length.
func (e *Engine) Best() ([]int, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]int(nil), e.best...), e.bestFit
}

// History returns the best fitness of every completed generation so far.
func (e *Engine) History() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]float64(nil), e.history...)
}

// Generation returns the number of completed generations of the current run.
func (e *Engine) Generation() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Solve evolves a population of tours over points and returns the best one.
// ctx is checked once per generation; cancellation returns ErrCancelled.
func (e *Engine) Solve(ctx context.Context, points []optimization.Point) (*optimization.Result, error) {
	g, err := graph.Complete(points, e.metric)
	if err != nil {
		return nil, err
	}
	n := g.Len()
	dist := make([]float64, n*n)
	for u := 0; u < n; u++ {
		for v := 0; v < n; v++ {
			dist[u*n+v], _ = g.Weight(u, v)
		}
	}

	seed, seeded := time.Now().UnixNano(), false
	if e.cfg.Seed != nil {
		seed, seeded = *e.cfg.Seed, true
	}
	rng := rand.New(rand.NewSource(seed))
	mutate := mutator(e.cfg.MutationOp)
	eval := &evaluator{dist: dist, n: n, workers: e.cfg.Workers}

	pop := make([][]int, e.cfg.PopulationSize)
	for i := range pop {
		pop[i] = rng.Perm(n)
	}
	fit := eval.fitness(pop)

	bi := argmin(fit)
	e.reset(pop[bi], fit[bi])
	initial := fit[bi]
	e.logger.Debug("initial population",
		zap.Int("cities", n),
		zap.Int("population", len(pop)),
		zap.Float64("best", initial),
		zap.Int64("seed", seed),
		zap.Bool("seeded", seeded))

	var (
		stall  int
		reason = optimization.StopMaxGenerations
		order  = make([]int, len(pop))
	)
	for gen := 1; gen <= e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			e.logger.Info("run cancelled", zap.Int("generation", gen-1))
			return nil, optimization.WrapError(optimization.ErrCancelled, err.Error()).
				WithComponent(component).WithOperation("Solve")
		}

		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return fit[order[a]] < fit[order[b]] })

		next := make([][]int, 0, len(pop))
		for _, i := range order[:e.cfg.Elitism] {
			next = append(next, append([]int(nil), pop[i]...))
		}
		for len(next) < len(pop) {
			p1 := pop[tournament(fit, e.cfg.TournamentK, rng)]
			p2 := pop[tournament(fit, e.cfg.TournamentK, rng)]
			var child []int
			if rng.Float64() < e.cfg.CrossoverRate {
				child = orderCrossover(p1, p2, rng)
			} else {
				child = append([]int(nil), p1...)
			}
			if rng.Float64() < e.cfg.MutationRate {
				mutate(child, rng)
			}
			next = append(next, child)
		}

		pop = next
		fit = eval.fitness(pop)
		bi = argmin(fit)

		_, incumbent := e.Best()
		improved := fit[bi]+e.cfg.Epsilon < incumbent
		if improved {
			stall = 0
		} else {
			stall++
		}
		best := e.record(gen, pop[bi], fit[bi], improved)

		if ce := e.logger.Check(zapcore.DebugLevel, "generation"); ce != nil {
			mean, std := stat.MeanStdDev(fit, nil)
			ce.Write(
				zap.Int("generation", gen),
				zap.Float64("best", best),
				zap.Float64("population_best", fit[bi]),
				zap.Float64("mean", mean),
				zap.Float64("stddev", std),
				zap.Int("stall", stall))
		}
		if e.onGeneration != nil {
			e.onGeneration(gen, best)
		}

		if stall >= e.cfg.Patience {
			reason = optimization.StopStagnation
			break
		}
	}

	perm, length := e.Best()
	tour := append(perm, perm[0])
	res := &optimization.Result{
		Algorithm:      optimization.AlgorithmGenetic,
		Tour:           tour,
		Names:          optimization.Tour(tour).Names(points),
		Length:         length,
		History:        e.History(),
		InitialFitness: initial,
		Generations:    e.Generation(),
		StopReason:     reason,
		Seed:           seed,
		Seeded:         seeded,
	}
	e.logger.Info("run finished",
		zap.Float64("length", length),
		zap.Int("generations", res.Generations),
		zap.String("stop_reason", reason))
	return res, nil
}

func (e *Engine) reset(best []int, fit float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.best = append([]int(nil), best...)
	e.bestFit = fit
	e.history = make([]float64, 0, e.cfg.Generations)
	e.generation = 0
}

// record closes generation gen, replacing the incumbent if improved, and
// returns the incumbent fitness appended to the history.
func (e *Engine) record(gen int, cand []int, fit float64, improved bool) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if improved {
		e.best = append([]int(nil), cand...)
		e.bestFit = fit
	}
	e.history = append(e.history, e.bestFit)
	e.generation = gen
	return e.bestFit
}

func argmin(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best
}

// evaluator computes closed-tour lengths over a flat distance matrix
type evaluator struct {
	dist    []float64
	n       int
	workers int
}

func (ev *evaluator) length(t []int) float64 {
	total := 0.0
	for i := 0; i+1 < len(t); i++ {
		total += ev.dist[t[i]*ev.n+t[i+1]]
	}
	return total + ev.dist[t[len(t)-1]*ev.n+t[0]]
}

// fitness evaluates every individual; with several workers the population
// is split into contiguous chunks and joined before returning.
func (ev *evaluator) fitness(pop [][]int) []float64 {
	fit := make([]float64, len(pop))
	workers := ev.workers
	if workers <= 1 || len(pop) < 2*workers {
		for i, t := range pop {
			fit[i] = ev.length(t)
		}
		return fit
	}

	chunk := (len(pop) + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < len(pop); lo += chunk {
		hi := lo + chunk
		if hi > len(pop) {
			hi = len(pop)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fit[i] = ev.length(pop[i])
			}
		}(lo, hi)
	}
	wg.Wait()
	return fit
}
