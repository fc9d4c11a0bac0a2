// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/christofides"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/genetic"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// WorkerCount is the number of goroutines evaluating GA fitness.
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"4"`
		// MaxJobs bounds the number of jobs kept in memory; 0 is unbounded.
		MaxJobs int `env:"OPT_MAX_JOBS" envDefault:"100"`
		// Metric is the distance model: haversine or euclidean.
		Metric string `env:"OPT_METRIC" envDefault:"haversine"`
	}
	Christofides struct {
		DPMatchingLimit int `env:"CHRISTOFIDES_DP_MATCHING_LIMIT" envDefault:"20"`
	}
	Genetic struct {
		PopulationSize int     `env:"GA_POPULATION_SIZE" envDefault:"400"`
		Generations    int     `env:"GA_GENERATIONS" envDefault:"800"`
		TournamentK    int     `env:"GA_TOURNAMENT_K" envDefault:"5"`
		CrossoverRate  float64 `env:"GA_CROSSOVER_RATE" envDefault:"0.95"`
		MutationRate   float64 `env:"GA_MUTATION_RATE" envDefault:"0.15"`
		MutationOp     string  `env:"GA_MUTATION_OP" envDefault:"inversion"`
		Elitism        int     `env:"GA_ELITISM" envDefault:"4"`
		Patience       int     `env:"GA_PATIENCE" envDefault:"120"`
		// Seed is empty for unseeded runs.
		Seed string `env:"GA_SEED"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the solver defaults the way the solvers themselves will.
func (c *Config) Validate() error {
	if c.Optimization.WorkerCount < 1 {
		return optimization.NewErrorf("OPT_WORKER_COUNT must be at least 1, got %d", c.Optimization.WorkerCount).
			WithCause(optimization.ErrInvalidConfig).WithComponent("config")
	}
	if c.Optimization.MaxJobs < 0 {
		return optimization.NewErrorf("OPT_MAX_JOBS must not be negative, got %d", c.Optimization.MaxJobs).
			WithCause(optimization.ErrInvalidConfig).WithComponent("config")
	}
	if _, err := c.ChristofidesDefaults(); err != nil {
		return err
	}
	ga, err := c.GeneticDefaults()
	if err != nil {
		return err
	}
	return ga.Validate()
}

// ChristofidesDefaults returns the Christofides configuration described by c.
func (c *Config) ChristofidesDefaults() (christofides.Config, error) {
	m, err := metric.ByName(c.Optimization.Metric)
	if err != nil {
		return christofides.Config{}, optimization.WrapError(optimization.ErrInvalidConfig, err.Error()).
			WithComponent("config")
	}
	cfg := christofides.Config{
		Metric:          m,
		DPMatchingLimit: c.Christofides.DPMatchingLimit,
	}
	if cfg.DPMatchingLimit < 0 || cfg.DPMatchingLimit > christofides.MaxDPMatchingLimit {
		return cfg, optimization.NewErrorf("CHRISTOFIDES_DP_MATCHING_LIMIT must be in [0,%d], got %d",
			christofides.MaxDPMatchingLimit, cfg.DPMatchingLimit).
			WithCause(optimization.ErrInvalidConfig).WithComponent("config")
	}
	return cfg, nil
}

// GeneticDefaults returns the GA configuration described by the GA_*
// variables. Fitness evaluation uses OPT_WORKER_COUNT goroutines.
func (c *Config) GeneticDefaults() (genetic.Config, error) {
	g := c.Genetic
	cfg := genetic.DefaultConfig()
	cfg.PopulationSize = g.PopulationSize
	cfg.Generations = g.Generations
	cfg.TournamentK = g.TournamentK
	cfg.CrossoverRate = g.CrossoverRate
	cfg.MutationRate = g.MutationRate
	cfg.MutationOp = genetic.MutationOp(g.MutationOp)
	cfg.Elitism = g.Elitism
	cfg.Patience = g.Patience
	cfg.Workers = c.Optimization.WorkerCount

	if g.Seed != "" {
		seed, err := strconv.ParseInt(g.Seed, 10, 64)
		if err != nil {
			return cfg, optimization.WrapErrorf(optimization.ErrInvalidConfig, "GA_SEED %q is not an integer", g.Seed).
				WithComponent("config")
		}
		cfg = cfg.WithSeed(seed)
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}
