package server

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/tsp-mcp/internal/errors"
	"github.com/copyleftdev/tsp-mcp/internal/logging"
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/christofides"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/genetic"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

// JobStatus is the lifecycle state of a job or of one algorithm run within it
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition can happen
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	errJobNotFound = stderrors.New("optimization not found")
	errJobFinished = stderrors.New("optimization already finished")
	errTooManyJobs = stderrors.New("too many optimizations in progress")
)

// AlgorithmRun tracks one solver within a job.
type AlgorithmRun struct {
	Algorithm string
	Status    JobStatus
	Result    *optimization.Result
	Err       error
	StartTime time.Time
	EndTime   *time.Time

	// Generation and BestLength report live genetic progress.
	Generation int
	BestLength float64
}

// OptimizationState represents the state of an optimization job.
// Fields are guarded by the server's optimizationsMu.
type OptimizationState struct {
	ID          string
	Status      JobStatus
	Points      []optimization.Point
	Algorithms  []string
	Runs        map[string]*AlgorithmRun
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	CancelFunc  context.CancelFunc

	solvers map[string]optimization.Solver
	done    chan struct{}
}

// startOptimization validates req, registers a job and starts its solvers.
func (s *Server) startOptimization(req *OptimizeRequest) (*OptimizationState, error) {
	points, algorithms, err := req.resolve()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	jobLogger := s.logger.WithFields(map[string]interface{}{"optimization_id": id})
	solvers, err := s.buildSolvers(req, algorithms, logging.NewZapLogger(jobLogger))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &OptimizationState{
		ID:          id,
		Status:      StatusPending,
		Points:      points,
		Algorithms:  algorithms,
		Runs:        make(map[string]*AlgorithmRun, len(algorithms)),
		StartTime:   now,
		LastUpdated: now,
		CancelFunc:  cancel,
		solvers:     solvers,
		done:        make(chan struct{}),
	}
	for _, a := range algorithms {
		state.Runs[a] = &AlgorithmRun{Algorithm: a, Status: StatusPending}
	}

	s.optimizationsMu.Lock()
	if !s.evictLocked() {
		s.optimizationsMu.Unlock()
		cancel()
		return nil, errTooManyJobs
	}
	s.optimizations[id] = state
	s.optimizationsMu.Unlock()

	s.metrics.activeJobs.Inc()
	jobLogger.Info("Optimization started", map[string]interface{}{
		"points":     len(points),
		"algorithms": algorithms,
	})

	go s.runOptimization(ctx, state)
	return state, nil
}

// evictLocked makes room for one more job by dropping the oldest finished
// job. It reports false when the registry is full of unfinished jobs.
func (s *Server) evictLocked() bool {
	limit := s.cfg.Optimization.MaxJobs
	if limit <= 0 || len(s.optimizations) < limit {
		return true
	}
	var oldest *OptimizationState
	for _, st := range s.optimizations {
		if st.Status.Terminal() && (oldest == nil || st.StartTime.Before(oldest.StartTime)) {
			oldest = st
		}
	}
	if oldest == nil {
		return false
	}
	delete(s.optimizations, oldest.ID)
	return true
}

func (s *Server) buildSolvers(req *OptimizeRequest, algorithms []string, zl *zap.Logger) (map[string]optimization.Solver, error) {
	metricName := req.Metric
	if metricName == "" {
		metricName = s.cfg.Optimization.Metric
	}
	m, err := metric.ByName(metricName)
	if err != nil {
		return nil, optimization.WrapError(optimization.ErrInvalidInput, err.Error())
	}

	solvers := make(map[string]optimization.Solver, len(algorithms))
	for _, a := range algorithms {
		switch a {
		case optimization.AlgorithmChristofides:
			cfg := christofides.Config{
				Metric:             m,
				DPMatchingLimit: s.cfg.Christofides.DPMatchingLimit,
				Start:              req.Start,
			}
			solver, err := christofides.NewSolver(cfg, zl)
			if err != nil {
				return nil, err
			}
			solvers[a] = solver

		case optimization.AlgorithmGenetic:
			base, err := s.cfg.GeneticDefaults()
			if err != nil {
				return nil, err
			}
			engine, err := genetic.NewEngine(req.Genetic.apply(base), m, zl)
			if err != nil {
				return nil, err
			}
			solvers[a] = engine
		}
	}
	return solvers, nil
}

// runOptimization runs every solver of the job on its own goroutine and
// settles the job status once all have returned.
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState) {
	defer close(state.done)
	defer s.metrics.activeJobs.Dec()

	s.optimizationsMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
		state.LastUpdated = time.Now()
	}
	s.optimizationsMu.Unlock()

	var wg sync.WaitGroup
	for _, a := range state.Algorithms {
		wg.Add(1)
		go func(solver optimization.Solver, run *AlgorithmRun) {
			defer wg.Done()
			s.runSolver(ctx, state, solver, run)
		}(state.solvers[a], state.Runs[a])
	}
	wg.Wait()

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
	state.solvers = nil
	if state.Status == StatusCancelled {
		return
	}
	state.Status = StatusCompleted
	for _, run := range state.Runs {
		if run.Status == StatusFailed {
			state.Status = StatusFailed
		}
	}
	s.logger.Info("Optimization finished", map[string]interface{}{
		"optimization_id": state.ID,
		"status":          state.Status,
	})
}

func (s *Server) runSolver(ctx context.Context, state *OptimizationState, solver optimization.Solver, run *AlgorithmRun) {
	start := time.Now()
	s.optimizationsMu.Lock()
	run.Status = StatusRunning
	run.StartTime = start
	s.optimizationsMu.Unlock()

	if engine, ok := solver.(*genetic.Engine); ok {
		engine.OnGeneration(func(gen int, best float64) {
			s.metrics.generations.Inc()
			s.optimizationsMu.Lock()
			run.Generation = gen
			run.BestLength = best
			state.LastUpdated = time.Now()
			s.optimizationsMu.Unlock()
		})
	}

	result, err := solver.Solve(ctx, state.Points)
	elapsed := time.Since(start)

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	end := time.Now()
	run.EndTime = &end
	state.LastUpdated = end
	switch {
	case err == nil:
		run.Status = StatusCompleted
		run.Result = result
		run.BestLength = result.Length
		run.Generation = result.Generations
		s.metrics.tourLength.WithLabelValues(run.Algorithm).Observe(result.Length)
	case apperrors.Is(err, optimization.ErrCancelled):
		run.Status = StatusCancelled
		run.Err = err
	default:
		failure := apperrors.Wrap(err, "solver failed").
			WithOperation("runSolver").WithComponent(run.Algorithm)
		run.Status = StatusFailed
		run.Err = err
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": state.ID,
			"algorithm":       run.Algorithm,
			"error":           failure.Error(),
			"stack":           strings.Join(failure.StackTrace(), "\n"),
		})
	}
	s.metrics.runs.WithLabelValues(run.Algorithm, string(run.Status)).Inc()
	s.metrics.duration.WithLabelValues(run.Algorithm).Observe(elapsed.Seconds())
}

// cancelOptimization requests cancellation of a running job.
func (s *Server) cancelOptimization(id string) error {
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	state, exists := s.optimizations[id]
	if !exists {
		return errJobNotFound
	}
	if state.Status.Terminal() {
		return apperrors.Wrapf(errJobFinished, "status %s", state.Status)
	}

	state.CancelFunc()
	state.Status = StatusCancelled
	state.LastUpdated = time.Now()

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// lookup returns a snapshot view of the job with the given ID.
func (s *Server) lookup(id string) (*StatusResponse, error) {
	s.optimizationsMu.RLock()
	defer s.optimizationsMu.RUnlock()

	state, exists := s.optimizations[id]
	if !exists {
		return nil, errJobNotFound
	}
	return newStatusResponse(state), nil
}
