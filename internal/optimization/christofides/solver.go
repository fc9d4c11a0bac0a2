package christofides

import (
	"context"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/graph"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/metric"
)

// Config contains configuration for the Christofides solver
type Config struct {
	// Metric weights the complete graph; nil means haversine in kilometers.
	Metric metric.Metric

	// DPMatchingLimit is the largest odd-vertex set matched by subset DP;
	// larger sets use the blossom algorithm. Zero selects DefaultDPMatchingLimit.
	DPMatchingLimit int `validate:"gte=0,lte=24"`

	// Start names the point the Eulerian circuit, and so the tour, starts
	// from. Empty means the first point.
	Start string
}

// DefaultConfig returns the haversine metric and the default matching limit.
func DefaultConfig() Config {
	return Config{
		Metric:          metric.NewHaversine(),
		DPMatchingLimit: DefaultDPMatchingLimit,
	}
}

// Solver runs the Christofides pipeline
type Solver struct {
	cfg    Config
	logger *zap.Logger
}

// NewSolver validates cfg and returns a solver. A nil logger discards output.
func NewSolver(cfg Config, logger *zap.Logger) (*Solver, error) {
	if err := optimization.ValidateStruct("christofides.NewSolver", optimization.ErrInvalidConfig, cfg); err != nil {
		return nil, err
	}
	if cfg.Metric == nil {
		cfg.Metric = metric.NewHaversine()
	}
	if cfg.DPMatchingLimit == 0 {
		cfg.DPMatchingLimit = DefaultDPMatchingLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{cfg: cfg, logger: logger.Named(component)}, nil
}

// Name returns the algorithm name
func (s *Solver) Name() string { return optimization.AlgorithmChristofides }

// Solve computes a Christofides tour over points. The stages run strictly in
// sequence; ctx is checked between them.
func (s *Solver) Solve(ctx context.Context, points []optimization.Point) (*optimization.Result, error) {
	const op = "Solve"

	g, err := graph.Complete(points, s.cfg.Metric)
	if err != nil {
		return nil, err
	}
	n := g.Len()

	start := 0
	if s.cfg.Start != "" {
		start = -1
		for i, p := range points {
			if p.Name == s.cfg.Start {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, optimization.NewErrorf("start point %q not in point set", s.cfg.Start).
				WithCause(optimization.ErrInvalidConfig).WithComponent(component).WithOperation(op)
		}
	}
	s.logger.Debug("built complete graph",
		zap.Int("vertices", n),
		zap.Int("edges", g.EdgeCount()),
		zap.String("metric", s.cfg.Metric.Name()))

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	tree, err := graph.MinimumSpanningTree(g)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("computed minimum spanning tree",
		zap.Int("edges", len(tree.Edges)),
		zap.Float64("weight", tree.Weight))

	odd, err := OddVertices(tree, n)
	if err != nil {
		s.logger.Error("odd vertex invariant violated", zap.Error(err))
		return nil, err
	}

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	matching, err := MinimumWeightPerfectMatching(g, odd, s.cfg.DPMatchingLimit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("computed odd-vertex matching",
		zap.Int("odd_vertices", len(odd)),
		zap.Int("pairs", len(matching.Pairs)),
		zap.Float64("weight", matching.Weight),
		zap.String("method", matching.Method))

	mg := NewMultigraph(n, tree.Edges, matching.Pairs)
	walk, err := mg.EulerianCircuit(start)
	if err != nil {
		s.logger.Error("eulerian circuit failed", zap.Error(err))
		return nil, err
	}

	tour, err := Shortcut(walk, n)
	if err != nil {
		return nil, err
	}
	if err := optimization.ValidateTour(tour, n); err != nil {
		return nil, err
	}

	length := tourWeight(g, tour)
	stepWeights := make([]float64, len(walk))
	for i, st := range walk {
		stepWeights[i] = mg.Edges()[st.Edge].Weight
	}
	walkWeight := floats.Sum(stepWeights)

	s.logger.Debug("shortcut eulerian circuit",
		zap.Int("walk_steps", len(walk)),
		zap.Float64("walk_weight", walkWeight),
		zap.Float64("tour_length", length))

	return &optimization.Result{
		Algorithm:  optimization.AlgorithmChristofides,
		Tour:       tour,
		Names:      optimization.Tour(tour).Names(points),
		Length:     length,
		StopReason: optimization.StopCompleted,
		Artifacts: &optimization.Artifacts{
			GraphEdges:     g.Edges(),
			MSTEdges:       tree.Edges,
			OddVertices:    odd,
			MatchingEdges:  matching.Pairs,
			EulerianEdges:  multiEdges(mg),
			EulerianWalk:   WalkVertices(walk),
			MSTWeight:      tree.Weight,
			MatchingWeight: matching.Weight,
			WalkWeight:     walkWeight,
			MatchingMethod: matching.Method,
		},
	}, nil
}

func tourWeight(g *graph.Graph, tour optimization.Tour) float64 {
	total := 0.0
	for i := 0; i+1 < len(tour); i++ {
		w, _ := g.Weight(tour[i], tour[i+1])
		total += w
	}
	return total
}

func multiEdges(mg *Multigraph) []optimization.Edge {
	edges := make([]optimization.Edge, len(mg.Edges()))
	for i, e := range mg.Edges() {
		edges[i] = e.Edge
	}
	return edges
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return optimization.WrapError(optimization.ErrCancelled, err.Error()).WithComponent(component)
	}
	return nil
}
