package optimization

import (
	"context"
	"sort"

	"github.com/paulmach/orb"
)

// Solver defines the interface for TSP solvers
type Solver interface {
	// Solve computes a closed tour over points
	Solve(ctx context.Context, points []Point) (*Result, error)

	// Name identifies the algorithm in results, logs and metrics
	Name() string
}

// Algorithm names reported by the solvers
const (
	AlgorithmChristofides = "christofides"
	AlgorithmGenetic      = "genetic"
)

// Point is a named geographic location. Lat and Lon are decimal degrees.
type Point struct {
	Name string  `json:"name" validate:"required"`
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Location returns the point as an orb.Point ([lon, lat]).
func (p Point) Location() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// PointsFromMap builds a point slice from a name -> (lat, lon) mapping.
// The result is sorted by name so that runs over the same mapping are reproducible.
func PointsFromMap(m map[string][2]float64) []Point {
	points := make([]Point, 0, len(m))
	for name, c := range m {
		points = append(points, Point{Name: name, Lat: c[0], Lon: c[1]})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Name < points[j].Name })
	return points
}

// Tour is a closed sequence of vertex indices into the point slice it was
// computed for: every vertex appears once, and the first vertex is repeated at the end.
type Tour []int

// Names maps the tour to point names.
func (t Tour) Names(points []Point) []string {
	names := make([]string, len(t))
	for i, v := range t {
		names[i] = points[v].Name
	}
	return names
}

// Edge is an undirected weighted edge between two vertex indices
type Edge struct {
	U      int     `json:"u"`
	V      int     `json:"v"`
	Weight float64 `json:"weight"`
}

// Key returns the endpoints ordered so that the first is the smaller index.
func (e Edge) Key() [2]int {
	if e.U > e.V {
		return [2]int{e.V, e.U}
	}
	return [2]int{e.U, e.V}
}

// Artifacts holds the intermediate structures of the Christofides pipeline
// for consumers that display the construction step by step.
type Artifacts struct {
	GraphEdges     []Edge  `json:"graph_edges"`
	MSTEdges       []Edge  `json:"mst_edges"`
	OddVertices    []int   `json:"odd_vertices"`
	MatchingEdges  []Edge  `json:"matching_edges"`
	EulerianEdges  []Edge  `json:"eulerian_edges"`
	EulerianWalk   []int   `json:"eulerian_walk"`
	MSTWeight      float64 `json:"mst_weight"`
	MatchingWeight float64 `json:"matching_weight"`
	WalkWeight     float64 `json:"walk_weight"`
	MatchingMethod string  `json:"matching_method"`
}

// Stop reasons reported by iterative solvers
const (
	StopMaxGenerations = "max_generations"
	StopStagnation     = "stagnation"
	StopCompleted      = "completed"
)

// Result contains the outcome of a solver run
type Result struct {
	Algorithm string `json:"algorithm"`

	// Tour is closed: Tour[0] == Tour[len(Tour)-1].
	Tour []int `json:"tour"`

	// Names is Tour mapped to point names.
	Names []string `json:"names"`

	// Length is the closed tour length in the metric's unit.
	Length float64 `json:"length"`

	// Artifacts is set by the Christofides solver only.
	Artifacts *Artifacts `json:"artifacts,omitempty"`

	// History holds one best-fitness value per completed generation (genetic only).
	History []float64 `json:"history,omitempty"`

	InitialFitness float64 `json:"initial_fitness,omitempty"`
	Generations    int     `json:"generations,omitempty"`
	StopReason     string  `json:"stop_reason"`

	// Seed is the seed the genetic solver actually used; Seeded reports
	// whether it was supplied by the caller.
	Seed   int64 `json:"seed,omitempty"`
	Seeded bool  `json:"seeded,omitempty"`
}
