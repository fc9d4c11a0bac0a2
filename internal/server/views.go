package server

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

// StatusResponse is the client view of a job
type StatusResponse struct {
	ID         string                   `json:"optimization_id"`
	Status     JobStatus                `json:"status"`
	Points     int                      `json:"points"`
	StartTime  string                   `json:"start_time"`
	EndTime    string                   `json:"end_time,omitempty"`
	LastUpdate string                   `json:"last_update"`
	Results    map[string]AlgorithmView `json:"results"`
	Comparison *ComparisonView          `json:"comparison,omitempty"`
}

// AlgorithmView is the client view of one solver run
type AlgorithmView struct {
	Status         JobStatus                     `json:"status"`
	Error          string                        `json:"error,omitempty"`
	Tour           []string                      `json:"tour,omitempty"`
	Length         float64                       `json:"length,omitempty"`
	Generation     int                           `json:"generation,omitempty"`
	StopReason     string                        `json:"stop_reason,omitempty"`
	History        []float64                     `json:"history,omitempty"`
	InitialFitness float64                       `json:"initial_fitness,omitempty"`
	Progress       *optimization.ProgressSummary `json:"progress,omitempty"`
	Seed           *int64                        `json:"seed,omitempty"`
	Seeded         bool                          `json:"seeded,omitempty"`
	Artifacts      *ArtifactsView                `json:"artifacts,omitempty"`
	DurationMs     float64                       `json:"duration_ms,omitempty"`
}

// ArtifactsView lists the Christofides construction by point name
type ArtifactsView struct {
	MSTEdges       [][2]string `json:"mst_edges"`
	OddVertices    []string    `json:"odd_vertices"`
	MatchingEdges  [][2]string `json:"matching_edges"`
	EulerianWalk   []string    `json:"eulerian_walk"`
	MSTWeight      float64     `json:"mst_weight"`
	MatchingWeight float64     `json:"matching_weight"`
	WalkWeight     float64     `json:"walk_weight"`
	MatchingMethod string      `json:"matching_method"`
}

// ComparisonView relates the Christofides tour (a) to the genetic tour (b)
type ComparisonView struct {
	Common           [][2]string `json:"common_edges"`
	OnlyChristofides [][2]string `json:"only_christofides"`
	OnlyGenetic      [][2]string `json:"only_genetic"`
	Delta            float64     `json:"delta"`
	RelativePercent  float64     `json:"relative_percent"`
}

func newStatusResponse(state *OptimizationState) *StatusResponse {
	resp := &StatusResponse{
		ID:         state.ID,
		Status:     state.Status,
		Points:     len(state.Points),
		StartTime:  state.StartTime.Format(time.RFC3339),
		LastUpdate: state.LastUpdated.Format(time.RFC3339),
		Results:    make(map[string]AlgorithmView, len(state.Runs)),
	}
	if state.EndTime != nil {
		resp.EndTime = state.EndTime.Format(time.RFC3339)
	}

	for name, run := range state.Runs {
		resp.Results[name] = newAlgorithmView(run, state.Points)
	}

	ch, ga := state.Runs[optimization.AlgorithmChristofides], state.Runs[optimization.AlgorithmGenetic]
	if ch != nil && ga != nil && ch.Result != nil && ga.Result != nil {
		c := optimization.Compare(ch.Result, ga.Result)
		resp.Comparison = &ComparisonView{
			Common:           namePairs(c.Common, state.Points),
			OnlyChristofides: namePairs(c.OnlyA, state.Points),
			OnlyGenetic:      namePairs(c.OnlyB, state.Points),
			Delta:            c.Delta,
			RelativePercent:  c.RelativePercent,
		}
	}
	return resp
}

func newAlgorithmView(run *AlgorithmRun, points []optimization.Point) AlgorithmView {
	v := AlgorithmView{
		Status:     run.Status,
		Generation: run.Generation,
		Length:     run.BestLength,
	}
	if run.Err != nil {
		v.Error = run.Err.Error()
	}
	if run.EndTime != nil {
		v.DurationMs = float64(run.EndTime.Sub(run.StartTime).Microseconds()) / 1000.0
	}

	res := run.Result
	if res == nil {
		return v
	}
	v.Tour = res.Names
	v.Length = res.Length
	v.StopReason = res.StopReason
	if res.Algorithm == optimization.AlgorithmGenetic {
		v.History = res.History
		v.InitialFitness = res.InitialFitness
		p := optimization.Progress(res.History)
		v.Progress = &p
		seed := res.Seed
		v.Seed = &seed
		v.Seeded = res.Seeded
	}
	if a := res.Artifacts; a != nil {
		v.Artifacts = &ArtifactsView{
			MSTEdges:       edgeNames(a.MSTEdges, points),
			OddVertices:    vertexNames(a.OddVertices, points),
			MatchingEdges:  edgeNames(a.MatchingEdges, points),
			EulerianWalk:   vertexNames(a.EulerianWalk, points),
			MSTWeight:      a.MSTWeight,
			MatchingWeight: a.MatchingWeight,
			WalkWeight:     a.WalkWeight,
			MatchingMethod: a.MatchingMethod,
		}
	}
	return v
}

func vertexNames(vs []int, points []optimization.Point) []string {
	return optimization.Tour(vs).Names(points)
}

func edgeNames(edges []optimization.Edge, points []optimization.Point) [][2]string {
	out := make([][2]string, len(edges))
	for i, e := range edges {
		out[i] = [2]string{points[e.U].Name, points[e.V].Name}
	}
	return out
}

func namePairs(pairs [][2]int, points []optimization.Point) [][2]string {
	out := make([][2]string, len(pairs))
	for i, p := range pairs {
		out[i] = [2]string{points[p[0]].Name, points[p[1]].Name}
	}
	return out
}

// featureCollection renders the job as GeoJSON: one Point feature per city,
// one LineString per finished tour and, for Christofides, the spanning tree
// and matching as MultiLineStrings.
func featureCollection(state *OptimizationState) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, p := range state.Points {
		f := geojson.NewFeature(p.Location())
		f.Properties["kind"] = "point"
		f.Properties["name"] = p.Name
		f.Properties["index"] = i
		fc.Append(f)
	}

	for _, name := range state.Algorithms {
		run := state.Runs[name]
		if run == nil || run.Result == nil {
			continue
		}
		res := run.Result

		line := make(orb.LineString, len(res.Tour))
		for i, v := range res.Tour {
			line[i] = state.Points[v].Location()
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = "tour"
		f.Properties["algorithm"] = name
		f.Properties["length"] = res.Length
		fc.Append(f)

		if a := res.Artifacts; a != nil {
			fc.Append(edgeFeature("mst", name, a.MSTEdges, state.Points))
			fc.Append(edgeFeature("matching", name, a.MatchingEdges, state.Points))
		}
	}
	return fc
}

func edgeFeature(kind, algorithm string, edges []optimization.Edge, points []optimization.Point) *geojson.Feature {
	ml := make(orb.MultiLineString, len(edges))
	for i, e := range edges {
		ml[i] = orb.LineString{points[e.U].Location(), points[e.V].Location()}
	}
	f := geojson.NewFeature(ml)
	f.Properties["kind"] = kind
	f.Properties["algorithm"] = algorithm
	return f
}
