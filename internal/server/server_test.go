package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/tsp-mcp/internal/config"
	"github.com/copyleftdev/tsp-mcp/internal/logging"
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
	"github.com/copyleftdev/tsp-mcp/internal/optimization/christofides"
)

// testConfig creates a test configuration with small GA defaults
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	// Set up HTTP config
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	// Set up logging
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stdout"

	// Set up optimization
	cfg.Optimization.WorkerCount = 2
	cfg.Optimization.MaxJobs = 10
	cfg.Optimization.Metric = "haversine"
	cfg.Christofides.DPMatchingLimit = 20

	cfg.Genetic.PopulationSize = 40
	cfg.Genetic.Generations = 60
	cfg.Genetic.TournamentK = 3
	cfg.Genetic.CrossoverRate = 0.9
	cfg.Genetic.MutationRate = 0.2
	cfg.Genetic.MutationOp = "inversion"
	cfg.Genetic.Elitism = 2
	cfg.Genetic.Patience = 30
	cfg.Genetic.Seed = "7"

	require.NoError(t, cfg.Validate())
	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	logger, err := logging.NewLogger(&logging.Config{
		Level:  "warn",
		Format: "text",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

type testServer struct {
	*Server
	router chi.Router
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	srv := NewServer(cfg, testLogger(t))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	t.Cleanup(func() { _ = srv.Close() })
	return &testServer{Server: srv, router: r}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func (ts *testServer) start(t *testing.T, req OptimizeRequest) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/v1/optimize", req)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp["status"])
	id, _ := resp["optimization_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func (ts *testServer) status(t *testing.T, id string) StatusResponse {
	t.Helper()
	rr := ts.do(t, http.MethodGet, "/api/v1/status/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	assert.NotNil(t, srv, "Server should be created")
}

func TestRegisterRoutes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"GET", "/api/v1/optimization/123/geojson", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"POST", "/rpc", true},
		{"GET", "/metrics", true},
		{"POST", "/mcp", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, nil)
			// registered routes answer unknown IDs with a JSON error body
			if tt.shouldExist {
				assert.False(t, rr.Code == http.StatusNotFound && !strings.Contains(rr.Body.String(), "error"),
					"route %s %s should exist", tt.method, tt.path)
			} else {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			}
		})
	}
}

func TestOptimizeBothAlgorithms(t *testing.T) {
	ts := newTestServer(t)
	id := ts.start(t, OptimizeRequest{Dataset: DatasetFrenchCities})
	require.True(t, ts.Wait(id, 30*time.Second))

	resp := ts.status(t, id)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, 20, resp.Points)
	assert.NotEmpty(t, resp.EndTime)
	require.Len(t, resp.Results, 2)

	ch := resp.Results[optimization.AlgorithmChristofides]
	assert.Equal(t, StatusCompleted, ch.Status)
	require.Len(t, ch.Tour, 21)
	assert.Equal(t, ch.Tour[0], ch.Tour[20])
	require.NotNil(t, ch.Artifacts)
	assert.Len(t, ch.Artifacts.MSTEdges, 19)
	assert.Len(t, ch.Artifacts.MatchingEdges, len(ch.Artifacts.OddVertices)/2)
	assert.Equal(t, christofides.MatchingDP, ch.Artifacts.MatchingMethod)
	assert.LessOrEqual(t, ch.Length, ch.Artifacts.WalkWeight+1e-9)
	assert.Equal(t, optimization.StopCompleted, ch.StopReason)

	ga := resp.Results[optimization.AlgorithmGenetic]
	assert.Equal(t, StatusCompleted, ga.Status)
	require.Len(t, ga.Tour, 21)
	assert.Len(t, ga.History, ga.Generation)
	require.NotNil(t, ga.Progress)
	assert.Equal(t, ga.Length, ga.Progress.Final)
	require.NotNil(t, ga.Seed)
	assert.Equal(t, int64(7), *ga.Seed)
	assert.True(t, ga.Seeded)

	require.NotNil(t, resp.Comparison)
	c := resp.Comparison
	assert.Equal(t, 20, len(c.Common)+len(c.OnlyChristofides))
	assert.Equal(t, 20, len(c.Common)+len(c.OnlyGenetic))
	assert.InDelta(t, ga.Length-ch.Length, c.Delta, 1e-6)
}

func TestOptimizeExplicitPoints(t *testing.T) {
	ts := newTestServer(t)
	seed := int64(3)
	id := ts.start(t, OptimizeRequest{
		Points:     optimization.UnitSquare(),
		Algorithms: []string{"christofides", "christofides"},
		Start:      "C",
		Genetic:    &GeneticOverrides{Seed: &seed},
	})
	require.True(t, ts.Wait(id, 10*time.Second))

	resp := ts.status(t, id)
	require.Len(t, resp.Results, 1)
	ch := resp.Results["christofides"]
	assert.Equal(t, "C", ch.Tour[0])
	assert.Nil(t, resp.Comparison)
}

func TestOptimizeValidation(t *testing.T) {
	ts := newTestServer(t)
	bad := 2.0

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"malformed body", "{", http.StatusBadRequest},
		{"no points", OptimizeRequest{}, http.StatusBadRequest},
		{"single point", OptimizeRequest{Points: []optimization.Point{{Name: "a"}}}, http.StatusBadRequest},
		{"duplicate names", OptimizeRequest{Points: []optimization.Point{{Name: "a"}, {Name: "a", Lat: 1}}}, http.StatusBadRequest},
		{"latitude out of range", OptimizeRequest{Points: []optimization.Point{{Name: "a", Lat: 95}, {Name: "b"}}}, http.StatusBadRequest},
		{"unknown algorithm", OptimizeRequest{Dataset: DatasetUnitSquare, Algorithms: []string{"annealing"}}, http.StatusBadRequest},
		{"unknown dataset", OptimizeRequest{Dataset: "paris_metro"}, http.StatusBadRequest},
		{"points and dataset", OptimizeRequest{Dataset: DatasetUnitSquare, Points: optimization.UnitSquare()}, http.StatusBadRequest},
		{"unknown start", OptimizeRequest{Dataset: DatasetUnitSquare, Start: "Z"}, http.StatusBadRequest},
		{"bad GA override", OptimizeRequest{Dataset: DatasetUnitSquare, Genetic: &GeneticOverrides{MutationRate: &bad}}, http.StatusBadRequest},
		{"unknown metric", OptimizeRequest{Dataset: DatasetUnitSquare, Metric: "manhattan"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/v1/optimize", tt.body)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), "error")
		})
	}
}

func TestCancel(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Genetic.PopulationSize = 200
		c.Genetic.Generations = 1_000_000
		c.Genetic.Patience = 1_000_000
	})
	id := ts.start(t, OptimizeRequest{Dataset: DatasetFrenchCities, Algorithms: []string{"genetic"}})

	rr := ts.do(t, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, ts.Wait(id, 10*time.Second))

	resp := ts.status(t, id)
	assert.Equal(t, StatusCancelled, resp.Status)
	ga := resp.Results["genetic"]
	assert.Equal(t, StatusCancelled, ga.Status)
	assert.Contains(t, ga.Error, "cancelled")
	assert.Empty(t, ga.Tour)

	rr = ts.do(t, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/api/v1/optimization/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGeoJSON(t *testing.T) {
	ts := newTestServer(t)
	id := ts.start(t, OptimizeRequest{Dataset: DatasetUnitSquare})
	require.True(t, ts.Wait(id, 10*time.Second))

	rr := ts.do(t, http.MethodGet, "/api/v1/optimization/"+id+"/geojson", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties["kind"].(string)]++
		switch f.Properties["kind"] {
		case "point":
			assert.Equal(t, "Point", f.Geometry.Type)
		case "tour":
			assert.Equal(t, "LineString", f.Geometry.Type)
			var coords [][2]float64
			require.NoError(t, json.Unmarshal(f.Geometry.Coordinates, &coords))
			assert.Len(t, coords, 5)
			assert.Equal(t, coords[0], coords[4])
		default:
			assert.Equal(t, "MultiLineString", f.Geometry.Type)
		}
	}
	assert.Equal(t, map[string]int{"point": 4, "tour": 2, "mst": 1, "matching": 1}, kinds)

	rr = ts.do(t, http.MethodGet, "/api/v1/optimization/nope/geojson", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMaxJobs(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Optimization.MaxJobs = 1 })

	first := ts.start(t, OptimizeRequest{Dataset: DatasetUnitSquare, Algorithms: []string{"christofides"}})
	require.True(t, ts.Wait(first, 10*time.Second))

	second := ts.start(t, OptimizeRequest{Dataset: DatasetUnitSquare, Algorithms: []string{"christofides"}})
	rr := ts.do(t, http.MethodGet, "/api/v1/status/"+first, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "finished job is evicted")
	require.True(t, ts.Wait(second, 10*time.Second))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.start(t, OptimizeRequest{Dataset: DatasetUnitSquare})
	require.True(t, ts.Wait(id, 10*time.Second))

	rr := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `tsp_runs_total{algorithm="christofides",status="completed"} 1`)
	assert.Contains(t, body, `tsp_runs_total{algorithm="genetic",status="completed"} 1`)
	assert.Contains(t, body, "tsp_genetic_generations_total")
	assert.Contains(t, body, "tsp_tour_length_bucket")
	assert.Contains(t, body, "tsp_active_jobs 0")
}

func rpcCall(t *testing.T, ts *testServer, method string, params interface{}) map[string]interface{} {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestJSONRPC(t *testing.T) {
	ts := newTestServer(t)

	resp := rpcCall(t, ts, MethodSolve, []interface{}{map[string]interface{}{"dataset": "unit_square"}})
	require.Nil(t, resp["error"], resp)
	result := resp["result"].(map[string]interface{})
	id := result["optimization_id"].(string)
	require.True(t, ts.Wait(id, 10*time.Second))

	resp = rpcCall(t, ts, MethodStatus, map[string]interface{}{"optimization_id": id})
	require.Nil(t, resp["error"], resp)
	status := resp["result"].(map[string]interface{})
	assert.Equal(t, "completed", status["status"])
	assert.Contains(t, status, "comparison")

	resp = rpcCall(t, ts, MethodCancel, map[string]interface{}{"optimization_id": id})
	assert.Equal(t, float64(-32600), resp["error"].(map[string]interface{})["code"])

	tests := []struct {
		name   string
		method string
		params interface{}
		code   float64
	}{
		{"unknown method", "tsp.teleport", nil, -32601},
		{"missing params", MethodStatus, nil, -32602},
		{"missing id", MethodStatus, map[string]interface{}{}, -32602},
		{"unknown id", MethodStatus, map[string]interface{}{"optimization_id": "x"}, -32004},
		{"invalid points", MethodSolve, map[string]interface{}{"points": []interface{}{}}, -32602},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rpcCall(t, ts, tt.method, tt.params)
			errObj, ok := resp["error"].(map[string]interface{})
			require.True(t, ok, resp)
			assert.Equal(t, tt.code, errObj["code"])
			assert.Equal(t, float64(1), resp["id"])
		})
	}

	rr := ts.do(t, http.MethodPost, "/rpc", "not json")
	assert.Contains(t, rr.Body.String(), "-32700")
	rr = ts.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"1.0","method":"tsp.status","id":2}`)
	assert.Contains(t, rr.Body.String(), "-32600")
}

func TestClose(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	err := srv.Close()
	assert.NoError(t, err, "Close should not return an error")
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
		expectCode int
	}{
		{
			name:       "valid error response",
			code:       -32602,
			message:    "invalid input",
			id:         "123",
			expectedID: "123",
			expectCode: http.StatusOK, // Because respondWithError writes 200 with error in body
		},
		{
			name:       "nil id",
			code:       -32603,
			message:    "server error",
			id:         nil,
			expectedID: nil,
			expectCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, tt.expectCode, rr.Code, "status code should match")

			var response map[string]interface{}
			err := json.NewDecoder(rr.Body).Decode(&response)
			assert.NoError(t, err, "should decode response body")

			errObj, ok := response["error"].(map[string]interface{})
			assert.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"], "error code should match")
			assert.Equal(t, tt.message, errObj["message"], "error message should match")
			assert.Equal(t, tt.expectedID, response["id"], "response ID should match")
		})
	}
}

type failingSolver struct{}

func (failingSolver) Name() string { return optimization.AlgorithmChristofides }

func (failingSolver) Solve(ctx context.Context, points []optimization.Point) (*optimization.Result, error) {
	return nil, optimization.NewErrorf("odd vertex count 3").WithCause(optimization.ErrInvariantViolation)
}

func TestFailedRunLogsStack(t *testing.T) {
	var buf bytes.Buffer
	srv := NewServer(testConfig(t), logging.New(logging.ErrorLevel, &buf))

	state := &OptimizationState{ID: "job-1"}
	run := &AlgorithmRun{Algorithm: optimization.AlgorithmChristofides}
	srv.runSolver(context.Background(), state, failingSolver{}, run)

	assert.Equal(t, StatusFailed, run.Status)
	assert.ErrorIs(t, run.Err, optimization.ErrInvariantViolation)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Optimization failed", entry["message"])
	assert.Equal(t, "job-1", entry["optimization_id"])
	assert.Contains(t, entry["error"], "operation=runSolver")
	assert.Contains(t, entry["stack"], "runSolver")
}
