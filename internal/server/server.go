// Package server exposes the TSP solvers over HTTP and JSON-RPC 2.0.
// Jobs run asynchronously; clients poll their status by ID.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/tsp-mcp/internal/config"
	apperrors "github.com/copyleftdev/tsp-mcp/internal/errors"
	"github.com/copyleftdev/tsp-mcp/internal/logging"
)

// Version is reported to MCP clients and in service logs
const Version = "1.0.0"

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server manages optimization jobs and the endpoints to start, monitor and
// cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *metrics

	// Optimization state management
	optimizations   map[string]*OptimizationState
	optimizationsMu sync.RWMutex // Protects the optimizations map and every state in it
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       newMetrics(),
		optimizations: make(map[string]*OptimizationState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/optimization/{id}/geojson", s.handleGeoJSON)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)

	r.Handle("/metrics", s.MetricsHandler())

	// MCP tools over streamable HTTP
	r.Handle("/mcp", s.MCPHandler(Version))
}

// Wait blocks until the job with the given ID has finished or timeout
// elapses, and reports whether it finished.
func (s *Server) Wait(id string, timeout time.Duration) bool {
	s.optimizationsMu.RLock()
	state, ok := s.optimizations[id]
	s.optimizationsMu.RUnlock()
	if !ok {
		return false
	}
	select {
	case <-state.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close cancels every running job and waits for their solvers to return.
func (s *Server) Close() error {
	s.optimizationsMu.Lock()
	pending := make([]*OptimizationState, 0, len(s.optimizations))
	for _, opt := range s.optimizations {
		if opt.CancelFunc != nil {
			opt.CancelFunc()
		}
		if !opt.Status.Terminal() {
			opt.Status = StatusCancelled
		}
		pending = append(pending, opt)
	}
	s.optimizationsMu.Unlock()

	for _, opt := range pending {
		<-opt.done
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// statusFor maps job registry and solver errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, errJobNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, errJobFinished):
		return http.StatusConflict
	case apperrors.Is(err, errTooManyJobs):
		return http.StatusServiceUnavailable
	default:
		return apperrors.HTTPStatus(err)
	}
}

// handleOptimize handles POST /api/v1/optimize
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	state, err := s.startOptimization(&req)
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Warn("Optimization rejected")
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"optimization_id": state.ID,
		"status":          StatusPending,
	})
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGeoJSON handles GET /api/v1/optimization/{id}/geojson
func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	s.optimizationsMu.RLock()
	state, ok := s.optimizations[chi.URLParam(r, "id")]
	if !ok {
		s.optimizationsMu.RUnlock()
		writeError(w, http.StatusNotFound, errJobNotFound)
		return
	}
	data, err := featureCollection(state).MarshalJSON()
	s.optimizationsMu.RUnlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelOptimization(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}
