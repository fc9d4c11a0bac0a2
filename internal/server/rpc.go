package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/tsp-mcp/internal/errors"
)

// JSON-RPC methods
const (
	MethodSolve  = "tsp.solve"
	MethodStatus = "tsp.status"
	MethodCancel = "tsp.cancel"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

// rpcError carries a JSON-RPC error code through the method handlers
type rpcError struct {
	code int
	err  error
}

func (e *rpcError) Error() string { return e.err.Error() }
func (e *rpcError) Unwrap() error { return e.err }

// decodeParams accepts either a params object or a one-element array
// holding it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return &rpcError{apperrors.CodeInvalidParams, apperrors.New("missing required parameters")}
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return &rpcError{apperrors.CodeInvalidParams, apperrors.New("invalid parameter format, expected object")}
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &rpcError{apperrors.CodeInvalidParams, apperrors.Wrap(err, "invalid parameters")}
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.OptimizationID == "" {
		return "", &rpcError{apperrors.CodeInvalidParams, apperrors.New("optimization_id is required")}
	}
	return p.OptimizationID, nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, apperrors.CodeParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, apperrors.CodeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case MethodSolve:
		result, err = s.rpcSolve(request.Params)
	case MethodStatus:
		result, err = s.rpcStatus(request.Params)
	case MethodCancel:
		result, err = s.rpcCancel(request.Params)
	default:
		s.respondWithError(w, apperrors.CodeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, rpcCode(err), err.Error(), request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func rpcCode(err error) int {
	var re *rpcError
	switch {
	case apperrors.As(err, &re):
		return re.code
	case apperrors.Is(err, errJobNotFound):
		return apperrors.CodeNotFound
	case apperrors.Is(err, errJobFinished), apperrors.Is(err, errTooManyJobs):
		return apperrors.CodeInvalidRequest
	default:
		return apperrors.RPCCode(err)
	}
}

// rpcSolve handles tsp.solve. Params are an OptimizeRequest; the result is
// {"optimization_id", "status"}.
func (s *Server) rpcSolve(params json.RawMessage) (interface{}, error) {
	var req OptimizeRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	state, err := s.startOptimization(&req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"optimization_id": state.ID,
		"status":          StatusPending,
	}, nil
}

// rpcStatus handles tsp.status with params {"optimization_id"}.
func (s *Server) rpcStatus(params json.RawMessage) (interface{}, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}
	return s.lookup(id)
}

// rpcCancel handles tsp.cancel with params {"optimization_id"}.
func (s *Server) rpcCancel(params json.RawMessage) (interface{}, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}
	if err := s.cancelOptimization(id); err != nil {
		return nil, err
	}
	return map[string]string{"status": "cancellation requested"}, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
