package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/tsp-mcp/internal/logging"
	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

func TestErrorString(t *testing.T) {
	err := New("solve failed").WithOperation("runJob").WithComponent("server")
	assert.Equal(t, "solve failed: operation=runJob, component=server", err.Error())
	assert.NotEmpty(t, err.StackTrace())

	wrapped := Wrap(optimization.ErrInvalidInput, "bad request")
	assert.Equal(t, "bad request: invalid input", wrapped.Error())
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
}

func TestWrapKeepsChain(t *testing.T) {
	inner := New("job abc")
	outer := Wrapf(inner, "status %d", 3)

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, Is(outer, inner))
	assert.Same(t, inner, Unwrap(outer))

	var target *Error
	require.True(t, As(fmt.Errorf("ctx: %w", outer), &target))
	assert.Same(t, outer, target)

	solverErr := optimization.NewErrorf("odd count").WithCause(optimization.ErrInvariantViolation)
	assert.True(t, Is(Wrap(solverErr, "christofides"), optimization.ErrInvariantViolation))
	assert.False(t, Is(Wrap(solverErr, "christofides"), optimization.ErrCancelled))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{optimization.ErrInvalidInput, http.StatusBadRequest},
		{Wrap(optimization.ErrInvalidConfig, "ga"), http.StatusBadRequest},
		{optimization.ErrDisconnected, http.StatusUnprocessableEntity},
		{optimization.ErrCancelled, http.StatusConflict},
		{optimization.ErrInvariantViolation, http.StatusInternalServerError},
		{fmt.Errorf("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}

	assert.Equal(t, CodeInvalidParams, RPCCode(optimization.ErrInvalidInput))
	assert.Equal(t, CodeInternalError, RPCCode(optimization.ErrInvariantViolation))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Recovered from panic", entry["message"])
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "/api/v1/status/x", entry["path"])
	assert.NotEmpty(t, entry["stack"])
}

func TestErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	h := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "nope", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ok", nil))
	assert.Zero(t, buf.Len())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/bad", nil))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(400), entry["status"])
	assert.Equal(t, "/bad", entry["path"])
}

func TestErrorHandlerKeepsFlusher(t *testing.T) {
	logger := logging.New(logging.InfoLevel, &bytes.Buffer{})

	h := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok, "response writer must implement http.Flusher")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: ping\n\n"))
		f.Flush()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "data: ping\n\n", rec.Body.String())
}
