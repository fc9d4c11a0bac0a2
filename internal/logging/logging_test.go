package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(WarnLevel, &buf)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", map[string]interface{}{"k": 1})
	l.Error("also shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, float64(1), entries[0]["k"])
	assert.Contains(t, entries[0]["caller"], "logging/logging_test.go")
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLoggerFatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("bye")
	assert.Equal(t, 1, code)
	assert.Equal(t, "FATAL", decodeLines(t, &buf)[0]["level"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(DebugLevel, &buf).WithField("job", "a")
	child := parent.WithFields(map[string]interface{}{"job": "b", "algo": "genetic"})
	parent.WithError(errors.New("boom")).Info("parent")
	child.Info("child")
	assert.Same(t, parent, parent.WithError(nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0]["job"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.NotContains(t, entries[0], "algo")
	assert.Equal(t, "b", entries[1]["job"])
	assert.Equal(t, "genetic", entries[1]["algo"])
}

func TestNewLoggerConfig(t *testing.T) {
	l, err := NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, l.Level())

	l, err = NewLogger(&Config{Level: "debug", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, l.Level())
	assert.Equal(t, TextFormat, l.format)

	l, err = NewLogger(&Config{Level: "verbose"})
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, l.Level())

	_, err = NewLogger(&Config{Format: "xml"})
	assert.Error(t, err)
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf)
	l.format = TextFormat

	l.Info("solved", map[string]interface{}{"length": 12.5, "algorithm": "christofides"})
	line := buf.String()
	assert.Contains(t, line, "INFO  solved")
	assert.Contains(t, line, "algorithm=christofides")
	assert.Contains(t, line, "length=12.5")
	assert.Less(t, strings.Index(line, "algorithm="), strings.Index(line, "length="))
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	cl := &CtxLogger{New(InfoLevel, &buf).WithField("request_id", "r1")}
	ctx := cl.WithContext(context.Background())

	assert.Same(t, cl, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestZapLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).Named("genetic").With(zap.String("job", "j1"))

	zl.Debug("dropped")
	zl.Info("generation",
		zap.Int("generation", 7),
		zap.Float64("best", 1234.5),
		zap.Bool("seeded", true),
		zap.Duration("elapsed", 1500*time.Millisecond),
		zap.Error(errors.New("none")))
	zl.Warn("heuristic matching")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	e := entries[0]
	assert.Equal(t, "generation", e["message"])
	assert.Equal(t, "genetic", e["component"])
	assert.Equal(t, "j1", e["job"])
	assert.Equal(t, float64(7), e["generation"])
	assert.Equal(t, 1234.5, e["best"])
	assert.Equal(t, true, e["seeded"])
	assert.Equal(t, "1.5s", e["elapsed"])
	assert.Equal(t, "none", e["error"])
	assert.Contains(t, e["caller"], "logging/logging_test.go")
	assert.Equal(t, "WARN", entries[1]["level"])
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		_, _ = w.Write([]byte("fine"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "inside", entries[0]["message"])
	assert.NotEmpty(t, entries[0]["request_id"])
	assert.Equal(t, "/ok", entries[0]["path"])

	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, float64(200), entries[1]["status"])
	assert.Equal(t, float64(4), entries[1]["bytes"])

	assert.Equal(t, float64(404), entries[2]["status"])
	assert.Equal(t, "Not Found", entries[2]["error"])
}
