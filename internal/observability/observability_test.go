package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerWritesJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", slog.Int("attempt", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveUpstream("success", time.Second)
	m.Fallback("exhausted")
	m.SetOverloaded(1)
	m.SetPoolSize(2)
	h := m.HTTPMiddleware(http.NotFoundHandler())
	assert.NotNil(t, h)
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	m.ObserveUpstream("overloaded", 10*time.Millisecond)
	m.ObserveUpstream("overloaded", 10*time.Millisecond)
	m.Fallback("fatal")
	m.SetOverloaded(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("overloaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackRepliesTotal.WithLabelValues("fatal")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CredentialOverloaded))
}

func TestMetrics_HTTPMiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/api/chat/{chat_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/abc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/chat/{chat_id}", "GET", "Not Found")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
