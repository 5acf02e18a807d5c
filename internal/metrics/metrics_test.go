package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExecuted(t *testing.T) {
	r := New()

	r.CommandExecuted("lights_dim", true, time.Millisecond)
	r.CommandExecuted("lights_dim", true, time.Millisecond)
	r.CommandExecuted("bogus", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.commands.WithLabelValues("lights_dim", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("bogus", "false")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.commandDuration))
}

func TestParsedAndConnections(t *testing.T) {
	r := New()

	r.Parsed("ml_parser", false)
	r.Parsed("ml_parser", true)
	r.Parsed("fallback", false)
	r.ConnectionsChanged(3)
	r.ConnectionsChanged(2)
	r.DeliveryFailed(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.parses.WithLabelValues("ml_parser")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.parses.WithLabelValues(sourceCache)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.parses.WithLabelValues("fallback")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.broadcastFailures))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := New()
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Post("/api/lights/set-brightness/{brightness}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	router.Handle("/metrics", r.Handler())

	for _, v := range []string{"10", "20"} {
		req := httptest.NewRequest(http.MethodPost, "/api/lights/set-brightness/"+v, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(r.httpRequests.WithLabelValues(http.MethodPost, "/api/lights/set-brightness/{brightness}", "202"))
	assert.Equal(t, 2.0, got)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "http_requests_total"))
}
