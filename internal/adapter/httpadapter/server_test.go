package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) (*httpadapter.Server, *observability.Metrics) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, reg, logger), metrics
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		readyErr   error
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{name: "liveness", path: "/healthz", wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "liveness ignores readiness", path: "/healthz", readyErr: errors.New("warming up"), wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "ready", path: "/readyz", wantCode: http.StatusOK, wantStatus: "ready"},
		{
			name:       "not ready",
			path:       "/readyz",
			readyErr:   errors.New("pipeline has not processed any messages yet"),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
			wantError:  "pipeline has not processed any messages yet",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(tt.readyErr)
			rec := get(t, srv, tt.path)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, metrics := newTestServer(nil)
	metrics.Analyses.WithLabelValues("hydrograph", "ok").Inc()
	metrics.PipelineRunning.Set(1)

	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `hydro_etl_analyses_total{kind="hydrograph",status="ok"} 1`)
	assert.Contains(t, body, "hydro_etl_pipeline_running 1")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/stations").Code)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
