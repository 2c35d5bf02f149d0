package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewHTTPMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	m, err := NewHTTPMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantRoute  string
		wantStatus string
	}{
		{name: "matched route", path: "/v1/repositories/1f0e", wantRoute: "/v1/repositories/{id}", wantStatus: "202"},
		{name: "unmatched route", path: "/nope", wantRoute: unknownRoute, wantStatus: "404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
			t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

			m, err := NewHTTPMetrics(mp)
			require.NoError(t, err)

			r := chi.NewRouter()
			r.Use(m.Middleware)
			r.Get("/v1/repositories/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			})

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			var rm metricdata.ResourceMetrics
			require.NoError(t, reader.Collect(context.Background(), &rm))

			var points []metricdata.DataPoint[int64]
			for _, scope := range rm.ScopeMetrics {
				if scope.Scope.Name != HTTPMetricsMeterName {
					continue
				}
				for _, metric := range scope.Metrics {
					if metric.Name == "thv_skill_sync_http_requests_total" {
						points = metric.Data.(metricdata.Sum[int64]).DataPoints
					}
				}
			}
			require.Len(t, points, 1)
			assert.Equal(t, int64(1), points[0].Value)

			route, ok := points[0].Attributes.Value(attribute.Key("route"))
			require.True(t, ok)
			assert.Equal(t, tt.wantRoute, route.AsString())
			status, ok := points[0].Attributes.Value(attribute.Key("status_code"))
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, status.AsString())
		})
	}
}
