package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("pos", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	samples := testutil.CollectAndCount(metrics.ReqDur)
	if samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestRequestLoggerIncludesTenantAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	ctx := obs.WithRoutePattern(req.Context(), "/api/v1/orders")
	ctx = tenant.With(ctx, "8f2b8a9e-1b1e-4a44-9c8e-2d6c1f0b7a11")
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "/api/v1/orders", entry["route"])
	require.Equal(t, float64(http.StatusCreated), entry["status"])
	require.Equal(t, "8f2b8a9e-1b1e-4a44-9c8e-2d6c1f0b7a11", entry["tenant"])
}

func TestMetricsUseChiRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("pos", nil, registry)
	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Put("/api/v1/order-items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/order-items/42", bytes.NewBufferString(`{"discount":"0"}`))
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPut, "/api/v1/order-items/{id}", "409")))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.ReqBytes))

	again := obs.NewHTTPMetrics("pos", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestAnnotateReachesRequestLog(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware)
	r.Route("/api/v1", func(v chi.Router) {
		v.Use(tenant.NewResolver("X-Tenant-ID", "", "").Middleware)
		v.Use(common.OperatorFromHeader("X-Operator-ID"))
		v.Use(obs.Annotate)
		v.Delete("/order-items/{id}", func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order is closed and can no longer be edited", nil)
		})
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/order-items/7", nil)
	req.Header.Set("X-Tenant-ID", "8f2b8a9e-1b1e-4a44-9c8e-2d6c1f0b7a11")
	req.Header.Set("X-Operator-ID", "kasir-02")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "/api/v1/order-items/{id}", entry["route"])
	require.Equal(t, "8f2b8a9e-1b1e-4a44-9c8e-2d6c1f0b7a11", entry["tenant"])
	require.Equal(t, "kasir-02", entry["operator"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, obs.ParseBucketsCSV(" "))
	require.Equal(t, []float64{50, 10, 2.5}, obs.ParseBucketsCSV("50, x, -1, 0, 10,, 2.5"))
}
