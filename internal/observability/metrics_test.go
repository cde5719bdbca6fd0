package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/ledgerflow/internal/jobs"
)

func TestHandlerIncludesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	_ = jobmetrics.NewMetrics(nil).Track("imports:csv").End(nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ledgerflow_jobs_total")
	assert.Contains(t, rr.Body.String(), "ledgerflow_http_requests_in_flight")
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/v1/clients/{clientID}/imports/{batchID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{
		"/v1/clients/7b0e4c8a-4f7e-4a57-8d5c-2a1d0b9b1c11/imports/1c1a5f0e-95f8-4b5c-9f3a-0c2f0f4f0d01",
		"/v1/clients/0d3b1e62-93b1-4c6e-bf0c-4e8a4c2f7a22/imports/5e5d1c7a-2b3c-4d4e-8f9a-1b2c3d4e5f60",
		"/healthz",
		"/nowhere",
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	pattern := "/v1/clients/{clientID}/imports/{batchID}"
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, pattern, "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, "/healthz", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.inFlight))
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.requests))
}

func TestNilMetricsAreInert(t *testing.T) {
	var metrics *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
