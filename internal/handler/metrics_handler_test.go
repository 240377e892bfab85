package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/service"
)

func serveOps(h *MetricsHandler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Prometheus)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthWithPassingChecks(t *testing.T) {
	h := NewMetricsHandler(nil, HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }})
	w := serveOps(h, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "failures")
}

func TestHealthReportsFailingCheck(t *testing.T) {
	h := NewMetricsHandler(nil,
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		HealthCheck{Name: "exports", Check: func(context.Context) error { return nil }},
	)
	w := serveOps(h, "/health")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status   string            `json:"status"`
		Failures map[string]string `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"redis": "connection refused"}, body.Failures)
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordAudit("approve")

	w := serveOps(NewMetricsHandler(metrics), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `contrail_certificate_audits_total{action="approve"} 1`))

	assert.Equal(t, http.StatusServiceUnavailable, serveOps(NewMetricsHandler(nil), "/metrics").Code)
}
