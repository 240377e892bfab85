package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/service"
)

const checkTimeout = 2 * time.Second

// HealthCheck pings one dependency of the mock backend.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// MetricsHandler serves /health and /metrics.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  []HealthCheck
	started time.Time
}

// NewMetricsHandler constructs the handler. checks run on every /health call.
func NewMetricsHandler(metrics *service.MetricsService, checks ...HealthCheck) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, checks: checks, started: time.Now()}
}

// Prometheus serves the registry.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health answers 200 with "ok" when every check passes and 503 with
// "degraded" plus the failing check messages otherwise.
func (h *MetricsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	failures := map[string]string{}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			failures[check.Name] = err.Error()
		}
	}
	body := gin.H{"status": "ok", "uptime": time.Since(h.started).Round(time.Second).String()}
	code := http.StatusOK
	if len(failures) > 0 {
		body["status"] = "degraded"
		body["failures"] = failures
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}
