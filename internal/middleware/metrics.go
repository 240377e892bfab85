package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/service"
)

const unmatchedRoute = "unmatched"

// Surface names the client a request path belongs to.
func Surface(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/admin"):
		return "admin"
	case strings.HasPrefix(path, "/api"):
		return "student"
	case strings.HasPrefix(path, "/files"):
		return "files"
	default:
		return "ops"
	}
}

// Metrics records every request except the scrape itself. Unknown paths
// share one route label so scanners cannot blow up cardinality.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		started := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(Surface(c.Request.URL.Path), c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
