package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/promoteur-trust-api/internal/service"
)

// probePaths are scraped or polled by infrastructure and excluded from request metrics.
var probePaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records request counts and latency per route template.
// Unmatched paths share one label so signed export tokens and scans never grow the series.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, probe := probePaths[c.Request.URL.Path]; probe {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
