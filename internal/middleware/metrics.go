package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/metrics"
)

// Metrics records request counts and latency per route template.
// Unmatched paths share one label to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		metrics.TrackActiveRequest(true)
		start := time.Now()
		defer func() {
			metrics.TrackActiveRequest(false)
			endpoint := c.FullPath()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			metrics.RecordAPIRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
		}()

		c.Next()
	}
}
