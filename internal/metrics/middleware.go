package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redadsync/redadsync/internal/logging"
)

// Middleware records HTTP metrics for each request. Unmatched paths share a
// single label so scanners cannot blow up label cardinality.
func Middleware(m *Metrics, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncHTTPRequestsInFlight()
		c.Next()
		m.DecHTTPRequestsInFlight()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RecordRequestLatency(endpoint, c.Request.Method, status, duration)
		m.RecordHTTPRequest(endpoint, c.Request.Method, status)

		if len(c.Errors) > 0 {
			logger.ErrorWithContext(c.Request.Context(), "request error", "path", c.Request.URL.Path, "error", c.Errors.String())
		}
	}
}
