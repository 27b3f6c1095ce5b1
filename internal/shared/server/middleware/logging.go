package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"assessment-backend/internal/shared/telemetry"
)

// Logging emits one structured line per request. Handlers may set
// "assessmentId" and "statusTransition" on the gin context to enrich it.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
		}
		if id := c.GetString("assessmentId"); id != "" {
			fields["assessment_id"] = id
		}
		if tr := c.GetString("statusTransition"); tr != "" {
			fields["status_transition"] = tr
		}
		telemetry.Info("request.complete", fields)
	}
}
