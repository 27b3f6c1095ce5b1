package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"assessment-backend/internal/shared/server/respond"
	"assessment-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. Panics after the
// response was written are only logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
			}
			if id := c.GetString("assessmentId"); id != "" {
				fields["assessment_id"] = id
			}
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error", nil)
		}()
		c.Next()
	}
}
