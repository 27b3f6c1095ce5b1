package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"assessment-backend/internal/shared/requestid"
)

const requestIDKey = "requestId"

// RequestID attaches a request ID to the gin context, the request context and
// the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Request = c.Request.WithContext(requestid.With(c.Request.Context(), id))
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

// RequestIDFromContext fetches the request ID stored by RequestID middleware.
func RequestIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}
