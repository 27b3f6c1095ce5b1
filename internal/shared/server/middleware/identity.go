package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"assessment-backend/internal/shared/server/respond"
)

const userIDKey = "userId"

// Identity reads the caller identity forwarded by the upstream gateway in
// X-User-Id. Sign-in happens upstream; requests without an identity are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// WebhookSecret guards provider callbacks with a shared secret carried in
// X-Webhook-Secret. An empty configured secret rejects every call.
func WebhookSecret(secret string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) {
		got := []byte(strings.TrimSpace(c.GetHeader("X-Webhook-Secret")))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			respond.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook secret", nil)
			return
		}
		c.Set(userIDKey, "webhook:payment")
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by Identity.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}
