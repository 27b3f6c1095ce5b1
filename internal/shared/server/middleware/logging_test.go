package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"assessment-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequestFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(zap.NewNop()) })

	router := gin.New()
	router.Use(RequestID(), Identity(), Logging())
	router.POST("/api/v1/assessments/:id/payment", func(c *gin.Context) {
		c.Set("assessmentId", c.Param("id"))
		c.Set("statusTransition", "awaiting_payment->paid")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/a1/payment", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Request-Id", "req-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request.complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	want := map[string]any{
		"request_id":        "req-42",
		"user_id":           "user-1",
		"assessment_id":     "a1",
		"status_transition": "awaiting_payment->paid",
		"route":             "/api/v1/assessments/:id/payment",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Fatalf("field %s: expected %v, got %v", k, v, fields[k])
		}
	}
	if _, ok := fields["duration_ms"]; !ok {
		t.Fatalf("missing duration_ms")
	}
}
