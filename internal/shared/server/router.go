// Package server assembles the HTTP surface.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"assessment-backend/internal/lifecycle"
	"assessment-backend/internal/services/health"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/server/middleware"
	"assessment-backend/internal/shared/server/respond"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupPolling = "POLLING"
)

// RouterDeps are the handlers mounted by NewRouter.
type RouterDeps struct {
	Config      config.Config
	Assessments *lifecycle.Handler
	Health      *health.Service
	Limiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	deps.Assessments.RegisterWebhooks(api.Group("", middleware.WebhookSecret(deps.Config.WebhookSecret)))

	respondent := api.Group("",
		middleware.Identity(),
		middleware.RateLimit(rateLimitConfig(deps.Config, deps.Limiter)),
	)
	deps.Assessments.RegisterRoutes(respondent)

	return r
}

// Status polling is cheap and frequent; writes get the configured rate.
func rateLimitConfig(cfg config.Config, limiter *middleware.RateLimiter) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Limiter:      limiter,
		DefaultGroup: rateGroupDefault,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet {
				return rateGroupPolling
			}
			return rateGroupDefault
		},
		Rules: map[string]middleware.RateLimitRule{
			rateGroupDefault: {Rate: cfg.APIRatePerSec, Burst: cfg.APIRateBurst},
			rateGroupPolling: {Rate: cfg.APIRatePerSec * 4, Burst: cfg.APIRateBurst * 2},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
