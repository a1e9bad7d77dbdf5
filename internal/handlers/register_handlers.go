package handlers

import (
	portssvc "github.com/finvolv/balance_backend/internal/core/ports/services"
	"github.com/finvolv/balance_backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	db Pinger,
	cache Pinger,
	limiterInstance *limiter.Limiter,
) {
	hh := newHealthHandler(db, cache)
	r.GET("/health", hh.health)

	setupAPIV1Routes(r, services, limiterInstance)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	services *portssvc.ServiceContainer,
	limiterInstance *limiter.Limiter,
) {
	v1 := r.Group("/api/v1")

	registerUserRoutes(v1, services.User)

	// The mutation path carries the rate limit; reads stay cheap.
	registerTransactionRoutes(v1, services.Transaction, middleware.RateLimit(limiterInstance))
}
