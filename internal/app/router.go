package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"rumbo/internal/handler"
	"rumbo/internal/middleware"
	"rumbo/internal/ws"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler   *handler.RideHandler
	DriverHandler *handler.DriverHandler
	Hub           *ws.Hub
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
	JWTSecret     string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The websocket endpoint authenticates itself (query-param token);
	// it stays outside the bearer-header middleware.
	router.GET("/ws", deps.Hub.Handle)

	// API v1 routes. Idempotency keys are scoped per actor, so auth must
	// run first.
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.JWTSecret))
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		// Ride routes.
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("/available", deps.RideHandler.ListAvailable)
			rides.GET("/active", deps.RideHandler.GetActive)
			rides.GET("/my", deps.RideHandler.ListMine)
			rides.POST("/estimate", deps.RideHandler.Estimate)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", deps.RideHandler.Accept)
			rides.POST("/:id/status", deps.RideHandler.UpdateStatus)
			rides.POST("/:id/cancel", deps.RideHandler.Cancel)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/location", deps.DriverHandler.ReportPosition)
			drivers.PUT("/availability", deps.DriverHandler.SetAvailability)
			drivers.GET("/:id/location", deps.DriverHandler.GetLocation)
		}
	}

	return router
}
