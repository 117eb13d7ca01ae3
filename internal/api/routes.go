package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes configures the site model API.
func SetupRoutes(router *gin.Engine, handlers *APIHandlers, requestsPerMinute int, logger *logrus.Logger) {
	// Global middleware
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(ErrorHandler())
	router.Use(CORS())

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimiter(requestsPerMinute))
	{
		v1.GET("/site", handlers.GetSite)

		devices := v1.Group("/devices")
		{
			devices.GET("", handlers.ListDevices)
			devices.GET("/:id", handlers.GetDevice)
			devices.GET("/:id/keyfile", handlers.GetDeviceKeyFile)
			devices.GET("/:id/endpoint", handlers.GetDeviceEndpoint)
		}

		registry := v1.Group("/registry/devices")
		{
			registry.GET("", handlers.ListRegisteredDevices)
			registry.GET("/:id", handlers.GetRegisteredDevice)
		}

		v1.POST("/clientid/parse", handlers.ParseClientID)
		v1.POST("/endpoint", handlers.EndpointFromEnvelope)
	}
}
