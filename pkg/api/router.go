// Package api exposes the device service over REST.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/devicehub/pkg/adapter"
	"github.com/urmzd/devicehub/pkg/api/handlers"
	"github.com/urmzd/devicehub/pkg/device"
)

// Dependencies are the components the REST layer serves.
type Dependencies struct {
	Service *device.Service

	// Broker is nil when no MQTT broker is configured.
	Broker handlers.BrokerStatus
	Hue    handlers.HueBridge

	// SerialPorts defaults to adapter.SerialPorts.
	SerialPorts func() ([]string, error)
}

// Router holds the Gin engine and dependencies
type Router struct {
	engine *gin.Engine
	deps   Dependencies
}

// NewRouter creates a new API router
func NewRouter(deps Dependencies) *Router {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.SerialPorts == nil {
		deps.SerialPorts = adapter.SerialPorts
	}

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine: engine,
		deps:   deps,
	}
	router.setupRoutes()

	return router
}

func (r *Router) setupRoutes() {
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	healthHandler := handlers.NewHealthHandler(r.deps.Service, r.deps.Broker)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		devicesHandler := handlers.NewDevicesHandler(r.deps.Service)
		commandsHandler := handlers.NewCommandsHandler(r.deps.Service)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.POST("", devicesHandler.AddDevice)
			devices.GET("/:id", devicesHandler.GetDevice)
			devices.PATCH("/:id", devicesHandler.UpdateDevice)
			devices.DELETE("/:id", devicesHandler.RemoveDevice)

			devices.POST("/:id/commands/:commandId", commandsHandler.ExecuteCommand)
			devices.GET("/:id/executions", commandsHandler.ListExecutions)
			devices.POST("/:id/status", commandsHandler.CheckStatus)
		}
		v1.GET("/executions/:id", commandsHandler.GetExecution)
		v1.POST("/status", commandsHandler.CheckAll)

		eventsHandler := handlers.NewEventsHandler(r.deps.Service.Events)
		v1.GET("/events", eventsHandler.Events)

		integrations := handlers.NewIntegrationsHandler(r.deps.SerialPorts, r.deps.Hue)
		v1.GET("/serial/ports", integrations.SerialPorts)
		if r.deps.Hue != nil {
			v1.GET("/hue/bridges", integrations.HueBridges)
			v1.POST("/hue/pair", integrations.HuePair)
		}
	}
}

// Handler returns the engine as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}
