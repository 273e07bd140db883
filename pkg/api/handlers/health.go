package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/devicehub/pkg/api/types"
	"github.com/urmzd/devicehub/pkg/device"
)

// BrokerStatus reports the MQTT connection state.
type BrokerStatus interface {
	IsConnected() bool
	QueueLen() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	service *device.Service
	broker  BrokerStatus
}

// NewHealthHandler creates a new health handler. broker may be nil when no
// MQTT broker is configured.
func NewHealthHandler(service *device.Service, broker BrokerStatus) *HealthHandler {
	return &HealthHandler{service: service, broker: broker}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health of the API and the MQTT broker connection
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "MQTT broker disconnected"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := types.HealthResponse{
		Status:    "healthy",
		Devices:   h.service.Registry.Len(),
		MQTT:      "disabled",
		Timestamp: time.Now(),
	}
	httpStatus := http.StatusOK

	if h.broker != nil {
		resp.Queued = h.broker.QueueLen()
		if h.broker.IsConnected() {
			resp.MQTT = "connected"
		} else {
			resp.MQTT = "disconnected"
			resp.Status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	c.JSON(httpStatus, resp)
}
