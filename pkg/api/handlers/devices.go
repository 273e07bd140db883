package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/devicehub/pkg/api/types"
	"github.com/urmzd/devicehub/pkg/device"
)

// DevicesHandler handles device CRUD endpoints
type DevicesHandler struct {
	service *device.Service
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(service *device.Service) *DevicesHandler {
	return &DevicesHandler{service: service}
}

// ListDevices handles GET /devices
// @Summary      List all devices
// @Description  Returns every registered device in registration order
// @Tags         devices
// @Produce      json
// @Success      200  {object}  types.ListDevicesResponse
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	devices := h.service.ListDevices()
	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: devices,
		Count:   len(devices),
	})
}

// AddDevice handles POST /devices
// @Summary      Register a device
// @Description  Registers a device and schedules its first status check
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        request  body      device.Spec  true  "Device to register"
// @Success      201      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid device"
// @Failure      409      {object}  types.ErrorResponse  "Device id already in use"
// @Failure      500      {object}  types.ErrorResponse  "Persistence error"
// @Router       /devices [post]
func (h *DevicesHandler) AddDevice(c *gin.Context) {
	var spec device.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	d, err := h.service.AddDevice(c.Request.Context(), spec)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.DeviceResponse{Device: d})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  types.DeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	d, err := h.service.GetDevice(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DeviceResponse{Device: d})
}

// UpdateDevice handles PATCH /devices/:id
// @Summary      Update a device
// @Description  Shallow-merges the supplied fields into the device. The id and creation time never change.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string        true  "Device id"
// @Param        request  body      device.Patch  true  "Fields to change"
// @Success      200      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      500      {object}  types.ErrorResponse  "Persistence error"
// @Router       /devices/{id} [patch]
func (h *DevicesHandler) UpdateDevice(c *gin.Context) {
	var patch device.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	d, err := h.service.UpdateDevice(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DeviceResponse{Device: d})
}

// RemoveDevice handles DELETE /devices/:id
// @Summary      Remove a device
// @Description  Deletes the device and its execution history
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  types.RemoveDeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Failure      500  {object}  types.ErrorResponse  "Persistence error"
// @Router       /devices/{id} [delete]
func (h *DevicesHandler) RemoveDevice(c *gin.Context) {
	id := c.Param("id")

	removed, err := h.service.RemoveDevice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Device not found",
		})
		return
	}

	c.JSON(http.StatusOK, types.RemoveDeviceResponse{ID: id, Removed: true})
}
