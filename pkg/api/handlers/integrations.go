package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/devicehub/pkg/api/types"
	"github.com/urmzd/devicehub/pkg/vendors/hue"
)

// HueBridge is the part of the Hue client used for bridge setup.
type HueBridge interface {
	Discover(ctx context.Context) ([]hue.Bridge, error)
	SetBridge(ip string)
	Pair(ctx context.Context, deviceType string) (string, error)
}

// IntegrationsHandler handles host and vendor setup endpoints
type IntegrationsHandler struct {
	serialPorts func() ([]string, error)
	hue         HueBridge
}

// NewIntegrationsHandler creates a new integrations handler
func NewIntegrationsHandler(serialPorts func() ([]string, error), hueBridge HueBridge) *IntegrationsHandler {
	return &IntegrationsHandler{serialPorts: serialPorts, hue: hueBridge}
}

// SerialPorts handles GET /serial/ports
// @Summary      List serial ports
// @Description  Lists serial ports on the host, for registering serial-protocol boards
// @Tags         integrations
// @Produce      json
// @Success      200  {object}  types.SerialPortsResponse
// @Failure      500  {object}  types.ErrorResponse  "Port enumeration failed"
// @Router       /serial/ports [get]
func (h *IntegrationsHandler) SerialPorts(c *gin.Context) {
	ports, err := h.serialPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "serial_error",
			Message: err.Error(),
		})
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, types.SerialPortsResponse{Ports: ports})
}

// HueBridges handles GET /hue/bridges
// @Summary      Discover Hue bridges
// @Tags         integrations
// @Produce      json
// @Success      200  {object}  types.HueBridgesResponse
// @Failure      502  {object}  types.ErrorResponse  "Discovery service error"
// @Failure      504  {object}  types.ErrorResponse  "Discovery timed out"
// @Router       /hue/bridges [get]
func (h *IntegrationsHandler) HueBridges(c *gin.Context) {
	bridges, err := h.hue.Discover(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if bridges == nil {
		bridges = []hue.Bridge{}
	}
	c.JSON(http.StatusOK, types.HueBridgesResponse{Bridges: bridges})
}

// HuePair handles POST /hue/pair
// @Summary      Pair with a Hue bridge
// @Description  Press the bridge link button first. Returns the application username.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        request  body      types.HuePairRequest  false  "Bridge address and device type"
// @Success      200      {object}  types.HuePairResponse
// @Failure      400      {object}  types.ErrorResponse  "No bridge configured"
// @Failure      428      {object}  types.ErrorResponse  "Link button not pressed"
// @Failure      502      {object}  types.ErrorResponse  "Bridge error"
// @Router       /hue/pair [post]
func (h *IntegrationsHandler) HuePair(c *gin.Context) {
	var req types.HuePairRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.BridgeIP != "" {
		h.hue.SetBridge(req.BridgeIP)
	}

	username, err := h.hue.Pair(c.Request.Context(), req.DeviceType)
	if err != nil {
		if errors.Is(err, hue.ErrLinkButtonNotPressed) {
			c.JSON(http.StatusPreconditionRequired, types.ErrorResponse{
				Error:   "link_button_not_pressed",
				Message: "Press the link button on the bridge and retry within 30 seconds",
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.HuePairResponse{Username: username})
}
