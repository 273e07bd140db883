package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/devicehub/pkg/api/types"
	"github.com/urmzd/devicehub/pkg/device"
)

// CommandsHandler handles command execution and status endpoints
type CommandsHandler struct {
	service *device.Service
}

// NewCommandsHandler creates a new commands handler
func NewCommandsHandler(service *device.Service) *CommandsHandler {
	return &CommandsHandler{service: service}
}

// ExecuteCommand handles POST /devices/:id/commands/:commandId
// @Summary      Execute a device command
// @Description  Runs a declared command through the device's protocol adapter. A failed
// @Description  invocation still returns the recorded execution.
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id         path      string                       true   "Device id"
// @Param        commandId  path      string                       true   "Command id"
// @Param        request    body      types.ExecuteCommandRequest  false  "Command arguments"
// @Success      200        {object}  types.ExecutionResponse
// @Failure      400        {object}  types.ErrorResponse      "Invalid arguments"
// @Failure      404        {object}  types.ErrorResponse      "Device or command not found"
// @Failure      501        {object}  types.ExecutionResponse  "Protocol not implemented"
// @Failure      502        {object}  types.ExecutionResponse  "Device error"
// @Failure      504        {object}  types.ExecutionResponse  "Device timed out"
// @Router       /devices/{id}/commands/{commandId} [post]
func (h *CommandsHandler) ExecuteCommand(c *gin.Context) {
	var req types.ExecuteCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	exec, err := h.service.ExecuteCommand(c.Request.Context(), c.Param("id"), c.Param("commandId"), req.Parameters)
	if err != nil {
		if exec == nil {
			respondError(c, err)
			return
		}
		status, code := errorStatus(err)
		c.JSON(status, types.ExecutionResponse{
			Execution: exec,
			Error:     code,
			Message:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.ExecutionResponse{Execution: exec})
}

// ListExecutions handles GET /devices/:id/executions
// @Summary      List executions for a device
// @Description  Returns the executions recorded for the device since startup, oldest first
// @Tags         commands
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  types.ListExecutionsResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id}/executions [get]
func (h *CommandsHandler) ListExecutions(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.service.GetDevice(id); err != nil {
		respondError(c, err)
		return
	}

	execs := h.service.Executor.Executions(id)
	c.JSON(http.StatusOK, types.ListExecutionsResponse{
		Executions: execs,
		Count:      len(execs),
	})
}

// GetExecution handles GET /executions/:id
// @Summary      Get an execution
// @Tags         commands
// @Produce      json
// @Param        id   path      string  true  "Execution id"
// @Success      200  {object}  types.ExecutionResponse
// @Failure      404  {object}  types.ErrorResponse  "Execution not found"
// @Router       /executions/{id} [get]
func (h *CommandsHandler) GetExecution(c *gin.Context) {
	exec, err := h.service.Executor.Execution(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ExecutionResponse{Execution: exec})
}

// CheckStatus handles POST /devices/:id/status
// @Summary      Probe a device
// @Description  Runs the protocol health probe now and returns the resulting status
// @Tags         status
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  types.DeviceStatusResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id}/status [post]
func (h *CommandsHandler) CheckStatus(c *gin.Context) {
	d, err := h.service.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DeviceStatusResponse{
		ID:       d.ID,
		Status:   d.Status,
		LastSeen: d.LastSeen,
	})
}

// CheckAll handles POST /status
// @Summary      Probe every device
// @Description  Probes all devices concurrently. One failing probe never affects the others.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.CheckAllResponse
// @Router       /status [post]
func (h *CommandsHandler) CheckAll(c *gin.Context) {
	statuses := h.service.CheckAll(c.Request.Context())
	c.JSON(http.StatusOK, types.CheckAllResponse{
		Statuses: statuses,
		Count:    len(statuses),
	})
}
