package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/devicehub/pkg/api/types"
	"github.com/urmzd/devicehub/pkg/device"
)

// errorStatus maps a device error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, device.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, device.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, device.ErrProtocolUnimplemented):
		return http.StatusNotImplemented, "protocol_unimplemented"
	case errors.Is(err, device.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, device.ErrNotConnected):
		return http.StatusServiceUnavailable, "not_connected"
	case errors.Is(err, device.ErrNetwork), errors.Is(err, device.ErrVendorAPI):
		return http.StatusBadGateway, "device_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, types.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}
