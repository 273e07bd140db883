package types

import (
	"time"

	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/vendors/hue"
)

// --- Request DTOs ---

// ExecuteCommandRequest is the request body for POST /devices/:id/commands/:commandId
type ExecuteCommandRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// HuePairRequest is the request body for POST /hue/pair
type HuePairRequest struct {
	BridgeIP   string `json:"bridge_ip"`
	DeviceType string `json:"device_type"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Devices   int       `json:"devices"`
	MQTT      string    `json:"mqtt"`
	Queued    int       `json:"mqtt_queued,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ListDevicesResponse is returned from GET /devices
type ListDevicesResponse struct {
	Devices []device.Device `json:"devices"`
	Count   int             `json:"count"`
}

// DeviceResponse is returned from device create, read and update
type DeviceResponse struct {
	Device *device.Device `json:"device"`
}

// RemoveDeviceResponse is returned from DELETE /devices/:id
type RemoveDeviceResponse struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}

// ExecutionResponse is returned from command execution. Error and Message
// are set when the command reached the adapter and failed.
type ExecutionResponse struct {
	Execution *device.Execution `json:"execution"`
	Error     string            `json:"error,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// ListExecutionsResponse is returned from GET /devices/:id/executions
type ListExecutionsResponse struct {
	Executions []device.Execution `json:"executions"`
	Count      int                `json:"count"`
}

// DeviceStatusResponse is returned from POST /devices/:id/status
type DeviceStatusResponse struct {
	ID       string        `json:"id"`
	Status   device.Status `json:"status"`
	LastSeen *time.Time    `json:"lastSeen"`
}

// CheckAllResponse is returned from POST /status
type CheckAllResponse struct {
	Statuses map[string]device.Status `json:"statuses"`
	Count    int                      `json:"count"`
}

// SerialPortsResponse is returned from GET /serial/ports
type SerialPortsResponse struct {
	Ports []string `json:"ports"`
}

// HueBridgesResponse is returned from GET /hue/bridges
type HueBridgesResponse struct {
	Bridges []hue.Bridge `json:"bridges"`
}

// HuePairResponse is returned from POST /hue/pair
type HuePairResponse struct {
	Username string `json:"username"`
}
