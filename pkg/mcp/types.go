package mcp

import (
	"time"

	"github.com/urmzd/devicehub/pkg/device"
)

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status     string `json:"status" jsonschema:"description=Overall health status (healthy or degraded)"`
	Devices    int    `json:"devices" jsonschema:"description=Number of registered devices"`
	MQTT       string `json:"mqtt" jsonschema:"description=MQTT broker state (connected/disconnected/disabled)"`
	MQTTQueued int    `json:"mqtt_queued,omitempty" jsonschema:"description=Messages waiting for the broker"`
	Timestamp  string `json:"timestamp" jsonschema:"description=RFC3339 timestamp"`
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Registered devices"`
	Count   int          `json:"count" jsonschema:"description=Total number of devices"`
}

// DeviceInfo is the agent-facing view of a device. The API key is never exposed.
type DeviceInfo struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         device.Type      `json:"type"`
	Protocol     device.Protocol  `json:"protocol"`
	Manufacturer string           `json:"manufacturer,omitempty"`
	Model        string           `json:"model,omitempty"`
	APIEndpoint  string           `json:"apiEndpoint,omitempty"`
	Status       device.Status    `json:"status"`
	LastSeen     *time.Time       `json:"lastSeen"`
	Capabilities []string         `json:"capabilities"`
	CurrentState map[string]any   `json:"currentState"`
	Commands     []device.Command `json:"commands"`
}

// DeviceOutput wraps a single device
type DeviceOutput struct {
	Device DeviceInfo `json:"device"`
}

// RemoveDeviceOutput is the output for the remove_device tool
type RemoveDeviceOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExecutionOutput is the output for the execute_command tool
type ExecutionOutput struct {
	Execution *device.Execution `json:"execution"`
}

// ListExecutionsOutput is the output for the list_executions tool
type ListExecutionsOutput struct {
	DeviceID   string             `json:"device_id"`
	Executions []device.Execution `json:"executions"`
	Count      int                `json:"count"`
}

// DeviceStatusOutput is the output for the check_device_status tool
type DeviceStatusOutput struct {
	ID       string        `json:"id"`
	Status   device.Status `json:"status"`
	LastSeen *time.Time    `json:"lastSeen"`
}

// CheckAllOutput is the output for the check_all_devices tool
type CheckAllOutput struct {
	Statuses map[string]device.Status `json:"statuses"`
	Online   int                      `json:"online"`
	Count    int                      `json:"count"`
}

// ActionOutput reports a vendor or broker side effect
type ActionOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeviceToInfo converts a device.Device to DeviceInfo
func DeviceToInfo(d *device.Device) DeviceInfo {
	return DeviceInfo{
		ID:           d.ID,
		Name:         d.Name,
		Type:         d.Type,
		Protocol:     d.Protocol,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		APIEndpoint:  d.APIEndpoint,
		Status:       d.Status,
		LastSeen:     d.LastSeen,
		Capabilities: d.Capabilities,
		CurrentState: d.CurrentState,
		Commands:     d.Commands,
	}
}
