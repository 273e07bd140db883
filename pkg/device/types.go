package device

import (
	"encoding/json"
	"time"
)

// Type classifies a device
type Type string

// Device type constants
const (
	TypePrinter3D   Type = "3d_printer"
	TypeSmartLight  Type = "smart_light"
	TypeSmartPlug   Type = "smart_plug"
	TypeCamera      Type = "camera"
	TypeSensor      Type = "sensor"
	TypeThermostat  Type = "thermostat"
	TypeRobot       Type = "robot"
	TypeArduino     Type = "arduino"
	TypeESP32       Type = "esp32"
	TypeRaspberryPi Type = "raspberry_pi"
	TypeCustom      Type = "custom"
)

var knownTypes = map[Type]bool{
	TypePrinter3D: true, TypeSmartLight: true, TypeSmartPlug: true, TypeCamera: true,
	TypeSensor: true, TypeThermostat: true, TypeRobot: true, TypeArduino: true,
	TypeESP32: true, TypeRaspberryPi: true, TypeCustom: true,
}

// Valid reports whether t is a known device type.
func (t Type) Valid() bool { return knownTypes[t] }

// Protocol selects the adapter used to reach a device
type Protocol string

// Protocol constants
const (
	ProtocolHTTP      Protocol = "http"
	ProtocolMQTT      Protocol = "mqtt"
	ProtocolWebSocket Protocol = "websocket"
	ProtocolSerial    Protocol = "serial"
	ProtocolBluetooth Protocol = "bluetooth"
	ProtocolWiFi      Protocol = "wifi"
)

// Valid reports whether p is a known protocol.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolHTTP, ProtocolMQTT, ProtocolWebSocket, ProtocolSerial, ProtocolBluetooth, ProtocolWiFi:
		return true
	}
	return false
}

// Status is the last known reachability of a device
type Status string

// Device status constants
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// ParameterType is the JSON type of a command argument
type ParameterType string

// Parameter type constants
const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamArray   ParameterType = "array"
	ParamObject  ParameterType = "object"
)

// Parameter describes one argument of a Command
type Parameter struct {
	Name     string        `json:"name"`
	Type     ParameterType `json:"type"`
	Required bool          `json:"required"`
	Default  any           `json:"default,omitempty"`
}

// Command is a named, parameterized operation defined on a device
type Command struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Endpoint    string      `json:"endpoint,omitempty"` // HTTP path override
	Method      string      `json:"method,omitempty"`   // GET, POST, PUT or DELETE
}

// Device is a registered controllable endpoint
type Device struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         Type           `json:"type"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	MACAddress   string         `json:"macAddress,omitempty"`
	Protocol     Protocol       `json:"protocol"`
	APIEndpoint  string         `json:"apiEndpoint,omitempty"`
	APIKey       string         `json:"apiKey,omitempty"`
	Status       Status         `json:"status"`
	LastSeen     *time.Time     `json:"lastSeen"`
	Capabilities []string       `json:"capabilities"`
	CurrentState map[string]any `json:"currentState"`
	Commands     []Command      `json:"commands"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// FindCommand returns the command with the given id, or nil.
func (d *Device) FindCommand(id string) *Command {
	for i := range d.Commands {
		if d.Commands[i].ID == id {
			return &d.Commands[i]
		}
	}
	return nil
}

// Clone returns a copy that shares no mutable state with d.
func (d *Device) Clone() *Device {
	c := *d
	if d.LastSeen != nil {
		t := *d.LastSeen
		c.LastSeen = &t
	}
	c.Capabilities = append([]string{}, d.Capabilities...)
	c.CurrentState = cloneMap(d.CurrentState)
	c.Commands = make([]Command, len(d.Commands))
	for i, cmd := range d.Commands {
		cmd.Parameters = append([]Parameter{}, cmd.Parameters...)
		c.Commands[i] = cmd
	}
	return &c
}

// cloneMap deep-copies a JSON-shaped map by round-tripping it.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	out := map[string]any{}
	_ = json.Unmarshal(b, &out)
	return out
}

// Spec is the input to Registry.Add. ID is optional.
type Spec struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	Type         Type           `json:"type"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	MACAddress   string         `json:"macAddress,omitempty"`
	Protocol     Protocol       `json:"protocol"`
	APIEndpoint  string         `json:"apiEndpoint,omitempty"`
	APIKey       string         `json:"apiKey,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	CurrentState map[string]any `json:"currentState,omitempty"`
	Commands     []Command      `json:"commands,omitempty"`
}

// Patch is a shallow update applied by Registry.Update. Nil fields are left untouched.
type Patch struct {
	Name         *string         `json:"name,omitempty"`
	Type         *Type           `json:"type,omitempty"`
	Manufacturer *string         `json:"manufacturer,omitempty"`
	Model        *string         `json:"model,omitempty"`
	IPAddress    *string         `json:"ipAddress,omitempty"`
	MACAddress   *string         `json:"macAddress,omitempty"`
	Protocol     *Protocol       `json:"protocol,omitempty"`
	APIEndpoint  *string         `json:"apiEndpoint,omitempty"`
	APIKey       *string         `json:"apiKey,omitempty"`
	Capabilities *[]string       `json:"capabilities,omitempty"`
	CurrentState *map[string]any `json:"currentState,omitempty"`
	Commands     *[]Command      `json:"commands,omitempty"`
}

// ExecutionStatus is the lifecycle state of an Execution
type ExecutionStatus string

// Execution status constants, in lifecycle order
const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionExecuting ExecutionStatus = "executing"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

func (s ExecutionStatus) rank() int {
	switch s {
	case ExecutionPending:
		return 0
	case ExecutionExecuting:
		return 1
	case ExecutionCompleted, ExecutionFailed:
		return 2
	}
	return -1
}

// Terminal reports whether s is completed or failed.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// Execution is one invocation of a command against a device
type Execution struct {
	ID         string            `json:"id"`
	DeviceID   string            `json:"deviceId"`
	CommandID  string            `json:"commandId"`
	Parameters map[string]any    `json:"parameters"`
	Timestamp  time.Time         `json:"timestamp"`
	Status     ExecutionStatus   `json:"status"`
	Result     any               `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	History    []ExecutionStatus `json:"history"`
}

// advance moves the execution forward. Backward or sideways moves out of a
// terminal state are rejected.
func (e *Execution) advance(to ExecutionStatus) bool {
	if e.Status.Terminal() || to.rank() <= e.Status.rank() {
		return false
	}
	e.Status = to
	e.History = append(e.History, to)
	return true
}
