package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/devicehub/pkg/adapter"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/vendors/hue"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := GetHealthOutput{
		Status:    "healthy",
		Devices:   s.deps.Service.Registry.Len(),
		MQTT:      "disabled",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.deps.MQTT != nil {
		out.MQTTQueued = s.deps.MQTT.QueueLen()
		if s.deps.MQTT.IsConnected() {
			out.MQTT = "connected"
		} else {
			out.MQTT = "disconnected"
			out.Status = "degraded"
		}
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices := s.deps.Service.ListDevices()
	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		infos = append(infos, DeviceToInfo(&devices[i]))
	}
	return mcp.NewToolResultText(formatJSON(ListDevicesOutput{Devices: infos, Count: len(infos)})), nil
}

func (s *Server) handleGetDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.deps.Service.GetDevice(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(DeviceOutput{Device: DeviceToInfo(d)})), nil
}

func (s *Server) handleAddDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := requiredString(request, "name"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := requiredString(request, "protocol"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var spec device.Spec
	if err := convertArguments(request.GetArguments(), &spec); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.deps.Service.AddDevice(ctx, spec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add device: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(DeviceOutput{Device: DeviceToInfo(d)})), nil
}

func (s *Server) handleUpdateDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fields := make(map[string]any, len(request.GetArguments()))
	for k, v := range request.GetArguments() {
		if k != "id" {
			fields[k] = v
		}
	}
	var patch device.Patch
	if err := convertArguments(fields, &patch); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.deps.Service.UpdateDevice(ctx, id, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update device: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(DeviceOutput{Device: DeviceToInfo(d)})), nil
}

func (s *Server) handleRemoveDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	removed, err := s.deps.Service.RemoveDevice(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to remove device: %s", err)), nil
	}
	if !removed {
		return mcp.NewToolResultError(fmt.Sprintf("device %q not found", id)), nil
	}

	out := RemoveDeviceOutput{
		Success: true,
		Message: fmt.Sprintf("Device %q removed", id),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleExecuteCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredString(request, "device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	commandID, err := requiredString(request, "command_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var params map[string]any
	if raw, ok := request.GetArguments()["parameters"]; ok && raw != nil {
		p, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError(`parameter "parameters" must be an object`), nil
		}
		params = p
	}

	exec, err := s.deps.Service.ExecuteCommand(ctx, deviceID, commandID, params)
	if err != nil {
		if exec != nil {
			return mcp.NewToolResultError(fmt.Sprintf("command failed: %s\n%s", err, formatJSON(ExecutionOutput{Execution: exec}))), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to execute command: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(ExecutionOutput{Execution: exec})), nil
}

func (s *Server) handleCheckDeviceStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.deps.Service.CheckStatus(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check status: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(DeviceStatusOutput{ID: d.ID, Status: d.Status, LastSeen: d.LastSeen})), nil
}

func (s *Server) handleCheckAllDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses := s.deps.Service.CheckAll(ctx)
	online := 0
	for _, st := range statuses {
		if st == device.StatusOnline {
			online++
		}
	}
	return mcp.NewToolResultText(formatJSON(CheckAllOutput{Statuses: statuses, Online: online, Count: len(statuses)})), nil
}

func (s *Server) handleListExecutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.deps.Service.GetDevice(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", err)), nil
	}

	execs := s.deps.Service.Executor.Executions(id)
	return mcp.NewToolResultText(formatJSON(ListExecutionsOutput{DeviceID: id, Executions: execs, Count: len(execs)})), nil
}

func (s *Server) handleMQTTPublish(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := requiredString(request, "topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, ok := request.GetArguments()["payload"].(string)
	if !ok {
		return mcp.NewToolResultError(`parameter "payload" must be a string`), nil
	}
	qos, _ := optionalNumber(request, "qos")
	retain, _ := optionalBool(request, "retain")

	queued := !s.deps.MQTT.IsConnected()
	if err := s.deps.MQTT.Publish(ctx, topic, payload, adapter.PublishOptions{QoS: byte(qos), Retain: retain}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to publish: %s", err)), nil
	}

	msg := fmt.Sprintf("Published to %s", topic)
	if queued {
		msg = fmt.Sprintf("Broker unreachable, message for %s queued", topic)
	}
	return mcp.NewToolResultText(formatJSON(ActionOutput{Success: true, Message: msg})), nil
}

func (s *Server) handleHueDiscoverBridges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bridges, err := s.deps.Hue.Discover(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to discover bridges: %s", err)), nil
	}
	if bridges == nil {
		bridges = []hue.Bridge{}
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{"bridges": bridges, "count": len(bridges)})), nil
}

func (s *Server) handleHueSetLight(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lightID, err := requiredString(request, "light_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state hue.LightState
	if on, ok := optionalBool(request, "on"); ok {
		state.On = &on
	}
	if pct, ok := optionalNumber(request, "brightness"); ok {
		bri := hue.BrightnessFromPercent(pct)
		state.Bri = &bri
	}
	if hex, ok := request.GetArguments()["color"].(string); ok && hex != "" {
		c, err := colorful.Hex(hex)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid color %q: expected #rrggbb", hex)), nil
		}
		r, g, b := c.RGB255()
		x, y := hue.RGBToXY(r, g, b)
		state.XY = &[2]float64{x, y}
	}
	if kelvin, ok := optionalNumber(request, "kelvin"); ok {
		ct := hue.KelvinToMired(int(kelvin))
		state.CT = &ct
	}
	if state == (hue.LightState{}) {
		return mcp.NewToolResultError("nothing to change: set on, brightness, color or kelvin"), nil
	}
	state = state.Clamped()

	target := "light"
	if group, _ := optionalBool(request, "group"); group {
		target = "group"
		err = s.deps.Hue.SetGroupAction(ctx, lightID, state)
	} else {
		err = s.deps.Hue.SetLightState(ctx, lightID, state)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set %s state: %s", target, err)), nil
	}
	return mcp.NewToolResultText(formatJSON(ActionOutput{Success: true, Message: fmt.Sprintf("Hue %s %s updated", target, lightID)})), nil
}

func (s *Server) handleNestSetMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(request, "device_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := requiredString(request, "mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch mode = strings.ToUpper(mode); mode {
	case "ECO":
		err = s.deps.Nest.SetEco(ctx, name, true)
	case "ECO_OFF":
		err = s.deps.Nest.SetEco(ctx, name, false)
	default:
		err = s.deps.Nest.SetMode(ctx, name, mode)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set thermostat mode: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(ActionOutput{Success: true, Message: fmt.Sprintf("Thermostat mode set to %s", mode)})), nil
}

func (s *Server) handleNestSetTemperature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(request, "device_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	celsius, ok := optionalNumber(request, "celsius")
	if !ok {
		return mcp.NewToolResultError(`required parameter "celsius" is missing`), nil
	}

	if err := s.deps.Nest.SetTemperature(ctx, name, celsius); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set temperature: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(ActionOutput{Success: true, Message: fmt.Sprintf("Setpoint set to %.1f°C", celsius)})), nil
}

func (s *Server) handleRingSetSiren(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	on, ok := optionalBool(request, "on")
	if !ok {
		return mcp.NewToolResultError(`required parameter "on" is missing`), nil
	}
	duration := 30
	if d, ok := optionalNumber(request, "duration"); ok && d > 0 {
		duration = int(d)
	}

	if err := s.deps.Ring.SetSiren(ctx, id, on, duration); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set siren: %s", err)), nil
	}
	msg := fmt.Sprintf("Siren on %s silenced", id)
	if on {
		msg = fmt.Sprintf("Siren on %s sounding for %ds", id, duration)
	}
	return mcp.NewToolResultText(formatJSON(ActionOutput{Success: true, Message: msg})), nil
}

func (s *Server) handleKasaSetPower(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requiredString(request, "device")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	on, ok := optionalBool(request, "on")
	if !ok {
		return mcp.NewToolResultError(`required parameter "on" is missing`), nil
	}

	devices, err := s.deps.Kasa.DeviceList(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list Kasa devices: %s", err)), nil
	}
	for _, d := range devices {
		if d.DeviceID != ref && !strings.EqualFold(d.Alias, ref) {
			continue
		}
		if err := s.deps.Kasa.SetRelayState(ctx, d, on); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to switch %s: %s", d.Alias, err)), nil
		}
		state := "off"
		if on {
			state = "on"
		}
		return mcp.NewToolResultText(formatJSON(ActionOutput{Success: true, Message: fmt.Sprintf("%s switched %s", d.Alias, state)})), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("no Kasa device with id or alias %q", ref)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalBool(request mcp.CallToolRequest, key string) (bool, bool) {
	b, ok := request.GetArguments()[key].(bool)
	return b, ok
}

func optionalNumber(request mcp.CallToolRequest, key string) (float64, bool) {
	switch n := request.GetArguments()[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// convertArguments decodes tool arguments into a typed request through JSON,
// so argument names follow the target's json tags.
func convertArguments(args map[string]any, v any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
