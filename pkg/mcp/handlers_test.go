package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/devicehub/pkg/adapter"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/device/schema"
	"github.com/urmzd/devicehub/pkg/store"
	"github.com/urmzd/devicehub/pkg/vendors/hue"
	"github.com/urmzd/devicehub/pkg/vendors/kasa"
)

type fakePublisher struct {
	connected bool
	published []string
	opts      []adapter.PublishOptions
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload any, opts adapter.PublishOptions) error {
	p.published = append(p.published, topic+" "+payload.(string))
	p.opts = append(p.opts, opts)
	return nil
}
func (p *fakePublisher) IsConnected() bool { return p.connected }
func (p *fakePublisher) QueueLen() int     { return 0 }

type fakeHue struct {
	lights map[string]hue.LightState
	groups map[string]hue.LightState
}

func (h *fakeHue) Discover(ctx context.Context) ([]hue.Bridge, error) { return nil, nil }
func (h *fakeHue) SetLightState(ctx context.Context, id string, s hue.LightState) error {
	h.lights[id] = s
	return nil
}
func (h *fakeHue) SetGroupAction(ctx context.Context, id string, s hue.LightState) error {
	h.groups[id] = s
	return nil
}

type fakeNest struct{ calls []string }

func (n *fakeNest) SetMode(ctx context.Context, name, mode string) error {
	if mode == "TURBO" {
		return device.Validationf("nest: invalid thermostat mode %q", mode)
	}
	n.calls = append(n.calls, "mode:"+mode)
	return nil
}
func (n *fakeNest) SetEco(ctx context.Context, name string, on bool) error {
	if on {
		n.calls = append(n.calls, "eco:on")
	} else {
		n.calls = append(n.calls, "eco:off")
	}
	return nil
}
func (n *fakeNest) SetTemperature(ctx context.Context, name string, celsius float64) error {
	n.calls = append(n.calls, "temp")
	return nil
}

type fakeRing struct {
	on       bool
	duration int
}

func (r *fakeRing) SetSiren(ctx context.Context, id string, on bool, duration int) error {
	r.on, r.duration = on, duration
	return nil
}

type fakeKasa struct{ switched map[string]bool }

func (k *fakeKasa) DeviceList(ctx context.Context) ([]kasa.Device, error) {
	return []kasa.Device{{DeviceID: "800612", Alias: "Kettle", Status: 1}}, nil
}
func (k *fakeKasa) SetRelayState(ctx context.Context, d kasa.Device, on bool) error {
	k.switched[d.DeviceID] = on
	return nil
}

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	hub := device.NewHub()
	registry := device.NewRegistry(store.NewFileStore(t.TempDir()+"/devices.json"), hub)
	adapters := device.NewAdapters()
	adapters.Register(device.ProtocolHTTP, adapter.NewHTTP(nil, time.Second, time.Second))
	executor := device.NewExecutor(registry, adapters, device.WithParameterValidator(schema.NewValidator()))
	poller := device.NewPoller(registry, adapters, time.Second)
	deps.Service = device.NewService(registry, executor, poller, hub, nil)
	return NewServer(deps, "test")
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func newLamp(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/command/brightness" {
			_, _ = io.WriteString(w, `{"applied":true}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestToolsRegistration(t *testing.T) {
	core := []string{"get_health", "list_devices", "get_device", "add_device", "update_device", "remove_device",
		"execute_command", "check_device_status", "check_all_devices", "list_executions"}

	s := newTestServer(t, Dependencies{})
	assert.Equal(t, core, s.Tools())

	s = newTestServer(t, Dependencies{
		MQTT: &fakePublisher{}, Hue: &fakeHue{}, Nest: &fakeNest{}, Ring: &fakeRing{}, Kasa: &fakeKasa{},
	})
	assert.Len(t, s.Tools(), len(core)+7)
	assert.Contains(t, s.Tools(), "kasa_set_power")
}

func TestDeviceTools(t *testing.T) {
	lamp := newLamp(t)
	s := newTestServer(t, Dependencies{})

	text, isErr := call(t, s.handleAddDevice, map[string]any{
		"id":          "desk-lamp",
		"name":        "Desk Lamp",
		"type":        "smart_light",
		"protocol":    "http",
		"apiEndpoint": lamp.URL,
		"apiKey":      "secret",
		"commands": []any{
			map[string]any{"id": "brightness", "name": "Brightness", "parameters": []any{
				map[string]any{"name": "level", "type": "number", "required": true},
			}},
		},
	})
	require.False(t, isErr, text)
	assert.NotContains(t, text, "secret")

	_, isErr = call(t, s.handleAddDevice, map[string]any{"name": "No protocol"})
	assert.True(t, isErr)

	text, isErr = call(t, s.handleAddDevice, map[string]any{"id": "desk-lamp", "name": "Again", "protocol": "http"})
	assert.True(t, isErr)
	assert.Contains(t, text, "already exists")

	text, isErr = call(t, s.handleUpdateDevice, map[string]any{"id": "desk-lamp", "name": "Reading Lamp"})
	require.False(t, isErr, text)
	var out DeviceOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "Reading Lamp", out.Device.Name)
	assert.Equal(t, lamp.URL, out.Device.APIEndpoint)

	text, isErr = call(t, s.handleListDevices, nil)
	require.False(t, isErr)
	var list ListDevicesOutput
	require.NoError(t, json.Unmarshal([]byte(text), &list))
	assert.Equal(t, 1, list.Count)

	_, isErr = call(t, s.handleGetDevice, map[string]any{"id": "nope"})
	assert.True(t, isErr)

	text, isErr = call(t, s.handleCheckDeviceStatus, map[string]any{"id": "desk-lamp"})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"status": "online"`)

	text, isErr = call(t, s.handleCheckAllDevices, nil)
	require.False(t, isErr)
	var all CheckAllOutput
	require.NoError(t, json.Unmarshal([]byte(text), &all))
	assert.Equal(t, 1, all.Online)

	text, isErr = call(t, s.handleRemoveDevice, map[string]any{"id": "desk-lamp"})
	require.False(t, isErr, text)
	_, isErr = call(t, s.handleRemoveDevice, map[string]any{"id": "desk-lamp"})
	assert.True(t, isErr)
}

func TestExecuteCommandTool(t *testing.T) {
	lamp := newLamp(t)
	s := newTestServer(t, Dependencies{})
	_, err := s.deps.Service.AddDevice(context.Background(), device.Spec{
		ID: "desk-lamp", Name: "Desk Lamp", Protocol: device.ProtocolHTTP, APIEndpoint: lamp.URL,
		Commands: []device.Command{{ID: "brightness", Name: "Brightness", Parameters: []device.Parameter{
			{Name: "level", Type: device.ParamNumber, Required: true},
		}}},
	})
	require.NoError(t, err)

	text, isErr := call(t, s.handleExecuteCommand, map[string]any{
		"device_id": "desk-lamp", "command_id": "brightness", "parameters": map[string]any{"level": 70.0},
	})
	require.False(t, isErr, text)
	var out ExecutionOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, device.ExecutionCompleted, out.Execution.Status)

	text, isErr = call(t, s.handleExecuteCommand, map[string]any{"device_id": "desk-lamp", "command_id": "brightness"})
	assert.True(t, isErr)
	assert.Contains(t, text, "validation")

	_, isErr = call(t, s.handleExecuteCommand, map[string]any{
		"device_id": "desk-lamp", "command_id": "brightness", "parameters": "level=70",
	})
	assert.True(t, isErr)

	text, isErr = call(t, s.handleListExecutions, map[string]any{"device_id": "desk-lamp"})
	require.False(t, isErr)
	var execs ListExecutionsOutput
	require.NoError(t, json.Unmarshal([]byte(text), &execs))
	assert.Equal(t, 1, execs.Count)
}

func TestHealthTool(t *testing.T) {
	s := newTestServer(t, Dependencies{MQTT: &fakePublisher{}})
	text, isErr := call(t, s.handleGetHealth, nil)
	require.False(t, isErr)
	var out GetHealthOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "degraded", out.Status)
	assert.Equal(t, "disconnected", out.MQTT)
}

func TestVendorTools(t *testing.T) {
	pub := &fakePublisher{connected: true}
	hueClient := &fakeHue{lights: map[string]hue.LightState{}, groups: map[string]hue.LightState{}}
	nestClient := &fakeNest{}
	ringClient := &fakeRing{}
	kasaClient := &fakeKasa{switched: map[string]bool{}}
	s := newTestServer(t, Dependencies{MQTT: pub, Hue: hueClient, Nest: nestClient, Ring: ringClient, Kasa: kasaClient})

	t.Run("mqtt_publish", func(t *testing.T) {
		text, isErr := call(t, s.handleMQTTPublish, map[string]any{"topic": "home/lamp/set", "payload": `{"state":"ON"}`, "qos": 1.0, "retain": true})
		require.False(t, isErr, text)
		assert.Equal(t, []string{`home/lamp/set {"state":"ON"}`}, pub.published)
		assert.Equal(t, adapter.PublishOptions{QoS: 1, Retain: true}, pub.opts[0])
	})

	t.Run("hue_set_light", func(t *testing.T) {
		text, isErr := call(t, s.handleHueSetLight, map[string]any{"light_id": "3", "on": true, "brightness": 100.0, "color": "#ff0000"})
		require.False(t, isErr, text)
		st := hueClient.lights["3"]
		require.NotNil(t, st.Bri)
		assert.Equal(t, hue.MaxBrightness, *st.Bri)
		require.NotNil(t, st.XY)
		assert.InDelta(t, 0.64, st.XY[0], 0.01)

		_, isErr = call(t, s.handleHueSetLight, map[string]any{"light_id": "1", "group": true, "kelvin": 2700.0})
		require.False(t, isErr)
		assert.Equal(t, hue.KelvinToMired(2700), *hueClient.groups["1"].CT)

		_, isErr = call(t, s.handleHueSetLight, map[string]any{"light_id": "3"})
		assert.True(t, isErr)
		_, isErr = call(t, s.handleHueSetLight, map[string]any{"light_id": "3", "color": "red"})
		assert.True(t, isErr)
	})

	t.Run("nest", func(t *testing.T) {
		_, isErr := call(t, s.handleNestSetMode, map[string]any{"device_name": "t1", "mode": "heat"})
		require.False(t, isErr)
		_, isErr = call(t, s.handleNestSetMode, map[string]any{"device_name": "t1", "mode": "eco"})
		require.False(t, isErr)
		_, isErr = call(t, s.handleNestSetMode, map[string]any{"device_name": "t1", "mode": "turbo"})
		assert.True(t, isErr)
		_, isErr = call(t, s.handleNestSetTemperature, map[string]any{"device_name": "t1", "celsius": 21.0})
		require.False(t, isErr)
		_, isErr = call(t, s.handleNestSetTemperature, map[string]any{"device_name": "t1"})
		assert.True(t, isErr)
		assert.Equal(t, []string{"mode:HEAT", "eco:on", "temp"}, nestClient.calls)
	})

	t.Run("ring_set_siren", func(t *testing.T) {
		_, isErr := call(t, s.handleRingSetSiren, map[string]any{"device_id": "987", "on": true})
		require.False(t, isErr)
		assert.True(t, ringClient.on)
		assert.Equal(t, 30, ringClient.duration)
	})

	t.Run("kasa_set_power", func(t *testing.T) {
		_, isErr := call(t, s.handleKasaSetPower, map[string]any{"device": "kettle", "on": true})
		require.False(t, isErr)
		assert.True(t, kasaClient.switched["800612"])

		text, isErr := call(t, s.handleKasaSetPower, map[string]any{"device": "toaster", "on": true})
		assert.True(t, isErr)
		assert.Contains(t, text, "toaster")
	})
}
