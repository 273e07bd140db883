package nest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/httpclient"
)

// BaseURL is the Smart Device Management API root.
const BaseURL = "https://smartdevicemanagement.googleapis.com/v1"

// SDM command names.
const (
	CommandSetMode      = "sdm.devices.commands.ThermostatMode.SetMode"
	CommandSetHeat      = "sdm.devices.commands.ThermostatTemperatureSetpoint.SetHeat"
	CommandSetCool      = "sdm.devices.commands.ThermostatTemperatureSetpoint.SetCool"
	CommandSetRange     = "sdm.devices.commands.ThermostatTemperatureSetpoint.SetRange"
	CommandSetEco       = "sdm.devices.commands.ThermostatEco.SetMode"
	CommandGenerateRTSP = "sdm.devices.commands.CameraLiveStream.GenerateRtspStream"
)

const (
	traitThermostatMode   = "sdm.devices.traits.ThermostatMode"
	traitTemperature      = "sdm.devices.traits.Temperature"
	traitHumidity         = "sdm.devices.traits.Humidity"
	traitConnectivity     = "sdm.devices.traits.Connectivity"
	traitDeviceInfo       = "sdm.devices.traits.Info"
	connectivityOnline    = "ONLINE"
	ecoModeManual         = "MANUAL_ECO"
	ecoModeOff            = "OFF"
	thermostatModeOff     = "OFF"
	thermostatModeHeat    = "HEAT"
	thermostatModeCool    = "COOL"
	thermostatModeRange   = "HEATCOOL"
	maxSetpointCelsius    = 32.0
	minSetpointCelsius    = 9.0
	defaultRequestTimeout = 15 * time.Second
)

// Device is an SDM device resource.
type Device struct {
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Traits          map[string]any   `json:"traits"`
	ParentRelations []map[string]any `json:"parentRelations,omitempty"`
}

// DisplayName returns the custom name trait, falling back to the resource name.
func (d Device) DisplayName() string {
	if info, ok := d.Traits[traitDeviceInfo].(map[string]any); ok {
		if name, ok := info["customName"].(string); ok && name != "" {
			return name
		}
	}
	return d.Name
}

// Online reports the Connectivity trait.
func (d Device) Online() bool {
	conn, ok := d.Traits[traitConnectivity].(map[string]any)
	if !ok {
		return true
	}
	status, _ := conn["status"].(string)
	return status == connectivityOnline
}

// ThermostatMode returns the current mode, empty when the trait is absent.
func (d Device) ThermostatMode() string {
	if m, ok := d.Traits[traitThermostatMode].(map[string]any); ok {
		mode, _ := m["mode"].(string)
		return mode
	}
	return ""
}

// AmbientTemperature returns the ambient temperature in Celsius.
func (d Device) AmbientTemperature() (float64, bool) {
	if t, ok := d.Traits[traitTemperature].(map[string]any); ok {
		v, ok := t["ambientTemperatureCelsius"].(float64)
		return v, ok
	}
	return 0, false
}

// Humidity returns the ambient humidity percentage.
func (d Device) Humidity() (float64, bool) {
	if t, ok := d.Traits[traitHumidity].(map[string]any); ok {
		v, ok := t["ambientHumidityPercent"].(float64)
		return v, ok
	}
	return 0, false
}

// RTSPStream is a live stream handle returned by GenerateRTSPStream.
type RTSPStream struct {
	URL            string    `json:"url"`
	StreamToken    string    `json:"streamToken"`
	ExtensionToken string    `json:"extensionToken"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Client calls the SDM API for one device-access project.
type Client struct {
	http      *httpclient.Client
	baseURL   string
	projectID string

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. An empty baseURL selects BaseURL.
func NewClient(httpClient *http.Client, baseURL, projectID, accessToken string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		http:      httpclient.New(httpClient, "nest"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		token:     accessToken,
	}
}

// SetAccessToken replaces the OAuth access token, e.g. after a refresh.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ListDevices lists every device in the project.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	if c.projectID == "" {
		return nil, device.Validationf("nest: project id is required")
	}
	resp, err := c.do(ctx, http.MethodGet, "/enterprises/"+c.projectID+"/devices", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Devices []Device `json:"devices"`
	}
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("nest: %w", err)
	}
	return out.Devices, nil
}

// GetDevice fetches one device. name may be the full resource name or a bare
// device id inside the configured project.
func (c *Client) GetDevice(ctx context.Context, name string) (*Device, error) {
	path, err := c.devicePath(name)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var d Device
	if err := resp.JSON(&d); err != nil {
		return nil, fmt.Errorf("nest: %w", err)
	}
	return &d, nil
}

// ExecuteCommand runs an SDM command and returns its results object.
func (c *Client) ExecuteCommand(ctx context.Context, name, command string, params map[string]any) (map[string]any, error) {
	path, err := c.devicePath(name)
	if err != nil {
		return nil, err
	}
	if command == "" {
		return nil, device.Validationf("nest: command is required")
	}
	if params == nil {
		params = map[string]any{}
	}

	resp, err := c.do(ctx, http.MethodPost, path+":executeCommand", map[string]any{
		"command": command,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}

	results := map[string]any{}
	if r := gjson.GetBytes(resp.Body, "results"); r.IsObject() {
		if m, ok := r.Value().(map[string]any); ok {
			results = m
		}
	}
	return results, nil
}

// SetMode sets the thermostat mode: HEAT, COOL, HEATCOOL or OFF.
func (c *Client) SetMode(ctx context.Context, name, mode string) error {
	mode = strings.ToUpper(mode)
	switch mode {
	case thermostatModeHeat, thermostatModeCool, thermostatModeRange, thermostatModeOff:
	default:
		return device.Validationf("nest: invalid thermostat mode %q", mode)
	}
	_, err := c.ExecuteCommand(ctx, name, CommandSetMode, map[string]any{"mode": mode})
	return err
}

// SetHeat sets the heating setpoint in Celsius.
func (c *Client) SetHeat(ctx context.Context, name string, celsius float64) error {
	if err := checkSetpoint(celsius); err != nil {
		return err
	}
	_, err := c.ExecuteCommand(ctx, name, CommandSetHeat, map[string]any{"heatCelsius": celsius})
	return err
}

// SetCool sets the cooling setpoint in Celsius.
func (c *Client) SetCool(ctx context.Context, name string, celsius float64) error {
	if err := checkSetpoint(celsius); err != nil {
		return err
	}
	_, err := c.ExecuteCommand(ctx, name, CommandSetCool, map[string]any{"coolCelsius": celsius})
	return err
}

// SetRange sets both setpoints for HEATCOOL mode.
func (c *Client) SetRange(ctx context.Context, name string, heat, cool float64) error {
	if err := checkSetpoint(heat); err != nil {
		return err
	}
	if err := checkSetpoint(cool); err != nil {
		return err
	}
	if heat > cool {
		return device.Validationf("nest: heat setpoint %.1f is above cool setpoint %.1f", heat, cool)
	}
	_, err := c.ExecuteCommand(ctx, name, CommandSetRange, map[string]any{
		"heatCelsius": heat,
		"coolCelsius": cool,
	})
	return err
}

// SetEco switches manual eco mode on or off.
func (c *Client) SetEco(ctx context.Context, name string, on bool) error {
	mode := ecoModeOff
	if on {
		mode = ecoModeManual
	}
	_, err := c.ExecuteCommand(ctx, name, CommandSetEco, map[string]any{"mode": mode})
	return err
}

// SetTemperature picks the setpoint command matching the current mode.
func (c *Client) SetTemperature(ctx context.Context, name string, celsius float64) error {
	d, err := c.GetDevice(ctx, name)
	if err != nil {
		return err
	}
	switch d.ThermostatMode() {
	case thermostatModeCool:
		return c.SetCool(ctx, name, celsius)
	case thermostatModeOff:
		return device.Validationf("nest: thermostat is off")
	default:
		return c.SetHeat(ctx, name, celsius)
	}
}

// GenerateRTSPStream opens a camera live stream.
func (c *Client) GenerateRTSPStream(ctx context.Context, name string) (*RTSPStream, error) {
	path, err := c.devicePath(name)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, path+":executeCommand", map[string]any{
		"command": CommandGenerateRTSP,
		"params":  map[string]any{},
	})
	if err != nil {
		return nil, err
	}

	r := gjson.GetBytes(resp.Body, "results")
	stream := &RTSPStream{
		URL:            r.Get("streamUrls.rtspUrl").String(),
		StreamToken:    r.Get("streamToken").String(),
		ExtensionToken: r.Get("streamExtensionToken").String(),
	}
	if exp := r.Get("expiresAt").String(); exp != "" {
		if t, err := time.Parse(time.RFC3339, exp); err == nil {
			stream.ExpiresAt = t
		}
	}
	if stream.URL == "" {
		return nil, &device.APIError{Vendor: "nest", Message: "stream response carried no rtsp url"}
	}
	return stream, nil
}

func (c *Client) devicePath(name string) (string, error) {
	if name == "" {
		return "", device.Validationf("nest: device name is required")
	}
	if strings.HasPrefix(name, "enterprises/") {
		return "/" + name, nil
	}
	if c.projectID == "" {
		return "", device.Validationf("nest: project id is required")
	}
	return "/enterprises/" + c.projectID + "/devices/" + name, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*httpclient.Response, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		return nil, device.Validationf("nest: access token is required")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	return c.http.Do(ctx, httpclient.Request{
		Method:      method,
		URL:         c.baseURL + path,
		Body:        body,
		BearerToken: token,
	})
}

func checkSetpoint(celsius float64) error {
	if celsius < minSetpointCelsius || celsius > maxSetpointCelsius {
		return device.Validationf("nest: setpoint %.1f is outside %.0f-%.0f", celsius, minSetpointCelsius, maxSetpointCelsius)
	}
	return nil
}
