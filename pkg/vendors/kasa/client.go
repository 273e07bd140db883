package kasa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/httpclient"
)

// CloudURL is the TP-Link cloud endpoint used for login and device listing.
const CloudURL = "https://wap.tplinkcloud.com"

const (
	appType         = "Kasa_Android"
	lightingService = "smartlife.iot.smartbulb.lightingservice"
)

// Device is a device registered to the cloud account.
type Device struct {
	DeviceID     string `json:"deviceId"`
	Alias        string `json:"alias"`
	DeviceType   string `json:"deviceType"`
	DeviceModel  string `json:"deviceModel"`
	DeviceMAC    string `json:"deviceMac"`
	AppServerURL string `json:"appServerUrl"`
	Status       int    `json:"status"`
}

// Online reports the cloud connection status.
func (d Device) Online() bool { return d.Status == 1 }

// LightState is a bulb transition request. Nil fields are left unchanged.
type LightState struct {
	OnOff            *int `json:"on_off,omitempty"`
	Brightness       *int `json:"brightness,omitempty"`
	Hue              *int `json:"hue,omitempty"`
	Saturation       *int `json:"saturation,omitempty"`
	ColorTemp        *int `json:"color_temp,omitempty"`
	TransitionPeriod *int `json:"transition_period,omitempty"`
}

// Client calls the TP-Link cloud.
type Client struct {
	http         *httpclient.Client
	cloudURL     string
	terminalUUID string

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. An empty cloudURL selects CloudURL.
func NewClient(httpClient *http.Client, cloudURL string) *Client {
	if cloudURL == "" {
		cloudURL = CloudURL
	}
	return &Client{
		http:         httpclient.New(httpClient, "kasa"),
		cloudURL:     cloudURL,
		terminalUUID: uuid.NewString(),
	}
}

// SetToken installs a previously obtained cloud token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login authenticates with the cloud and stores the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", device.Validationf("kasa: username and password are required")
	}

	result, err := c.call(ctx, c.cloudURL, "", map[string]any{
		"method": "login",
		"params": map[string]any{
			"appType":       appType,
			"cloudUserName": username,
			"cloudPassword": password,
			"terminalUUID":  c.terminalUUID,
		},
	})
	if err != nil {
		return "", err
	}

	token := result.Get("token").String()
	if token == "" {
		return "", &device.APIError{Vendor: "kasa", Message: "login response carried no token"}
	}
	c.SetToken(token)
	return token, nil
}

// DeviceList lists the account's devices.
func (c *Client) DeviceList(ctx context.Context) ([]Device, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	result, err := c.call(ctx, c.cloudURL, token, map[string]any{"method": "getDeviceList"})
	if err != nil {
		return nil, err
	}

	var devices []Device
	if list := result.Get("deviceList"); list.Exists() {
		if err := json.Unmarshal([]byte(list.Raw), &devices); err != nil {
			return nil, fmt.Errorf("kasa: failed to decode device list: %w", err)
		}
	}
	return devices, nil
}

// Passthrough relays a local protocol request to a device through the cloud
// and returns the decoded device reply.
func (c *Client) Passthrough(ctx context.Context, d Device, request map[string]any) (map[string]any, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	if d.DeviceID == "" {
		return nil, device.Validationf("kasa: device id is required")
	}
	server := d.AppServerURL
	if server == "" {
		server = c.cloudURL
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, device.Validationf("kasa: request is not JSON encodable: %s", err)
	}

	result, err := c.call(ctx, server, token, map[string]any{
		"method": "passthrough",
		"params": map[string]any{
			"deviceId":    d.DeviceID,
			"requestData": string(data),
		},
	})
	if err != nil {
		return nil, err
	}

	raw := result.Get("responseData")
	reply := raw.Raw
	if raw.Type == gjson.String {
		reply = raw.String()
	}
	if !gjson.Valid(reply) {
		return nil, &device.APIError{Vendor: "kasa", Message: "device reply is not JSON"}
	}
	if err := nestedError(gjson.Parse(reply)); err != nil {
		return nil, err
	}

	out := map[string]any{}
	if err := json.Unmarshal([]byte(reply), &out); err != nil {
		return nil, fmt.Errorf("kasa: failed to decode device reply: %w", err)
	}
	return out, nil
}

// SetRelayState switches a plug's relay.
func (c *Client) SetRelayState(ctx context.Context, d Device, on bool) error {
	state := 0
	if on {
		state = 1
	}
	_, err := c.Passthrough(ctx, d, map[string]any{
		"system": map[string]any{"set_relay_state": map[string]any{"state": state}},
	})
	return err
}

// SysInfo returns the device's system information block.
func (c *Client) SysInfo(ctx context.Context, d Device) (map[string]any, error) {
	reply, err := c.Passthrough(ctx, d, map[string]any{
		"system": map[string]any{"get_sysinfo": map[string]any{}},
	})
	if err != nil {
		return nil, err
	}
	system, _ := reply["system"].(map[string]any)
	info, _ := system["get_sysinfo"].(map[string]any)
	return info, nil
}

// SetLightState transitions a bulb.
func (c *Client) SetLightState(ctx context.Context, d Device, state LightState) error {
	_, err := c.Passthrough(ctx, d, map[string]any{
		lightingService: map[string]any{"transition_light_state": state},
	})
	return err
}

// Energy returns real-time power readings from an energy-monitoring plug.
func (c *Client) Energy(ctx context.Context, d Device) (map[string]any, error) {
	reply, err := c.Passthrough(ctx, d, map[string]any{
		"emeter": map[string]any{"get_realtime": map[string]any{}},
	})
	if err != nil {
		return nil, err
	}
	emeter, _ := reply["emeter"].(map[string]any)
	realtime, _ := emeter["get_realtime"].(map[string]any)
	return realtime, nil
}

func (c *Client) requireToken() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", device.Validationf("kasa: not logged in")
	}
	return c.token, nil
}

// call posts a cloud envelope and returns its result after checking error_code.
func (c *Client) call(ctx context.Context, server, token string, body map[string]any) (gjson.Result, error) {
	u := server
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}

	resp, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodPost, URL: u, Body: body})
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, &device.APIError{Vendor: "kasa", Message: "response is not JSON"}
	}

	env := gjson.ParseBytes(resp.Body)
	if code := env.Get("error_code").Int(); code != 0 {
		return gjson.Result{}, &device.APIError{
			Vendor:  "kasa",
			Code:    int(code),
			Message: env.Get("msg").String(),
		}
	}
	return env.Get("result"), nil
}

// nestedError finds the first non-zero err_code inside a device reply.
func nestedError(r gjson.Result) error {
	if !r.IsObject() {
		return nil
	}
	if code := r.Get("err_code"); code.Exists() && code.Int() != 0 {
		msg := r.Get("err_msg").String()
		if msg == "" {
			msg = "device returned an error"
		}
		return &device.APIError{Vendor: "kasa", Code: int(code.Int()), Message: msg}
	}

	var err error
	r.ForEach(func(_, v gjson.Result) bool {
		err = nestedError(v)
		return err == nil
	})
	return err
}
