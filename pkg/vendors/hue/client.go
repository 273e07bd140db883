package hue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/httpclient"
)

// DiscoveryURL is the public bridge discovery endpoint.
const DiscoveryURL = "https://discovery.meethue.com/"

// errLinkButton is the bridge error type for an unpressed link button.
const errLinkButton = 101

// ErrLinkButtonNotPressed is returned by Pair until the bridge button is
// pressed. Retrying after pressing the button is expected.
var ErrLinkButtonNotPressed = errors.New("hue: link button not pressed")

// Bridge is a bridge found by discovery.
type Bridge struct {
	ID                string `json:"id"`
	InternalIPAddress string `json:"internalipaddress"`
	Port              int    `json:"port,omitempty"`
}

// Light is a light known to the bridge.
type Light struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	ModelID  string         `json:"modelid"`
	UniqueID string         `json:"uniqueid"`
	State    map[string]any `json:"state"`
}

// LightState is the body of a light state or group action change. Nil fields
// are left unchanged on the bulb.
type LightState struct {
	On             *bool       `json:"on,omitempty"`
	Bri            *int        `json:"bri,omitempty"`
	Hue            *int        `json:"hue,omitempty"`
	Sat            *int        `json:"sat,omitempty"`
	CT             *int        `json:"ct,omitempty"`
	XY             *[2]float64 `json:"xy,omitempty"`
	TransitionTime *int        `json:"transitiontime,omitempty"`
}

// Clamped returns a copy with every value inside the documented ranges.
func (s LightState) Clamped() LightState {
	out := s
	if s.Bri != nil {
		v := clampInt(*s.Bri, MinBrightness, MaxBrightness)
		out.Bri = &v
	}
	if s.Hue != nil {
		v := clampInt(*s.Hue, MinHue, MaxHue)
		out.Hue = &v
	}
	if s.Sat != nil {
		v := clampInt(*s.Sat, MinSaturation, MaxSaturation)
		out.Sat = &v
	}
	if s.CT != nil {
		v := clampInt(*s.CT, MinMired, MaxMired)
		out.CT = &v
	}
	if s.XY != nil {
		xy := [2]float64{clampFloat(s.XY[0], 0, 1), clampFloat(s.XY[1], 0, 1)}
		out.XY = &xy
	}
	if s.TransitionTime != nil && *s.TransitionTime < 0 {
		v := 0
		out.TransitionTime = &v
	}
	return out
}

// Client talks to one Hue bridge over its local REST API.
type Client struct {
	http         *httpclient.Client
	discoveryURL string

	mu       sync.RWMutex
	bridgeIP string
	username string
}

// Option configures a Client.
type Option func(*Client)

// WithDiscoveryURL overrides DiscoveryURL.
func WithDiscoveryURL(u string) Option {
	return func(c *Client) { c.discoveryURL = u }
}

// NewClient creates a client. bridgeIP and username may be empty until
// discovery and pairing have run.
func NewClient(httpClient *http.Client, bridgeIP, username string, opts ...Option) *Client {
	c := &Client{
		http:         httpclient.New(httpClient, "hue"),
		discoveryURL: DiscoveryURL,
		bridgeIP:     bridgeIP,
		username:     username,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBridge selects the bridge address (host or host:port).
func (c *Client) SetBridge(ip string) {
	c.mu.Lock()
	c.bridgeIP = ip
	c.mu.Unlock()
}

// Username returns the whitelisted user, empty before pairing.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Discover lists bridges on the local network via the discovery service.
func (c *Client) Discover(ctx context.Context) ([]Bridge, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: c.discoveryURL})
	if err != nil {
		return nil, err
	}
	var bridges []Bridge
	if err := resp.JSON(&bridges); err != nil {
		return nil, fmt.Errorf("hue: %w", err)
	}
	return bridges, nil
}

// Pair registers an application user with the bridge. The link button must
// have been pressed first, otherwise ErrLinkButtonNotPressed is returned.
func (c *Client) Pair(ctx context.Context, deviceType string) (string, error) {
	base, err := c.bridgeURL()
	if err != nil {
		return "", err
	}
	if deviceType == "" {
		deviceType = "devicehub#server"
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    base + "/api",
		Body:   map[string]string{"devicetype": deviceType},
	})
	if err != nil {
		return "", err
	}
	if err := checkErrors(resp.Body); err != nil {
		var apiErr *device.APIError
		if errors.As(err, &apiErr) && apiErr.Code == errLinkButton {
			return "", fmt.Errorf("%w: %w", ErrLinkButtonNotPressed, err)
		}
		return "", err
	}

	username := gjson.GetBytes(resp.Body, "0.success.username").String()
	if username == "" {
		return "", &device.APIError{Vendor: "hue", Message: "pairing response carried no username"}
	}

	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
	return username, nil
}

// Lights lists the lights known to the bridge, keyed by light id.
func (c *Client) Lights(ctx context.Context) (map[string]Light, error) {
	base, err := c.userURL()
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: base + "/lights"})
	if err != nil {
		return nil, err
	}
	if err := checkErrors(resp.Body); err != nil {
		return nil, err
	}

	lights := map[string]Light{}
	if err := resp.JSON(&lights); err != nil {
		return nil, fmt.Errorf("hue: %w", err)
	}
	return lights, nil
}

// SetLightState changes the state of one light.
func (c *Client) SetLightState(ctx context.Context, lightID string, state LightState) error {
	if lightID == "" {
		return device.Validationf("hue: light id is required")
	}
	return c.put(ctx, "/lights/"+lightID+"/state", state)
}

// SetGroupAction changes the state of every light in a group.
func (c *Client) SetGroupAction(ctx context.Context, groupID string, state LightState) error {
	if groupID == "" {
		return device.Validationf("hue: group id is required")
	}
	return c.put(ctx, "/groups/"+groupID+"/action", state)
}

// TurnOn switches a light on.
func (c *Client) TurnOn(ctx context.Context, lightID string) error {
	on := true
	return c.SetLightState(ctx, lightID, LightState{On: &on})
}

// TurnOff switches a light off.
func (c *Client) TurnOff(ctx context.Context, lightID string) error {
	on := false
	return c.SetLightState(ctx, lightID, LightState{On: &on})
}

// SetColorRGB turns a light on at the xy point of an sRGB colour.
func (c *Client) SetColorRGB(ctx context.Context, lightID string, r, g, b uint8) error {
	x, y := RGBToXY(r, g, b)
	on := true
	xy := [2]float64{x, y}
	return c.SetLightState(ctx, lightID, LightState{On: &on, XY: &xy})
}

func (c *Client) put(ctx context.Context, path string, state LightState) error {
	base, err := c.userURL()
	if err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPut,
		URL:    base + path,
		Body:   state.Clamped(),
	})
	if err != nil {
		return err
	}
	return checkErrors(resp.Body)
}

func (c *Client) bridgeURL() (string, error) {
	c.mu.RLock()
	ip := c.bridgeIP
	c.mu.RUnlock()

	if ip == "" {
		return "", device.Validationf("hue: bridge ip is required")
	}
	if strings.Contains(ip, "://") {
		return strings.TrimRight(ip, "/"), nil
	}
	return "http://" + ip, nil
}

func (c *Client) userURL() (string, error) {
	base, err := c.bridgeURL()
	if err != nil {
		return "", err
	}
	user := c.Username()
	if user == "" {
		return "", device.Validationf("hue: bridge username is required, pair first")
	}
	return base + "/api/" + user, nil
}

// checkErrors turns the first {"error":{...}} entry of a bridge reply into an APIError.
func checkErrors(body []byte) error {
	if !gjson.ValidBytes(body) {
		return nil
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil
	}
	for _, entry := range parsed.Array() {
		e := entry.Get("error")
		if !e.Exists() {
			continue
		}
		return &device.APIError{
			Vendor:  "hue",
			Code:    int(e.Get("type").Int()),
			Message: e.Get("description").String(),
		}
	}
	return nil
}
