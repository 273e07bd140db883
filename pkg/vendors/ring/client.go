package ring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/httpclient"
)

const (
	// OAuthURL issues and refreshes access tokens.
	OAuthURL = "https://oauth.ring.com/oauth/token"
	// APIURL is the clients API root.
	APIURL = "https://api.ring.com/clients_api"
	// DevicesURL is the device settings API root.
	DevicesURL = "https://api.ring.com/devices/v1"

	clientID = "ring_official_android"
	scope    = "client"

	// refreshSkew refreshes tokens slightly before they expire.
	refreshSkew = 30 * time.Second
)

var (
	// ErrTwoFactorRequired is returned by Login when the account needs a
	// verification code. Call Login again with the code.
	ErrTwoFactorRequired = errors.New("ring: two-factor code required")

	// ErrNotAuthenticated is returned before Login or SetToken.
	ErrNotAuthenticated = errors.New("ring: not authenticated")
)

// Token is an OAuth token pair.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Device is a doorbell, camera or chime.
type Device struct {
	ID              int64          `json:"id"`
	Description     string         `json:"description"`
	Kind            string         `json:"kind"`
	FirmwareVersion string         `json:"firmware_version"`
	BatteryLife     any            `json:"battery_life,omitempty"`
	Alerts          map[string]any `json:"alerts,omitempty"`
	SirenStatus     map[string]any `json:"siren_status,omitempty"`
}

// Devices groups the account's devices by family.
type Devices struct {
	Doorbots           []Device `json:"doorbots"`
	AuthorizedDoorbots []Device `json:"authorized_doorbots"`
	StickupCams        []Device `json:"stickup_cams"`
	Chimes             []Device `json:"chimes"`
}

// All returns every device in one slice.
func (d *Devices) All() []Device {
	out := make([]Device, 0, len(d.Doorbots)+len(d.AuthorizedDoorbots)+len(d.StickupCams)+len(d.Chimes))
	out = append(out, d.Doorbots...)
	out = append(out, d.AuthorizedDoorbots...)
	out = append(out, d.StickupCams...)
	return append(out, d.Chimes...)
}

// Event is one ding or motion history entry.
type Event struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Answered  bool      `json:"answered"`
	Favorite  bool      `json:"favorite"`
}

// Client calls the Ring cloud API.
type Client struct {
	http       *httpclient.Client
	oauthURL   string
	apiURL     string
	devicesURL string
	now        func() time.Time

	mu    sync.Mutex
	token *Token
}

// Option configures a Client.
type Option func(*Client)

// WithURLs overrides the API roots. Empty values keep the defaults.
func WithURLs(oauth, api, devices string) Option {
	return func(c *Client) {
		if oauth != "" {
			c.oauthURL = oauth
		}
		if api != "" {
			c.apiURL = strings.TrimRight(api, "/")
		}
		if devices != "" {
			c.devicesURL = strings.TrimRight(devices, "/")
		}
	}
}

// NewClient creates an unauthenticated client.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		http:       httpclient.New(httpClient, "ring"),
		oauthURL:   OAuthURL,
		apiURL:     APIURL,
		devicesURL: DevicesURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs a previously obtained token.
func (c *Client) SetToken(t *Token) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// Login exchanges account credentials for a token. twoFactorCode may be
// empty on the first attempt.
func (c *Client) Login(ctx context.Context, username, password, twoFactorCode string) (*Token, error) {
	if username == "" || password == "" {
		return nil, device.Validationf("ring: username and password are required")
	}

	header := http.Header{}
	header.Set("2fa-support", "true")
	if twoFactorCode != "" {
		header.Set("2fa-code", twoFactorCode)
	}

	tok, err := c.grant(ctx, map[string]string{
		"client_id":  clientID,
		"grant_type": "password",
		"username":   username,
		"password":   password,
		"scope":      scope,
	}, header)
	if err != nil {
		var apiErr *device.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusPreconditionFailed {
			return nil, fmt.Errorf("%w: %w", ErrTwoFactorRequired, err)
		}
		return nil, err
	}
	return tok, nil
}

// Refresh exchanges the refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()
	if tok == nil || tok.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}
	return c.grant(ctx, map[string]string{
		"client_id":     clientID,
		"grant_type":    "refresh_token",
		"refresh_token": tok.RefreshToken,
		"scope":         scope,
	}, nil)
}

func (c *Client) grant(ctx context.Context, body map[string]string, header http.Header) (*Token, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.oauthURL,
		Body:   body,
		Header: header,
	})
	if err != nil {
		return nil, err
	}

	var tok Token
	if err := resp.JSON(&tok); err != nil {
		return nil, fmt.Errorf("ring: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, &device.APIError{Vendor: "ring", Message: "token response carried no access token"}
	}
	if tok.ExpiresIn > 0 {
		tok.ExpiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	c.mu.Lock()
	c.token = &tok
	c.mu.Unlock()
	return &tok, nil
}

// accessToken returns a valid access token, refreshing when it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()

	if tok == nil {
		return "", ErrNotAuthenticated
	}
	if tok.ExpiresAt.IsZero() || c.now().Add(refreshSkew).Before(tok.ExpiresAt) {
		return tok.AccessToken, nil
	}
	fresh, err := c.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// Devices lists the account's devices.
func (c *Client) Devices(ctx context.Context) (*Devices, error) {
	resp, err := c.do(ctx, http.MethodGet, c.apiURL+"/ring_devices", nil)
	if err != nil {
		return nil, err
	}
	var out Devices
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("ring: %w", err)
	}
	return &out, nil
}

// History returns recent ding and motion events for a doorbell or camera.
func (c *Client) History(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	if deviceID == "" {
		return nil, device.Validationf("ring: device id is required")
	}
	u := c.apiURL + "/doorbots/" + url.PathEscape(deviceID) + "/history"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := resp.JSON(&events); err != nil {
		return nil, fmt.Errorf("ring: %w", err)
	}
	return events, nil
}

// SetSiren turns a camera siren on for duration seconds, or off.
func (c *Client) SetSiren(ctx context.Context, deviceID string, on bool, duration int) error {
	if deviceID == "" {
		return device.Validationf("ring: device id is required")
	}
	u := c.apiURL + "/doorbots/" + url.PathEscape(deviceID)
	if on {
		u += "/siren_on"
		if duration > 0 {
			u += "?duration=" + strconv.Itoa(duration)
		}
	} else {
		u += "/siren_off"
	}
	_, err := c.do(ctx, http.MethodPut, u, nil)
	return err
}

// SetMotionDetection enables or disables motion alerts for a device.
func (c *Client) SetMotionDetection(ctx context.Context, deviceID string, enabled bool) error {
	if deviceID == "" {
		return device.Validationf("ring: device id is required")
	}
	_, err := c.do(ctx, http.MethodPatch, c.devicesURL+"/devices/"+url.PathEscape(deviceID)+"/settings", map[string]any{
		"motion_settings": map[string]any{"motion_detection_enabled": enabled},
	})
	return err
}

func (c *Client) do(ctx context.Context, method, u string, body any) (*httpclient.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.http.Do(ctx, httpclient.Request{
		Method:      method,
		URL:         u,
		Body:        body,
		BearerToken: token,
	})
}
