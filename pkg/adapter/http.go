package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urmzd/devicehub/pkg/device"
	"github.com/urmzd/devicehub/pkg/httpclient"
)

// Default HTTP adapter timeouts.
const (
	DefaultStatusTimeout  = 5 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// HTTP is the generic REST pass-through adapter.
//
// Health:  GET {apiEndpoint}/status, any 2xx is online.
// Command: {method or POST} {apiEndpoint}{endpoint or /command/{id}} with the
// arguments as a JSON body (omitted for GET) and the parsed reply as result.
type HTTP struct {
	client         *httpclient.Client
	statusTimeout  time.Duration
	commandTimeout time.Duration
}

// NewHTTP creates the adapter. Non-positive timeouts select the defaults.
func NewHTTP(httpClient *http.Client, statusTimeout, commandTimeout time.Duration) *HTTP {
	if statusTimeout <= 0 {
		statusTimeout = DefaultStatusTimeout
	}
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	return &HTTP{
		client:         httpclient.New(httpClient, ""),
		statusTimeout:  statusTimeout,
		commandTimeout: commandTimeout,
	}
}

func (a *HTTP) CheckStatus(ctx context.Context, d *device.Device) (bool, error) {
	if d.APIEndpoint == "" {
		return false, device.Validationf("device %q has no apiEndpoint", d.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, a.statusTimeout)
	defer cancel()

	_, err := a.client.Do(ctx, httpclient.Request{
		Method:      http.MethodGet,
		URL:         d.APIEndpoint + "/status",
		BearerToken: d.APIKey,
	})
	if err != nil {
		var apiErr *device.APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *HTTP) Send(ctx context.Context, d *device.Device, cmd *device.Command, params map[string]any) (any, error) {
	if d.APIEndpoint == "" {
		return nil, device.Validationf("device %q has no apiEndpoint", d.ID)
	}

	method := cmd.Method
	if method == "" {
		method = http.MethodPost
	}
	path := cmd.Endpoint
	if path == "" {
		path = "/command/" + cmd.ID
	}

	req := httpclient.Request{
		Method:      method,
		URL:         d.APIEndpoint + path,
		BearerToken: d.APIKey,
	}
	if method != http.MethodGet {
		if params == nil {
			params = map[string]any{}
		}
		req.Body = params
	}

	ctx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("command %q: %w", cmd.ID, err)
	}
	return resp.Value(), nil
}
