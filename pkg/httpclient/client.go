package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/urmzd/devicehub/pkg/device"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// messagePaths are probed, in order, for a human readable failure message.
var messagePaths = []string{
	"error.message",
	"error_description",
	"message",
	"msg",
	"error.description",
	"error",
	"description",
}

// Client sends JSON requests and turns failures into device errors.
type Client struct {
	HTTP   *http.Client
	Vendor string // prefix for APIError messages; empty for generic devices
}

// New creates a client. A nil httpClient selects http.DefaultClient.
func New(httpClient *http.Client, vendor string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient, Vendor: vendor}
}

// Request describes one call.
type Request struct {
	Method      string
	URL         string
	Body        any // JSON encoded unless it is []byte or io.Reader
	ContentType string
	BearerToken string
	Header      http.Header
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Value decodes the body into a generic JSON value. An empty body yields nil.
func (r *Response) Value() any {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return string(r.Body)
	}
	return v
}

// Do performs the request. Non-2xx replies become *device.APIError; transport
// failures wrap device.ErrTimeout or device.ErrNetwork.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := req.ContentType
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, device.Validationf("request body is not JSON encodable: %s", err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, device.Validationf("invalid request %s %s: %s", method, req.URL, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &device.APIError{
			Vendor:     c.Vendor,
			StatusCode: resp.StatusCode,
			Message:    c.failureMessage(resp.StatusCode, data),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// failureMessage picks the vendor's message from the body when there is one.
// Generic devices always report the HTTP reason phrase.
func (c *Client) failureMessage(status int, body []byte) string {
	reason := http.StatusText(status)
	if c.Vendor == "" || !gjson.ValidBytes(body) {
		return reason
	}
	if msg := Message(body); msg != "" {
		return msg
	}
	return reason
}

// Message extracts a failure message from a JSON body, or "".
func Message(body []byte) string {
	for _, path := range messagePaths {
		r := gjson.GetBytes(body, path)
		if r.Exists() && r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

func (c *Client) transportError(ctx context.Context, err error) error {
	prefix := "request failed"
	if c.Vendor != "" {
		prefix = c.Vendor + ": request failed"
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", prefix, device.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w: aborted: %w", prefix, device.ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s: %w: %w", prefix, device.ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", prefix, device.ErrNetwork, err)
	}
}

// JoinURL concatenates a base URL and a path without doubling slashes.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
