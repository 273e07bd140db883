package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/devicehub/pkg/device"
)

func lampServer(t *testing.T) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var bodies []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/command/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestHTTPCheckStatus(t *testing.T) {
	srv, _ := lampServer(t)
	a := NewHTTP(srv.Client(), 0, 0)

	online, err := a.CheckStatus(context.Background(), &device.Device{ID: "lamp", APIEndpoint: srv.URL})
	require.NoError(t, err)
	assert.True(t, online)

	// A non-2xx status means the device answered but is not healthy.
	online, err = a.CheckStatus(context.Background(), &device.Device{ID: "lamp", APIEndpoint: srv.URL + "/missing"})
	require.NoError(t, err)
	assert.False(t, online)

	_, err = a.CheckStatus(context.Background(), &device.Device{ID: "lamp"})
	assert.ErrorIs(t, err, device.ErrValidation)
}

func TestHTTPCheckStatusUnreachable(t *testing.T) {
	a := NewHTTP(nil, 200*time.Millisecond, 0)

	online, err := a.CheckStatus(context.Background(), &device.Device{ID: "lamp", APIEndpoint: "http://127.0.0.1:1"})
	assert.False(t, online)
	assert.ErrorIs(t, err, device.ErrNetwork)
}

func TestHTTPSend(t *testing.T) {
	srv, bodies := lampServer(t)
	a := NewHTTP(srv.Client(), 0, 0)
	d := &device.Device{ID: "lamp", APIEndpoint: srv.URL, APIKey: "secret"}

	result, err := a.Send(context.Background(), d, &device.Command{ID: "brightness"}, map[string]any{"level": 70})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)

	require.Len(t, *bodies, 1)
	assert.Equal(t, float64(70), (*bodies)[0]["level"])

	_, err = a.Send(context.Background(), d, &device.Command{ID: "toggle"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, (*bodies)[1])
}

func TestHTTPSendFailure(t *testing.T) {
	srv, _ := lampServer(t)
	a := NewHTTP(srv.Client(), 0, 0)
	d := &device.Device{ID: "lamp", APIEndpoint: srv.URL}

	_, err := a.Send(context.Background(), d, &device.Command{ID: "reset", Endpoint: "/broken"}, nil)
	require.Error(t, err)

	var apiErr *device.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, err.Error(), `command "reset"`)
}

func TestUnimplemented(t *testing.T) {
	a := NewUnimplemented(device.ProtocolBluetooth)
	d := &device.Device{ID: "tag"}

	_, err := a.CheckStatus(context.Background(), d)
	assert.ErrorIs(t, err, device.ErrProtocolUnimplemented)

	_, err = a.Send(context.Background(), d, &device.Command{ID: "beep"}, nil)
	assert.ErrorIs(t, err, device.ErrProtocolUnimplemented)
	assert.Contains(t, err.Error(), "bluetooth")
}
