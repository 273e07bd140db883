package nest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/devicehub/pkg/device"
)

func TestClient_ListDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enterprises/proj-1/devices", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"devices":[{
			"name":"enterprises/proj-1/devices/thermo",
			"type":"sdm.devices.types.THERMOSTAT",
			"traits":{
				"sdm.devices.traits.Info":{"customName":"Hallway"},
				"sdm.devices.traits.Connectivity":{"status":"ONLINE"},
				"sdm.devices.traits.ThermostatMode":{"mode":"HEAT"},
				"sdm.devices.traits.Temperature":{"ambientTemperatureCelsius":20.5}
			}
		}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "proj-1", "tok")
	devices, err := c.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d := devices[0]
	assert.Equal(t, "Hallway", d.DisplayName())
	assert.True(t, d.Online())
	assert.Equal(t, "HEAT", d.ThermostatMode())
	temp, ok := d.AmbientTemperature()
	assert.True(t, ok)
	assert.Equal(t, 20.5, temp)
}

func TestClient_ExecuteCommand(t *testing.T) {
	t.Run("posts the command envelope", func(t *testing.T) {
		var body map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/enterprises/proj-1/devices/thermo:executeCommand", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = io.WriteString(w, `{}`)
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "proj-1", "tok")
		require.NoError(t, c.SetHeat(context.Background(), "thermo", 21.5))
		assert.Equal(t, CommandSetHeat, body["command"])
		assert.Equal(t, map[string]any{"heatCelsius": 21.5}, body["params"])
	})

	t.Run("accepts full resource names", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/enterprises/other/devices/x:executeCommand", r.URL.Path)
			_, _ = io.WriteString(w, `{}`)
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "proj-1", "tok")
		require.NoError(t, c.SetMode(context.Background(), "enterprises/other/devices/x", "cool"))
	})

	t.Run("maps API failures to vendor errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"Permission denied","status":"PERMISSION_DENIED"}}`)
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "proj-1", "tok")
		err := c.SetEco(context.Background(), "thermo", true)
		var apiErr *device.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "Permission denied", apiErr.Message)
	})
}

func TestClient_Validation(t *testing.T) {
	c := NewClient(nil, "http://127.0.0.1:1", "proj-1", "tok")
	ctx := context.Background()

	assert.ErrorIs(t, c.SetMode(ctx, "thermo", "TURBO"), device.ErrValidation)
	assert.ErrorIs(t, c.SetHeat(ctx, "thermo", 45), device.ErrValidation)
	assert.ErrorIs(t, c.SetRange(ctx, "thermo", 24, 20), device.ErrValidation)
	assert.ErrorIs(t, c.SetCool(ctx, "", 22), device.ErrValidation)

	noToken := NewClient(nil, "http://127.0.0.1:1", "proj-1", "")
	_, err := noToken.ListDevices(ctx)
	assert.ErrorIs(t, err, device.ErrValidation)
}

func TestClient_GenerateRTSPStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":{
			"streamUrls":{"rtspUrl":"rtsps://stream.example/abc?auth=x"},
			"streamExtensionToken":"ext",
			"streamToken":"st",
			"expiresAt":"2026-10-19T10:00:00Z"
		}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "proj-1", "tok")
	stream, err := c.GenerateRTSPStream(context.Background(), "cam")
	require.NoError(t, err)
	assert.Equal(t, "rtsps://stream.example/abc?auth=x", stream.URL)
	assert.Equal(t, "ext", stream.ExtensionToken)
	assert.Equal(t, 2026, stream.ExpiresAt.Year())
}

func TestClient_SetTemperature(t *testing.T) {
	var command string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"name":"enterprises/proj-1/devices/thermo","traits":{"sdm.devices.traits.ThermostatMode":{"mode":"COOL"}}}`)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		command, _ = body["command"].(string)
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "proj-1", "tok")
	require.NoError(t, c.SetTemperature(context.Background(), "thermo", 23))
	assert.Equal(t, CommandSetCool, command)
}
