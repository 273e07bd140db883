package ring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urmzd/devicehub/pkg/device"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.Client(), WithURLs(srv.URL+"/oauth/token", srv.URL+"/clients_api", srv.URL+"/devices/v1"))
}

func TestClient_Login(t *testing.T) {
	t.Run("exchanges credentials and authorises later calls", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/oauth/token":
				assert.Equal(t, "true", r.Header.Get("2fa-support"))
				assert.Equal(t, "123456", r.Header.Get("2fa-code"))
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "password", body["grant_type"])
				assert.Equal(t, "ring_official_android", body["client_id"])
				assert.Equal(t, "client", body["scope"])
				_, _ = io.WriteString(w, `{"access_token":"a1","refresh_token":"r1","expires_in":3600,"token_type":"Bearer"}`)
			case "/clients_api/ring_devices":
				assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, `{"doorbots":[{"id":42,"description":"Front Door","kind":"doorbell_v4"}],"stickup_cams":[{"id":7,"description":"Garage","kind":"stickup_cam_v4"}],"chimes":[],"authorized_doorbots":[]}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		c := newTestClient(srv)
		tok, err := c.Login(context.Background(), "me@example.com", "secret", "123456")
		require.NoError(t, err)
		assert.Equal(t, "a1", tok.AccessToken)
		assert.False(t, tok.ExpiresAt.IsZero())

		devices, err := c.Devices(context.Background())
		require.NoError(t, err)
		all := devices.All()
		require.Len(t, all, 2)
		assert.Equal(t, "Front Door", all[0].Description)
	})

	t.Run("signals a missing two-factor code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = io.WriteString(w, `{"next_time_in_secs":60,"phone":"+xxxx1234"}`)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).Login(context.Background(), "me@example.com", "secret", "")
		assert.ErrorIs(t, err, ErrTwoFactorRequired)
		assert.ErrorIs(t, err, device.ErrVendorAPI)
	})

	t.Run("rejects empty credentials", func(t *testing.T) {
		_, err := NewClient(nil).Login(context.Background(), "", "", "")
		assert.ErrorIs(t, err, device.ErrValidation)
	})
}

func TestClient_RefreshesExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh_token", body["grant_type"])
			assert.Equal(t, "r1", body["refresh_token"])
			_, _ = io.WriteString(w, `{"access_token":"a2","refresh_token":"r2","expires_in":3600}`)
		case "/clients_api/doorbots/42/history":
			assert.Equal(t, "Bearer a2", r.Header.Get("Authorization"))
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `[{"id":1,"kind":"motion","created_at":"2026-10-19T08:00:00Z","answered":false}]`)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.SetToken(&Token{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)})

	events, err := c.History(context.Background(), "42", 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "motion", events[0].Kind)
}

func TestClient_SetSiren(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		calls = append(calls, r.URL.RequestURI())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.SetToken(&Token{AccessToken: "a1"})

	require.NoError(t, c.SetSiren(context.Background(), "42", true, 30))
	require.NoError(t, c.SetSiren(context.Background(), "42", false, 0))
	assert.Equal(t, []string{
		"/clients_api/doorbots/42/siren_on?duration=30",
		"/clients_api/doorbots/42/siren_off",
	}, calls)
}

func TestClient_SetMotionDetection(t *testing.T) {
	var body map[string]map[string]bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/devices/v1/devices/7/settings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.SetToken(&Token{AccessToken: "a1"})

	require.NoError(t, c.SetMotionDetection(context.Background(), "7", false))
	assert.Equal(t, false, body["motion_settings"]["motion_detection_enabled"])
}

func TestClient_RequiresAuthentication(t *testing.T) {
	_, err := NewClient(nil).Devices(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
