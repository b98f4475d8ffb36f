package sdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			_ = json.NewEncoder(w).Encode(LoginResponse{Token: "tok", User: User{Username: "admin"}})
		case "/api/servers":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode([]Server{{ID: "abc", Name: "Survival", State: "running"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "")
	resp, err := c.Login("admin", "password123")
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.User.Username)
	assert.Equal(t, "tok", c.Token())

	servers, err := c.ListServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "running", servers[0].State)
}

func TestErrorMessageFromResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(ActionResult{Message: "unauthorized"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Power("abc", "other", "start")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "error: unauthorized", err.Error())
}

func TestPowerSendsOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/servers/abc/power", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"signal": "restart", "ownerId": "o1"}, body)
		_ = json.NewEncoder(w).Encode(ActionResult{Success: true, Message: "Power signal sent."})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "tok").Power("abc", "o1", "restart")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestConsoleURL(t *testing.T) {
	u, err := NewClient("https://panel.example:3000", "tok").ConsoleURL("abc", "o1")
	require.NoError(t, err)
	assert.Equal(t, "wss://panel.example:3000/ws/servers/abc/console?owner=o1&token=tok", u)

	u, err = NewClient("http://localhost:3000", "").ConsoleURL("abc", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3000/ws/servers/abc/console", u)
}
