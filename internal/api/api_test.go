package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"eggmanager/internal/app"
	"eggmanager/internal/config"
	"eggmanager/internal/console"
	"eggmanager/internal/control"
	"eggmanager/internal/credentials"
	"eggmanager/internal/domain"
	"eggmanager/internal/status"
	"eggmanager/internal/storage"
	"eggmanager/internal/ws"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	app.PasswordCost = bcrypt.MinCost
}

type fakePanel struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePanel) add(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePanel) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePanel) ListServers(_ context.Context, cred domain.TenantCredential) ([]domain.ServerSummary, error) {
	return []domain.ServerSummary{{ID: "srv-" + cred.OwnerName, Name: "Survival"}}, nil
}

func (p *fakePanel) ServerState(context.Context, domain.TenantCredential, string) domain.ServerState {
	return domain.StateRunning
}

func (p *fakePanel) SetPower(_ context.Context, cred domain.TenantCredential, id string, sig domain.Signal) domain.ActionResult {
	p.add("power " + cred.OwnerName + " " + id + " " + string(sig))
	return domain.Succeeded("Power signal sent.")
}

func (p *fakePanel) SendCommand(_ context.Context, cred domain.TenantCredential, id, cmd string) domain.ActionResult {
	p.add("command " + cred.OwnerName + " " + id + " " + cmd)
	return domain.Failed(&domain.UpstreamError{Status: 409, Detail: "server is offline"})
}

func (p *fakePanel) ListBackups(context.Context, domain.TenantCredential, string) ([]domain.Backup, error) {
	return []domain.Backup{{UUID: "b1", Name: "nightly"}}, nil
}

func (p *fakePanel) CreateBackup(_ context.Context, _ domain.TenantCredential, id, name string) domain.ActionResult {
	p.add("backup " + id + " " + name)
	return domain.Succeeded("Backup started.")
}

func (p *fakePanel) DeleteBackup(_ context.Context, _ domain.TenantCredential, id, uuid string) domain.ActionResult {
	p.add("backup-delete " + id + " " + uuid)
	return domain.Succeeded("Backup deleted.")
}

func (p *fakePanel) ListFiles(_ context.Context, _ domain.TenantCredential, id, dir string) ([]domain.FileEntry, error) {
	p.add("files " + id + " " + dir)
	return []domain.FileEntry{{Name: "server.properties", IsFile: true}}, nil
}

func (p *fakePanel) ReadFile(_ context.Context, _ domain.TenantCredential, id, path string) (string, error) {
	p.add("read " + id + " " + path)
	return "motd=hello", nil
}

func (p *fakePanel) WriteFile(_ context.Context, _ domain.TenantCredential, id, path, content string) domain.ActionResult {
	p.add("write " + id + " " + path + " " + content)
	return domain.Succeeded("File saved.")
}

func (p *fakePanel) ConsoleHandshake(context.Context, domain.TenantCredential, string) (domain.ConsoleHandshake, error) {
	return domain.ConsoleHandshake{}, &domain.UpstreamError{Status: 404, Detail: "server not found"}
}

type testEnv struct {
	api    *Server
	store  *storage.GormStore
	panel  *fakePanel
	server *httptest.Server
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	store, err := storage.NewGormStore(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hashed, err := app.HashPassword("password123")
	require.NoError(t, err)
	_, err = store.SeedAdmin("admin", hashed, "https://panel.example", "admin-key")
	require.NoError(t, err)

	panel := &fakePanel{}
	relay := console.NewRelay(panel, nil, console.Config{HandshakeTimeout: time.Second}, log)
	t.Cleanup(relay.Registry().CloseAll)

	env := &testEnv{
		store: store,
		panel: panel,
		now:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	env.api = &Server{
		Control: control.NewService(credentials.NewResolver(store), panel, status.NewAggregator(panel, 4, log), relay, store, log),
		Store:   store,
		Bridge:  ws.NewBridge(log),
		Config: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenTTL:         time.Hour,
			MaxLoginAttempts: 3,
			BanDuration:      24 * time.Hour,
		},
		log: log,
		now: func() time.Time { return env.now },
	}
	env.server = httptest.NewServer(env.api.Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) addUser(t *testing.T, username, password, panelURL, key string) *domain.User {
	t.Helper()
	hashed, err := app.HashPassword(password)
	require.NoError(t, err)
	u := &domain.User{Username: username, Password: hashed, Role: domain.RoleUser, PanelURL: panelURL, PanelAPIKey: key}
	require.NoError(t, e.store.CreateUser(u))
	return u
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "password123")

	resp := env.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[domain.User](t, resp)
	assert.Equal(t, "admin", me.Username)
	assert.Equal(t, domain.RoleAdmin, me.Role)

	logs, err := env.store.ListActions(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "login", logs[0].Action)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/servers", "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/servers", "garbage", nil).StatusCode)
}

func TestRepeatedFailedLoginsBanTheIP(t *testing.T) {
	env := newTestEnv(t)
	bad := LoginRequest{Username: "admin", Password: "nope"}

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/api/auth/login", "", bad)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", bad)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, decode[domain.ActionResult](t, resp).Message, "banned for 24 hours")

	// even the right password is refused while the ban holds
	resp = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "admin", Password: "password123"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Your IP is banned. Reason: Too many failed login attempts", decode[domain.ActionResult](t, resp).Message)

	env.now = env.now.Add(25 * time.Hour)
	env.login(t, "admin", "password123")
}

func (e *testEnv) loginVia(t *testing.T, forwardedFor string, body LoginRequest) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/auth/login", &buf)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestForwardedForIgnoredByDefault(t *testing.T) {
	env := newTestEnv(t)
	bad := LoginRequest{Username: "admin", Password: "nope"}

	for i := 0; i < 3; i++ {
		env.loginVia(t, fmt.Sprintf("198.51.100.%d", i), bad)
	}

	resp := env.loginVia(t, "198.51.100.77", LoginRequest{Username: "admin", Password: "password123"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	bans, err := env.store.ListBans(context.Background())
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "127.0.0.1", bans[0].IP)
}

func TestForwardedForHonouredBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t)
	env.api.TrustProxy = true
	bad := LoginRequest{Username: "admin", Password: "nope"}

	for i := 0; i < 3; i++ {
		env.loginVia(t, "203.0.113.5, 10.0.0.1", bad)
	}
	assert.Equal(t, http.StatusForbidden, env.loginVia(t, "203.0.113.5", bad).StatusCode)

	resp := env.loginVia(t, "203.0.113.6", LoginRequest{Username: "admin", Password: "password123"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSuccessfulLoginResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	bad := LoginRequest{Username: "admin", Password: "nope"}

	env.do(t, http.MethodPost, "/api/auth/login", "", bad)
	env.do(t, http.MethodPost, "/api/auth/login", "", bad)
	env.login(t, "admin", "password123")

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", bad)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListServersScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "secret1", "https://a.example", "ka")
	alice := env.login(t, "alice", "secret1")
	admin := env.login(t, "admin", "password123")

	servers := decode[[]domain.ServerSummary](t, env.do(t, http.MethodGet, "/api/servers", alice, nil))
	require.Len(t, servers, 1)
	assert.Equal(t, "srv-alice", servers[0].ID)
	assert.Equal(t, domain.StateRunning, servers[0].State)

	servers = decode[[]domain.ServerSummary](t, env.do(t, http.MethodGet, "/api/servers", admin, nil))
	assert.Len(t, servers, 2)

	states := decode[[]domain.ServerStatus](t, env.do(t, http.MethodGet, "/api/servers/status", alice, nil))
	require.Len(t, states, 1)
	assert.Equal(t, domain.StateRunning, states[0].State)
}

func TestPowerAuthorization(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", "secret1", "https://a.example", "ka")
	bob := env.addUser(t, "bob", "secret2", "https://b.example", "kb")
	aliceToken := env.login(t, "alice", "secret1")
	adminToken := env.login(t, "admin", "password123")

	resp := env.do(t, http.MethodPost, "/api/servers/abc/power", aliceToken, PowerRequest{Signal: "start", OwnerID: bob.ID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, decode[domain.ActionResult](t, resp).Success)
	assert.Empty(t, env.panel.Calls())

	resp = env.do(t, http.MethodPost, "/api/servers/abc/power", aliceToken, PowerRequest{Signal: "reboot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/servers/abc/power", aliceToken, PowerRequest{Signal: "start", OwnerID: alice.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[domain.ActionResult](t, resp).Success)

	resp = env.do(t, http.MethodPost, "/api/servers/xyz/power", adminToken, PowerRequest{Signal: "stop", OwnerID: bob.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"power alice abc start", "power bob xyz stop"}, env.panel.Calls())
}

func TestCommandUpstreamFailureIsAResult(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "password123")

	resp := env.do(t, http.MethodPost, "/api/servers/abc/command", token, CommandRequest{Command: "say hi"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[domain.ActionResult](t, resp)
	assert.False(t, res.Success)
	assert.Equal(t, "409: server is offline", res.Message)

	resp = env.do(t, http.MethodPost, "/api/servers/abc/command", token, CommandRequest{Command: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "carol", "secret3", "", "")
	token := env.login(t, "carol", "secret3")

	resp := env.do(t, http.MethodPost, "/api/servers/abc/power", token, PowerRequest{Signal: "start"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.ErrMissingCredentials.Error(), decode[domain.ActionResult](t, resp).Message)
}

func TestBackupsAndFiles(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "password123")

	backups := decode[[]domain.Backup](t, env.do(t, http.MethodGet, "/api/servers/abc/backups", token, nil))
	require.Len(t, backups, 1)
	assert.Equal(t, "nightly", backups[0].Name)

	resp := env.do(t, http.MethodPost, "/api/servers/abc/backups", token, BackupRequest{Name: "before-update"})
	assert.True(t, decode[domain.ActionResult](t, resp).Success)
	resp = env.do(t, http.MethodDelete, "/api/servers/abc/backups/b1", token, nil)
	assert.True(t, decode[domain.ActionResult](t, resp).Success)

	files := decode[[]domain.FileEntry](t, env.do(t, http.MethodGet, "/api/servers/abc/files?dir=config/../plugins", token, nil))
	require.Len(t, files, 1)

	resp = env.do(t, http.MethodGet, "/api/servers/abc/files/contents?file=server.properties", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Equal(t, "motd=hello", body.String())

	resp = env.do(t, http.MethodPut, "/api/servers/abc/files/contents?file=server.properties", token, "motd=bye")
	assert.True(t, decode[domain.ActionResult](t, resp).Success)

	resp = env.do(t, http.MethodGet, "/api/servers/abc/files/contents", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, []string{
		"backup abc before-update",
		"backup-delete abc b1",
		"files abc /plugins",
		"read abc /server.properties",
		"write abc /server.properties motd=bye",
	}, env.panel.Calls())
}

func TestProfileAndPassword(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "alice", "secret1", "", "")
	token := env.login(t, "alice", "secret1")

	resp := env.do(t, http.MethodPut, "/api/profile", token, ProfileRequest{PanelURL: "https://a.example/", PanelAPIKey: " ka "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := env.store.GetUserByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", stored.PanelURL)
	assert.Equal(t, "ka", stored.PanelAPIKey)

	cases := []struct {
		req  PasswordRequest
		code int
	}{
		{PasswordRequest{CurrentPassword: "wrong", NewPassword: "abcdef", ConfirmPassword: "abcdef"}, http.StatusBadRequest},
		{PasswordRequest{CurrentPassword: "secret1", NewPassword: "abcdef", ConfirmPassword: "abcdeg"}, http.StatusBadRequest},
		{PasswordRequest{CurrentPassword: "secret1", NewPassword: "abc", ConfirmPassword: "abc"}, http.StatusBadRequest},
		{PasswordRequest{CurrentPassword: "secret1", NewPassword: "abcdef", ConfirmPassword: "abcdef"}, http.StatusOK},
	}
	for _, tc := range cases {
		resp := env.do(t, http.MethodPut, "/api/profile/password", token, tc.req)
		assert.Equal(t, tc.code, resp.StatusCode, "%+v", tc.req)
	}
	env.login(t, "alice", "abcdef")
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", "password123")

	resp := env.do(t, http.MethodPost, "/api/admin/users", admin, CreateUserRequest{Username: "dave", Password: "secret4"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dave := decode[domain.User](t, resp)
	assert.Equal(t, domain.RoleUser, dave.Role)

	resp = env.do(t, http.MethodPost, "/api/admin/users", admin, CreateUserRequest{Username: "dave", Password: "secret4"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/admin/users", admin, CreateUserRequest{Username: "eve", Password: "secret5", Role: "root"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	daveToken := env.login(t, "dave", "secret4")
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/users", daveToken, nil).StatusCode)

	users := decode[[]domain.User](t, env.do(t, http.MethodGet, "/api/admin/users", admin, nil))
	assert.Len(t, users, 2)

	me := decode[domain.User](t, env.do(t, http.MethodGet, "/api/me", admin, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/admin/users/"+me.ID, admin, nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/users/"+dave.ID, admin, nil).StatusCode)

	logs := decode[[]domain.ActionLog](t, env.do(t, http.MethodGet, "/api/admin/logs", admin, nil))
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, "user_create")
	assert.Contains(t, actions, "user_delete")
}

func TestTokenOfDeletedUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	dave := env.addUser(t, "dave", "secret4", "https://d.example", "kd")
	daveToken := env.login(t, "dave", "secret4")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/me", daveToken, nil).StatusCode)

	admin := env.login(t, "admin", "password123")
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/users/"+dave.ID, admin, nil).StatusCode)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me", daveToken, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/servers", daveToken, nil).StatusCode)
}

func TestRoleIsReadFromStoreNotToken(t *testing.T) {
	env := newTestEnv(t)
	dave := env.addUser(t, "dave", "secret4", "https://d.example", "kd")

	// a correctly signed token that claims admin for a plain user
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  dave.ID,
		"username": "dave",
		"role":     domain.RoleAdmin,
		"exp":      env.now.Add(time.Hour).Unix(),
	})
	token, err := forged.SignedString([]byte(env.api.Config.JWTSecret))
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/users", token, nil).StatusCode)
	me := decode[domain.User](t, env.do(t, http.MethodGet, "/api/me", token, nil))
	assert.Equal(t, domain.RoleUser, me.Role)
}

func TestAdminBans(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", "password123")

	resp := env.do(t, http.MethodPost, "/api/admin/bans", admin, BanRequest{IP: "203.0.113.9", Reason: "abuse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ban := decode[domain.Ban](t, resp)
	assert.Nil(t, ban.ExpiresAt)

	bans := decode[[]domain.Ban](t, env.do(t, http.MethodGet, "/api/admin/bans", admin, nil))
	require.Len(t, bans, 1)
	assert.Equal(t, "abuse", bans[0].Reason)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/admin/bans/x", admin, nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/bans/"+jsonNumber(ban.ID), admin, nil).StatusCode)

	bans = decode[[]domain.Ban](t, env.do(t, http.MethodGet, "/api/admin/bans", admin, nil))
	assert.Empty(t, bans)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestConsoleRefusedBeforeUpgrade(t *testing.T) {
	env := newTestEnv(t)
	bob := env.addUser(t, "bob", "secret2", "https://b.example", "kb")
	env.addUser(t, "alice", "secret1", "https://a.example", "ka")
	alice := env.login(t, "alice", "secret1")

	resp := env.do(t, http.MethodGet, "/ws/servers/abc/console?owner="+bob.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConsoleRelaysHandshakeFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "password123")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/servers/abc/console?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var closed console.Event
	for {
		var ev console.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == console.EventTypeClosed {
			closed = ev
			break
		}
	}
	assert.Equal(t, console.ReasonHandshakeRejected, closed.Reason)
	assert.Contains(t, closed.Message, "404: server not found")

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseGoingAway, ce.Code)
}
