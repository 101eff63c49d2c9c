package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/pitchside/internal/auth"
	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/core"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/storage"
)

const (
	hostToken = "host-secret"
	password  = "kickoff-2026"
)

const testConfig = `
channels:
  default_channel: global
  list:
    global:
      broadcast: true
    staff:
      permission: core.staff
match:
  tick: 1h
`

type testServer struct {
	router  *Router
	manager *core.Manager
	store   *storage.Store
	auth    *auth.Service
}

func newTestServer(t *testing.T, yml string) *testServer {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	cfg.Rosters.File = filepath.Join(dir, "rosters.yml")

	m := core.NewManager(cfg, nil, store, zerolog.Nop())
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)

	svc := auth.NewService("jwt-secret", time.Hour)
	return &testServer{
		router:  NewRouter(m, svc, hostToken, "", zerolog.Nop()),
		manager: m,
		store:   store,
		auth:    svc,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// adminToken creates an admin account, clears its temporary password and
// returns a usable token
func (s *testServer) adminToken(t *testing.T, username string) string {
	t.Helper()
	hash, err := auth.HashPassword("temporary-pass")
	require.NoError(t, err)
	require.NoError(t, s.store.CreateUser(context.Background(), username, hash, true))

	rec := s.do(t, "POST", "/api/auth/login", "", LoginRequest{Username: username, Password: "temporary-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login LoginResponse
	decode(t, rec, &login)
	require.True(t, login.PasswordChangeRequired)

	rec = s.do(t, "POST", "/api/auth/change-password", login.Token, ChangePasswordRequest{
		CurrentPassword: "temporary-pass",
		NewPassword:     password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var changed struct {
		Token string `json:"token"`
	}
	decode(t, rec, &changed)
	return changed.Token
}

func TestHostTokenRequired(t *testing.T) {
	s := newTestServer(t, testConfig)
	body := HostJoinRequest{UUID: "a", Name: "Alice"}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, "POST", "/api/host/join", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "POST", "/api/host/join", "wrong", body).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/host/join", hostToken, body).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/host/leave?token="+hostToken, "", HostPlayerRequest{UUID: "a"}).Code)
}

func TestHostIntake(t *testing.T) {
	s := newTestServer(t, testConfig)

	rec := s.do(t, "POST", "/api/host/join", hostToken, HostJoinRequest{Name: "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var joined map[string]string
	decode(t, rec, &joined)
	id := joined["uuid"]
	assert.Equal(t, offlinePlayerID("alice"), id)
	_, online := s.manager.Host().Player(id)
	assert.True(t, online)

	rec = s.do(t, "POST", "/api/host/chat", hostToken, HostChatRequest{UUID: id, Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	var chatResp HostChatResponse
	decode(t, rec, &chatResp)
	assert.True(t, chatResp.Suppress)
	assert.Equal(t, "global", chatResp.Channel)

	rec = s.do(t, "POST", "/api/host/command", hostToken, HostCommandRequest{UUID: id, Command: "channel", Args: []string{"list"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var cmd map[string][]string
	decode(t, rec, &cmd)
	assert.NotEmpty(t, cmd["reply"])

	rec = s.do(t, "POST", "/api/host/permissions", hostToken, HostPermissionsRequest{UUID: id, Permissions: []string{"core.staff"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.manager.Host().HasPermission(id, "core.staff"))

	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/host/leave", hostToken, HostPlayerRequest{UUID: id}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/host/leave", hostToken, HostPlayerRequest{UUID: id}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/host/chat", hostToken, HostChatRequest{UUID: id, Message: "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/host/command", hostToken, HostCommandRequest{UUID: id}).Code)
}

func TestHostChatChannelsDisabled(t *testing.T) {
	s := newTestServer(t, "channels:\n  enabled: false\n")
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/host/join", hostToken, HostJoinRequest{UUID: "a", Name: "Alice"}).Code)

	rec := s.do(t, "POST", "/api/host/chat", hostToken, HostChatRequest{UUID: "a", Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HostChatResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Suppress)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, testConfig)

	rec := s.do(t, "POST", "/api/auth/login", "", LoginRequest{Username: "ghost", Password: "whatever1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a temporary password only opens the password change
	hash, err := auth.HashPassword("temporary-pass")
	require.NoError(t, err)
	require.NoError(t, s.store.CreateUser(context.Background(), "ref", hash, true))
	rec = s.do(t, "POST", "/api/auth/login", "", LoginRequest{Username: "ref", Password: "temporary-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login LoginResponse
	decode(t, rec, &login)
	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/admin/reload", login.Token, nil).Code)

	token := s.adminToken(t, "admin")
	rec = s.do(t, "GET", "/api/auth/check", token, nil)
	var check map[string]interface{}
	decode(t, rec, &check)
	assert.Equal(t, true, check["authenticated"])
	assert.Equal(t, "admin", check["username"])

	rec = s.do(t, "GET", "/api/auth/check", "", nil)
	decode(t, rec, &check)
	assert.Equal(t, false, check["authenticated"])

	assert.Equal(t, http.StatusUnauthorized, s.do(t, "POST", "/api/admin/reload", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "POST", "/api/admin/reload", token, nil).Code)
}

func TestUserManagement(t *testing.T) {
	s := newTestServer(t, testConfig)
	token := s.adminToken(t, "admin")

	rec := s.do(t, "POST", "/api/users", token, CreateUserRequest{Username: "steward", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, "POST", "/api/users", token, CreateUserRequest{Username: "x", Password: password})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/users", token, CreateUserRequest{Username: "steward", Password: password})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, "POST", "/api/users", token, CreateUserRequest{Username: "steward", Password: password})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, "GET", "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []UserResponse
	decode(t, rec, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, "steward", users[1].Username)

	path := "/api/users/" + jsonInt(users[1].ID) + "/reset-password"
	assert.Equal(t, http.StatusOK, s.do(t, "POST", path, token, ResetPasswordRequest{NewPassword: "another-pass"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/users/999/reset-password", token, ResetPasswordRequest{NewPassword: "another-pass"}).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, "DELETE", "/api/users/admin", token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "DELETE", "/api/users/steward", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", "/api/users/steward", token, nil).Code)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAdminChannels(t *testing.T) {
	s := newTestServer(t, testConfig)
	token := s.adminToken(t, "admin")
	require.NoError(t, s.manager.PlayerJoin(context.Background(), domain.Player{UUID: "b", Name: "Bob", Permissions: []string{"core.staff"}}))
	s.manager.Router().Subscriptions().Subscribe("b", "staff")

	rec := s.do(t, "POST", "/api/admin/channels/staff/toggle", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled map[string]interface{}
	decode(t, rec, &toggled)
	assert.Equal(t, true, toggled["disabled"])
	assert.Equal(t, http.StatusNotFound, s.do(t, "POST", "/api/admin/channels/nope/toggle", token, nil).Code)

	rec = s.do(t, "GET", "/api/admin/channels/staff/subscribers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []domain.Player
	decode(t, rec, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, "Bob", subs[0].Name)

	rec = s.do(t, "GET", "/api/channels", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var channels []domain.ChannelInfo
	decode(t, rec, &channels)
	assert.Len(t, channels, 2)

	rec = s.do(t, "GET", "/api/admin/bridge/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check map[string]interface{}
	decode(t, rec, &check)
	assert.Equal(t, "none", check["driver"])
	assert.Equal(t, false, check["ok"])
}

func TestAdminMatchAndCommand(t *testing.T) {
	s := newTestServer(t, testConfig)
	token := s.adminToken(t, "admin")

	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/admin/match/explode", token, nil).Code)

	rec := s.do(t, "POST", "/api/admin/match/prefix", token, MatchOpRequest{Args: []string{"Cup", "Final"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cup Final", s.manager.Match().Status().Prefix)

	rec = s.do(t, "POST", "/api/admin/match/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Output []string `json:"output"`
	}
	decode(t, rec, &status)
	assert.NotEmpty(t, status.Output)

	rec = s.do(t, "POST", "/api/admin/command", token, CommandRequest{Command: "/result status"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out CommandResponse
	decode(t, rec, &out)
	assert.NotEmpty(t, out.Output)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/admin/command", token, CommandRequest{Command: "  "}).Code)

	rec = s.do(t, "GET", "/api/match", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var match domain.MatchStatus
	decode(t, rec, &match)
	assert.Equal(t, "Cup Final", match.Prefix)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig)

	rec := s.do(t, "GET", "/api/matches", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = s.do(t, "GET", "/api/playtime/top?page=1&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var top map[string]interface{}
	decode(t, rec, &top)
	assert.Equal(t, float64(1), top["page"])

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/playtime/nobody", "", nil).Code)

	rec = s.do(t, "GET", "/api/rosters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rosters map[string]interface{}
	decode(t, rec, &rosters)
	assert.Equal(t, "main", rosters["league"])

	rec = s.do(t, "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["host_connected"])
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, testConfig)

	rec := s.do(t, "GET", "/health", "", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestOfflinePlayerID(t *testing.T) {
	assert.Equal(t, offlinePlayerID("Alice"), offlinePlayerID("alice"))
	assert.NotEqual(t, offlinePlayerID("Alice"), offlinePlayerID("Bob"))
}

func TestChangePasswordRejects(t *testing.T) {
	s := newTestServer(t, testConfig)
	token := s.adminToken(t, "admin")

	rec := s.do(t, "POST", "/api/auth/change-password", token, ChangePasswordRequest{CurrentPassword: "wrong-pass", NewPassword: "brand-new-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, "POST", "/api/auth/change-password", token, ChangePasswordRequest{CurrentPassword: password, NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, "POST", "/api/auth/change-password", "", ChangePasswordRequest{CurrentPassword: password, NewPassword: "brand-new-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a temporary password keeps the admin surface closed
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/users", token, CreateUserRequest{Username: "deputy", Password: "deputy-pass", IsAdmin: true}).Code)
	rec = s.do(t, "POST", "/api/auth/login", "", LoginRequest{Username: "deputy", Password: "deputy-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login LoginResponse
	decode(t, rec, &login)
	assert.True(t, login.PasswordChangeRequired)
	assert.Equal(t, http.StatusForbidden, s.do(t, "GET", "/api/users", login.Token, nil).Code)
}
