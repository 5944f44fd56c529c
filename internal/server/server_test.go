package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/service"
	"github.com/pressgate/pressgate/internal/store"
)

const testPassword = "supersecretpassword"

// testEnv holds the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *store.DataStore
	authSvc *service.AuthService
}

// newTestEnv builds a fully wired Server over an in-memory store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(store.Options{Driver: store.DriverSQLite})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := service.NewRecorder(st, logger)
	tokens := service.NewTokenIssuer("test-secret-for-integration-tests", time.Hour)
	authSvc := service.NewAuthService(st, tokens, recorder, logger, service.AuthOptions{BcryptCost: 4})
	adminSvc := service.NewAdminService(st, recorder, logger)

	cfg := DefaultConfig()
	// High enough that rate limiting never interferes with these tests.
	cfg.LoginRatePerMin = 10000
	srv := New(cfg, st, authSvc, adminSvc, logger)

	return &testEnv{server: srv, store: st, authSvc: authSvc}
}

// seedAdmin registers an account and promotes it to admin directly.
func (e *testEnv) seedAdmin(t *testing.T, email string) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := e.authSvc.Register(ctx, email, testPassword, "Admin", nil)
	if err != nil {
		t.Fatalf("seedAdmin register: %v", err)
	}
	err = e.store.AdminTx(ctx, func(tx *store.AdminTx) error {
		return tx.UpdateUserRole(ctx, u.ID, model.RoleAdmin)
	})
	if err != nil {
		t.Fatalf("seedAdmin promote: %v", err)
	}
	u.Role = model.RoleAdmin
	return u
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return bytes.NewReader(data)
}

// do executes a request against the test server.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// login logs in over HTTP and returns the bearer token and session id.
func (e *testEnv) login(t *testing.T, email string) (token, sessionID string) {
	t.Helper()
	rr := e.do(t, "POST", "/api/auth/login", jsonBody(t, map[string]string{
		"email":    email,
		"password": testPassword,
	}), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login(%s): expected 200, got %d: %s", email, rr.Code, rr.Body.String())
	}
	var resp struct {
		Token     string `json:"token"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token, resp.SessionID
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assertStatus(t, env.do(t, "GET", "/healthz", nil, nil), http.StatusOK)
	assertStatus(t, env.do(t, "GET", "/readyz", nil, nil), http.StatusOK)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/auth/register", jsonBody(t, map[string]string{
		"email":    "flow@example.com",
		"password": testPassword,
		"name":     "Flow",
	}), nil)
	assertStatus(t, rr, http.StatusCreated)

	token, sessionID := env.login(t, "flow@example.com")

	rr = env.do(t, "GET", "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assertStatus(t, rr, http.StatusOK)
	var me struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.User.Email != "flow@example.com" {
		t.Errorf("me: got %q", me.User.Email)
	}

	rr = env.do(t, "POST", "/api/auth/refresh", nil, map[string]string{
		"X-Session-ID": sessionID,
	})
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "POST", "/api/auth/logout", jsonBody(t, map[string]string{
		"sessionId": sessionID,
	}), nil)
	assertStatus(t, rr, http.StatusOK)

	// The session is gone, so refresh now fails.
	rr = env.do(t, "POST", "/api/auth/refresh", nil, map[string]string{
		"X-Session-ID": sessionID,
	})
	assertStatus(t, rr, http.StatusUnauthorized)
}

// Browser clients authenticate with the HttpOnly cookie set at login
// instead of an Authorization header.
func TestMeAcceptsAuthCookie(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/auth/register", jsonBody(t, map[string]string{
		"email":    "cookie@example.com",
		"password": testPassword,
		"name":     "C",
	}), nil)
	assertStatus(t, rr, http.StatusCreated)

	rr = env.do(t, "POST", "/api/auth/login", jsonBody(t, map[string]string{
		"email":    "cookie@example.com",
		"password": testPassword,
	}), nil)
	assertStatus(t, rr, http.StatusOK)

	var authCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "auth_token" {
			authCookie = c
		}
	}
	if authCookie == nil || authCookie.Value == "" {
		t.Fatal("expected auth_token cookie on login response")
	}
	if !authCookie.HttpOnly {
		t.Error("auth cookie must be HttpOnly")
	}

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(authCookie)
	meRR := httptest.NewRecorder()
	env.server.ServeHTTP(meRR, req)
	assertStatus(t, meRR, http.StatusOK)
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.do(t, "GET", "/api/auth/me", nil, nil), http.StatusUnauthorized)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "admin@example.com")

	// Anonymous.
	assertStatus(t, env.do(t, "GET", "/api/admin/users", nil, nil), http.StatusUnauthorized)

	// Regular user.
	rr := env.do(t, "POST", "/api/auth/register", jsonBody(t, map[string]string{
		"email":    "pleb@example.com",
		"password": testPassword,
		"name":     "P",
	}), nil)
	assertStatus(t, rr, http.StatusCreated)
	userToken, _ := env.login(t, "pleb@example.com")
	rr = env.do(t, "GET", "/api/admin/users", nil, map[string]string{
		"Authorization": "Bearer " + userToken,
	})
	assertStatus(t, rr, http.StatusForbidden)

	// Admin.
	adminToken, _ := env.login(t, "admin@example.com")
	rr = env.do(t, "GET", "/api/admin/users", nil, map[string]string{
		"Authorization": "Bearer " + adminToken,
	})
	assertStatus(t, rr, http.StatusOK)
}

// A valid admin bearer token alone must not reach the role mutation; the
// guard demands a live session id as a second factor.
func TestRoleMutationRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "admin@example.com")
	env.seedAdmin(t, "backup@example.com")

	rr := env.do(t, "POST", "/api/auth/register", jsonBody(t, map[string]string{
		"email":    "target@example.com",
		"password": testPassword,
		"name":     "T",
	}), nil)
	assertStatus(t, rr, http.StatusCreated)
	var created struct {
		User model.User `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode register: %v", err)
	}

	token, sessionID := env.login(t, "admin@example.com")
	path := "/api/admin/users/" + strconv.FormatInt(created.User.ID, 10) + "/role"

	// Bearer only: rejected.
	rr = env.do(t, "PUT", path, jsonBody(t, map[string]string{"role": "author"}), map[string]string{
		"Authorization": "Bearer " + token,
	})
	assertStatus(t, rr, http.StatusUnauthorized)

	// Bearer plus session header: accepted.
	rr = env.do(t, "PUT", path, jsonBody(t, map[string]string{"role": "author"}), map[string]string{
		"Authorization": "Bearer " + token,
		"X-Session-ID":  sessionID,
	})
	assertStatus(t, rr, http.StatusOK)

	// The session id may also ride in the body.
	rr = env.do(t, "PUT", path, jsonBody(t, map[string]string{
		"role":      "user",
		"sessionId": sessionID,
	}), map[string]string{
		"Authorization": "Bearer " + token,
	})
	assertStatus(t, rr, http.StatusOK)
}

func TestLastAdminProtectionOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "only@example.com")
	token, sessionID := env.login(t, "only@example.com")

	rr := env.do(t, "PUT", "/api/admin/users/"+strconv.FormatInt(admin.ID, 10)+"/status",
		jsonBody(t, map[string]interface{}{"isActive": false}), map[string]string{
			"Authorization": "Bearer " + token,
			"X-Session-ID":  sessionID,
		})
	assertStatus(t, rr, http.StatusBadRequest)

	var e model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e.Success {
		t.Error("error envelope must carry success=false")
	}
}

