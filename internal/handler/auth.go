package handler

import (
	"net/http"
	"time"

	"github.com/pressgate/pressgate/internal/server/middleware"
	"github.com/pressgate/pressgate/internal/service"
)

// AuthHandler serves the public authentication endpoints.
type AuthHandler struct {
	authSvc       *service.AuthService
	tokenTTL      time.Duration
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler. tokenTTL is only reported back
// to clients as expires_in; the actual expiry lives inside the token.
func NewAuthHandler(authSvc *service.AuthService, tokenTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, tokenTTL: tokenTTL, secureCookies: secureCookies}
}

// setAuthCookie mirrors the bearer token into an HttpOnly cookie for browser
// clients. maxAge <= 0 clears it.
func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      interface{} `json:"user"`
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresIn int         `json:"expires_in"`
	SessionID string      `json:"sessionId"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

// Register creates a new account with the default user role.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.authSvc.Register(r.Context(), req.Email, req.Password, req.Name, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": u})
}

// Login authenticates credentials and returns a bearer token plus the id of
// the newly created server-side session.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	res, err := h.authSvc.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.setAuthCookie(w, res.Token, int(h.tokenTTL.Seconds()))
	writeJSON(w, http.StatusOK, loginResponse{
		User:      res.User,
		Token:     res.Token,
		TokenType: "bearer",
		ExpiresIn: int(h.tokenTTL.Seconds()),
		SessionID: res.SessionID,
	})
}

// Logout deletes the server-side session. The session id comes from the
// X-Session-ID header or the sessionId body field; logging out a session
// that no longer exists is a 404.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		var req sessionRequest
		if err := readJSON(r, &req); err == nil {
			sessionID = req.SessionID
		}
	}
	if sessionID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Session id is required")
		return
	}

	if err := h.authSvc.Logout(r.Context(), sessionID, requestMeta(r)); err != nil {
		writeError(w, err)
		return
	}
	h.setAuthCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}

// Me returns the authenticated user. Runs behind the Authenticate
// middleware, so the context user is always present and freshly fetched.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetCurrentUser(r.Context())
	if u == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// Refresh exchanges a live session for a fresh bearer token. The session's
// own expiry is not pushed out unless extend_on_refresh is configured.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		var req sessionRequest
		if err := readJSON(r, &req); err == nil {
			sessionID = req.SessionID
		}
	}
	if sessionID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Session id is required")
		return
	}

	token, err := h.authSvc.RefreshSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"token_type": "bearer",
		"expires_in": int(h.tokenTTL.Seconds()),
	})
}
