package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/service"
)

// maxGuardBodySize bounds how much of the body the guard will buffer while
// looking for a session id.
const maxGuardBodySize = 1 << 20

// AdminSessionGuard protects destructive admin mutations with a second
// factor beyond the bearer token: a live server-side session that belongs to
// the same admin. The checks run in a fixed order so a probing client learns
// as little as possible from the status code:
//
//  1. an authenticated user must be on the context (401)
//  2. that user must hold the admin role (403)
//  3. a session id must arrive via X-Session-ID or the sessionId body field (401)
//  4. the session must exist, be unexpired, and belong to an active user (401)
//  5. the session owner must be the authenticated user (401)
//  6. the user row is re-fetched; missing or deactivated fails (401)
//  7. the fresh row must still hold the admin role (403)
//
// Steps 6 and 7 close the window between token validation and the mutation:
// an admin demoted or deactivated mid-request is turned away even though its
// token and session both checked out moments earlier.
func AdminSessionGuard(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := GetCurrentUser(r.Context())
			if u == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if u.Role != model.RoleAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}

			sessionID, err := guardSessionID(r)
			if err != nil {
				writeAuthError(w, http.StatusBadRequest, "Malformed request body")
				return
			}
			if sessionID == "" {
				writeAuthError(w, http.StatusUnauthorized, "Active session required")
				return
			}

			sess, err := authSvc.ValidateSession(r.Context(), sessionID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired session")
				return
			}
			if sess.UserID != u.ID {
				writeAuthError(w, http.StatusUnauthorized, "Session does not belong to the authenticated user")
				return
			}

			fresh, err := authSvc.GetUser(r.Context(), u.ID)
			if err != nil || !fresh.IsActive {
				writeAuthError(w, http.StatusUnauthorized, "Account is no longer active")
				return
			}
			if fresh.Role != model.RoleAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// guardSessionID pulls the session id from the X-Session-ID header, falling
// back to a sessionId field in a JSON body. The body is buffered and
// restored so the handler downstream can still decode it.
func guardSessionID(r *http.Request) (string, error) {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id, nil
	}
	if r.Body == nil {
		return "", nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxGuardBodySize))
	r.Body.Close()
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	return body.SessionID, nil
}
