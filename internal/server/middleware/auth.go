package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/service"
)

type contextKeyAuth string

// CurrentUserKey is the context key for the authenticated user.
const CurrentUserKey contextKeyAuth = "current_user"

// AuthCookieName is the cookie that carries the bearer token for browser
// clients that cannot set an Authorization header.
const AuthCookieName = "auth_token"

// Authenticate validates the request's bearer token, taken from the
// Authorization header or the auth cookie. Token validation re-fetches the
// user row, so a deactivated account is rejected here even while its token
// is still signature-valid. On success the fresh user is attached to the
// request context; on failure a 401 JSON error is returned.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			u, _, err := authSvc.ValidateToken(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), CurrentUserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user to the context when a valid bearer token is
// present, and passes the request through anonymously otherwise. Used on
// endpoints that render differently for signed-in readers.
func OptionalAuth(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := requestToken(r); token != "" {
				if u, _, err := authSvc.ValidateToken(r.Context(), token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), CurrentUserKey, u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole enforces that the authenticated user holds one of the given
// roles. Must run after Authenticate.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := GetCurrentUser(r.Context())
			if u == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// GetCurrentUser extracts the authenticated user from the context. Returns
// nil for anonymous requests.
func GetCurrentUser(ctx context.Context) *model.User {
	if u, ok := ctx.Value(CurrentUserKey).(*model.User); ok {
		return u
	}
	return nil
}

// requestToken pulls the bearer token from the Authorization header, falling
// back to the auth cookie.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

// writeAuthError emits the standard error envelope. The handler package has
// a richer version; this one exists to avoid an import cycle.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Success: false, Message: message})
}
