package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pressgate/pressgate/internal/apperr"
	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/store"
)

// AuthService orchestrates registration, login, logout, and token/session
// validation over the credential store, the password hasher, the session
// store, and the token issuer.
type AuthService struct {
	store           *store.DataStore
	tokens          *TokenIssuer
	audit           *Recorder
	logger          *slog.Logger
	sessionTTL      time.Duration
	bcryptCost      int
	extendOnRefresh bool
}

// AuthOptions tune an AuthService.
type AuthOptions struct {
	SessionTTL      time.Duration
	BcryptCost      int
	ExtendOnRefresh bool
}

// NewAuthService creates an AuthService.
func NewAuthService(st *store.DataStore, tokens *TokenIssuer, audit *Recorder, logger *slog.Logger, opts AuthOptions) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.BcryptCost <= 0 {
		opts.BcryptCost = DefaultBcryptCost
	}
	return &AuthService{
		store:           st,
		tokens:          tokens,
		audit:           audit,
		logger:          logger,
		sessionTTL:      opts.SessionTTL,
		bcryptCost:      opts.BcryptCost,
		extendOnRefresh: opts.ExtendOnRefresh,
	}
}

// LoginResult is what a successful login returns: the user, a signed bearer
// token, and the opaque id of the newly created session row.
type LoginResult struct {
	User      *model.User
	Token     string
	SessionID string
}

// Register creates a new account with the default "user" role. The email
// uniqueness check runs before the insert; the unique constraint on the
// column is the second line of defense against the check/insert race, and
// both paths surface the same conflict error.
func (s *AuthService) Register(ctx context.Context, email, password, name string, meta *RequestMeta) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.New(apperr.KindValidation, "A valid email address is required")
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Registration failed", err)
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(ctx, &u.ID, model.AuditActionRegister, "user", u.ID, nil, meta)
	return u, nil
}

// Login checks credentials and, on success, updates last_login, creates a
// session row, and issues a signed token. Unknown email, wrong password, and
// deactivated account all return the identical ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, meta *RequestMeta) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.store.UpdateLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn("update last login failed", "user_id", u.ID, "error", err)
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Login failed", err)
	}
	sess := &model.Session{
		SessionID: sessionID,
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Login failed", err)
	}

	s.audit.Record(ctx, &u.ID, model.AuditActionLogin, "user", u.ID, nil, meta)
	return &LoginResult{User: u, Token: token, SessionID: sessionID}, nil
}

// Logout deletes the session row. A second logout with the same id returns
// ErrSessionNotFound.
func (s *AuthService) Logout(ctx context.Context, sessionID string, meta *RequestMeta) error {
	sess, err := s.store.GetLiveSession(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup session: %w", err)
	}

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}

	if sess != nil {
		s.audit.Record(ctx, &sess.UserID, model.AuditActionLogout, "session", sess.ID, nil, meta)
	}
	return nil
}

// ValidateSession returns the session for sessionID if it is non-expired and
// its owner is still active.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.store.GetLiveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return sess, nil
}

// ValidateToken verifies a bearer token and re-fetches the user it names.
// The re-fetch is what makes deactivation take effect immediately even
// though the token itself stays signature-valid.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*model.User, *Claims, error) {
	claims, err := s.tokens.Verify(tokenStr)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	u, err := s.store.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive {
		return nil, nil, ErrInvalidToken
	}
	return u, claims, nil
}

// RefreshSession revalidates a session and issues a fresh token for its
// owner. By default the session's own expiry is not extended, so sessions
// have a hard ceiling regardless of refresh; the extend_on_refresh config
// flag changes that.
func (s *AuthService) RefreshSession(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.ValidateSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	u, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if s.extendOnRefresh {
		exp := time.Now().UTC().Add(s.sessionTTL)
		if err := s.store.ExtendSession(ctx, sessionID, exp); err != nil {
			s.logger.Warn("extend session failed", "session_id", sessionID, "error", err)
		}
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "Refresh failed", err)
	}
	return token, nil
}

// GetUser fetches the live user row by id. The admin session guard uses this
// to re-check role and active status immediately before a sensitive mutation.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// newSessionID returns 32 bytes of cryptographic randomness, hex-encoded.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
