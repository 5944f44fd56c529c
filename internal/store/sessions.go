package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pressgate/pressgate/internal/model"
)

// CreateSession inserts a session row through the application pool. The ID,
// CreatedAt, and UpdatedAt fields on sess are populated after insert.
func (s *DataStore) CreateSession(ctx context.Context, sess *model.Session) error {
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	const q = `INSERT INTO sessions (session_id, user_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	id, err := s.execInsert(ctx, s.app, q,
		sess.SessionID, sess.UserID, sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	sess.ID = id
	return nil
}

// GetLiveSession returns a non-expired session whose owning user is still
// active. The join against users.is_active makes a deactivated user's
// sessions invalid immediately, before they expire. Expiry is compared in Go
// so the check does not depend on how each engine collates DATETIME values.
func (s *DataStore) GetLiveSession(ctx context.Context, sessionID string) (*model.Session, error) {
	q := s.rebind(`SELECT s.id, s.session_id, s.user_id, s.expires_at, s.created_at, s.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_id = ? AND u.is_active = ?`)

	var sess model.Session
	err := sqlx.GetContext(ctx, s.app, &sess, q, sessionID, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get live session: %w", err)
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// DeleteSession removes a session row by its opaque id. Returns ErrNotFound
// when no row matched, which the auth service surfaces as a 404 on logout.
func (s *DataStore) DeleteSession(ctx context.Context, sessionID string) error {
	q := s.rebind("DELETE FROM sessions WHERE session_id = ?")
	result, err := s.app.ExecContext(ctx, q, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(result)
}

// DeleteSessionsForUser removes every session owned by a user (multi-device
// logout, used when an account is deactivated).
func (s *DataStore) DeleteSessionsForUser(ctx context.Context, userID int64) (int64, error) {
	q := s.rebind("DELETE FROM sessions WHERE user_id = ?")
	result, err := s.app.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions for user: %w", err)
	}
	return result.RowsAffected()
}

// ExtendSession pushes a session's expiry forward. Only called when the
// refresh path is configured to extend sessions.
func (s *DataStore) ExtendSession(ctx context.Context, sessionID string, expiresAt time.Time) error {
	q := s.rebind("UPDATE sessions SET expires_at = ?, updated_at = ? WHERE session_id = ?")
	result, err := s.app.ExecContext(ctx, q, expiresAt, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return requireRow(result)
}

// SweepExpiredSessions deletes sessions past their expiry and returns the
// number of rows removed.
func (s *DataStore) SweepExpiredSessions(ctx context.Context) (int64, error) {
	q := s.rebind("DELETE FROM sessions WHERE expires_at <= ?")
	result, err := s.app.ExecContext(ctx, q, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return result.RowsAffected()
}
