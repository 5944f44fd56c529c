package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pressgate/pressgate/internal/model"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()
	s, err := Open(Options{Driver: DriverSQLite})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func mustCreateUser(t *testing.T, s *DataStore, email string, role model.Role, active bool) *model.User {
	t.Helper()
	u := &model.User{
		Email:        email,
		PasswordHash: "$2a$12$notarealhashnotarealhashnotarealhash",
		Name:         "Test User",
		Role:         role,
		IsActive:     active,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func TestSharedPoolsForEmptyDSNs(t *testing.T) {
	s := newTestStore(t)
	if len(s.uniquePools()) != 1 {
		t.Errorf("expected all four pools to share one handle, got %d", len(s.uniquePools()))
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "writer@example.com", model.RoleAuthor, true)
	if u.ID == 0 {
		t.Fatal("expected ID to be populated after insert")
	}

	got, err := s.GetUserByEmail(ctx, "writer@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Role != model.RoleAuthor || !got.IsActive {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.LastLoginAt != nil {
		t.Error("expected nil last_login_at for new user")
	}

	if err := s.UpdateLastLogin(ctx, u.ID); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	got, err = s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Error("expected last_login_at to be set")
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetUserByID(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateEmailIsUniqueViolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "dup@example.com", model.RoleUser, true)

	u := &model.User{Email: "dup@example.com", PasswordHash: "h", Role: model.RoleUser, IsActive: true}
	err := s.CreateUser(ctx, u)
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "s@example.com", model.RoleUser, true)
	sess := &model.Session{
		SessionID: "abc123",
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetLiveSession(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetLiveSession: %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID: got %d, want %d", got.UserID, u.ID)
	}

	if err := s.DeleteSession(ctx, "abc123"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := s.DeleteSession(ctx, "abc123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestExpiredSessionIsNotLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "old@example.com", model.RoleUser, true)
	sess := &model.Session{
		SessionID: "expired",
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := s.GetLiveSession(ctx, "expired"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
}

func TestDeactivatedUserSessionIsNotLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "gone@example.com", model.RoleUser, true)
	sess := &model.Session{
		SessionID: "livetoken",
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	err := s.AdminTx(ctx, func(tx *AdminTx) error {
		return tx.UpdateUserStatus(ctx, u.ID, false)
	})
	if err != nil {
		t.Fatalf("AdminTx: %v", err)
	}

	if _, err := s.GetLiveSession(ctx, "livetoken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deactivated user's session, got %v", err)
	}
}

func TestCountActiveAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "a1@example.com", model.RoleAdmin, true)
	mustCreateUser(t, s, "a2@example.com", model.RoleAdmin, false)
	mustCreateUser(t, s, "u1@example.com", model.RoleUser, true)

	var count int
	err := s.AdminTx(ctx, func(tx *AdminTx) error {
		var err error
		count, err = tx.CountActiveAdmins(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("AdminTx: %v", err)
	}
	if count != 1 {
		t.Errorf("active admins: got %d, want 1", count)
	}
}

func TestAdminTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "rb@example.com", model.RoleUser, true)

	boom := errors.New("boom")
	err := s.AdminTx(ctx, func(tx *AdminTx) error {
		if err := tx.UpdateUserRole(ctx, u.ID, model.RoleAdmin); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Role != model.RoleUser {
		t.Errorf("expected role change to roll back, got %s", got.Role)
	}
}

func TestAuditInsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	actor := mustCreateUser(t, s, "actor@example.com", model.RoleAdmin, true)
	ip := "10.0.0.1"
	e := &model.AuditEntry{
		UserID:     &actor.ID,
		Action:     model.AuditActionChangeRole,
		TargetType: "user",
		TargetID:   42,
		Details:    `{"old_role":"user","new_role":"author"}`,
		IPAddress:  &ip,
	}
	if err := s.InsertAudit(ctx, e); err != nil {
		t.Fatalf("InsertAudit: %v", err)
	}

	entries, err := s.ListAudit(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Action != model.AuditActionChangeRole || got.TargetID != 42 {
		t.Errorf("entry mismatch: %+v", got)
	}
	if got.UserID == nil || *got.UserID != actor.ID {
		t.Errorf("actor mismatch: %+v", got.UserID)
	}
	if got.UserAgent != nil {
		t.Error("expected nil user agent")
	}
}

func TestSweepExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "sweep@example.com", model.RoleUser, true)
	for i, exp := range []time.Time{
		time.Now().UTC().Add(-time.Hour),
		time.Now().UTC().Add(time.Hour),
	} {
		sess := &model.Session{SessionID: string(rune('a' + i)), UserID: u.ID, ExpiresAt: exp}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	n, err := s.SweepExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("swept: got %d, want 1", n)
	}
}
