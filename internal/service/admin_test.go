package service

import (
	"context"
	"errors"
	"testing"

	"github.com/pressgate/pressgate/internal/apperr"
	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/store"
)

func newTestAdmin(t *testing.T) (*AdminService, *AuthService, *store.DataStore) {
	t.Helper()
	auth, st := newTestAuth(t)
	admin := NewAdminService(st, NewRecorder(st, testLogger()), testLogger())
	return admin, auth, st
}

// promote bypasses the service to set up fixtures directly.
func promote(t *testing.T, st *store.DataStore, id int64, role model.Role) {
	t.Helper()
	err := st.AdminTx(context.Background(), func(tx *store.AdminTx) error {
		return tx.UpdateUserRole(context.Background(), id, role)
	})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
}

func TestSetUserRolePromotion(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	ctx := context.Background()

	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)
	target := registerActive(t, auth, "writer@x.com")

	updated, err := admin.SetUserRole(ctx, actor, target.ID, model.RoleAuthor, nil)
	if err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if updated.Role != model.RoleAuthor {
		t.Errorf("returned role: got %s", updated.Role)
	}

	got, err := st.GetUserByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Role != model.RoleAuthor {
		t.Errorf("persisted role: got %s", got.Role)
	}

	entries, err := st.ListAudit(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	var found bool
	for _, e := range entries {
		if e.Action == model.AuditActionChangeRole && e.TargetID == target.ID {
			found = true
			if e.UserID == nil || *e.UserID != actor.ID {
				t.Errorf("audit actor mismatch: %+v", e.UserID)
			}
		}
	}
	if !found {
		t.Error("expected a change_role audit entry")
	}
}

func TestSetUserRoleInvalidRole(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)

	_, err := admin.SetUserRole(context.Background(), actor, actor.ID, model.Role("superuser"), nil)
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestSetUserRoleUnknownTarget(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)

	_, err := admin.SetUserRole(context.Background(), actor, 9999, model.RoleAuthor, nil)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLastAdminCannotBeDemoted(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	ctx := context.Background()

	only := registerActive(t, auth, "only@x.com")
	promote(t, st, only.ID, model.RoleAdmin)
	only.Role = model.RoleAdmin

	_, err := admin.SetUserRole(ctx, only, only.ID, model.RoleUser, nil)
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if apperr.Status(err) != 400 {
		t.Errorf("policy violation maps to 400, got %d", apperr.Status(err))
	}

	// The rejected mutation must leave no partial effect.
	got, err := st.GetUserByID(ctx, only.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("role changed despite rejection: %s", got.Role)
	}
}

func TestLastAdminCannotBeDeactivated(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	ctx := context.Background()

	only := registerActive(t, auth, "only@x.com")
	promote(t, st, only.ID, model.RoleAdmin)
	only.Role = model.RoleAdmin

	_, err := admin.SetUserStatus(ctx, only, only.ID, false, nil)
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}

	// With a second active admin the same call succeeds.
	second := registerActive(t, auth, "second@x.com")
	promote(t, st, second.ID, model.RoleAdmin)

	updated, err := admin.SetUserStatus(ctx, only, only.ID, false, nil)
	if err != nil {
		t.Fatalf("SetUserStatus after adding second admin: %v", err)
	}
	if updated.IsActive {
		t.Error("expected target to be deactivated")
	}
}

func TestDeactivationDiscardsSessions(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	ctx := context.Background()

	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)
	actor.Role = model.RoleAdmin

	target := registerActive(t, auth, "victim@x.com")
	res, err := auth.Login(ctx, "victim@x.com", "Passw0rd!", nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := admin.SetUserStatus(ctx, actor, target.ID, false, nil); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}

	if _, err := st.GetLiveSession(ctx, res.SessionID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected session to be discarded, got %v", err)
	}
}

func TestCannotPromoteInactiveUser(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	ctx := context.Background()

	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)
	actor.Role = model.RoleAdmin

	target := registerActive(t, auth, "dormant@x.com")
	if _, err := admin.SetUserStatus(ctx, actor, target.ID, false, nil); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}

	_, err := admin.SetUserRole(ctx, actor, target.ID, model.RoleAdmin, nil)
	if !errors.Is(err, ErrPromoteInactive) {
		t.Errorf("expected ErrPromoteInactive, got %v", err)
	}
}

func TestReactivationEmitsDistinctAuditAction(t *testing.T) {
	admin, auth, st := newTestAdmin(t)
	ctx := context.Background()

	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)
	actor.Role = model.RoleAdmin

	target := registerActive(t, auth, "comeback@x.com")
	if _, err := admin.SetUserStatus(ctx, actor, target.ID, false, nil); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := admin.SetUserStatus(ctx, actor, target.ID, true, nil); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	entries, err := st.ListAudit(ctx, 20, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	var statusChanges, reactivations int
	for _, e := range entries {
		if e.TargetID != target.ID {
			continue
		}
		switch e.Action {
		case model.AuditActionChangeStatus:
			statusChanges++
		case model.AuditActionReactivateUser:
			reactivations++
		}
	}
	if statusChanges != 2 {
		t.Errorf("expected 2 change_status entries, got %d", statusChanges)
	}
	if reactivations != 1 {
		t.Errorf("expected 1 reactivate_user entry, got %d", reactivations)
	}
}

// Audit writes must never fail the operation they record. The recorder here
// points at a store with no audit_log table, so every insert fails; the role
// change must still succeed.
func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	_, auth, st := newTestAdmin(t)
	ctx := context.Background()

	brokenAuditDB, err := store.Open(store.Options{Driver: store.DriverSQLite})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { brokenAuditDB.Close() })
	// No Migrate: audit_log does not exist in this database.

	admin := NewAdminService(st, NewRecorder(brokenAuditDB, testLogger()), testLogger())

	actor := registerActive(t, auth, "boss@x.com")
	promote(t, st, actor.ID, model.RoleAdmin)
	actor.Role = model.RoleAdmin
	target := registerActive(t, auth, "writer@x.com")

	updated, err := admin.SetUserRole(ctx, actor, target.ID, model.RoleAuthor, nil)
	if err != nil {
		t.Fatalf("SetUserRole with broken audit store: %v", err)
	}
	if updated.Role != model.RoleAuthor {
		t.Errorf("returned role: got %s", updated.Role)
	}

	got, err := st.GetUserByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Role != model.RoleAuthor {
		t.Errorf("persisted role: got %s", got.Role)
	}
}

func TestListUsersAndAudit(t *testing.T) {
	admin, auth, _ := newTestAdmin(t)
	ctx := context.Background()

	registerActive(t, auth, "one@x.com")
	registerActive(t, auth, "two@x.com")

	users, err := admin.ListUsers(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	// Registration is audited, so the log should already have entries.
	entries, err := admin.ListAudit(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 audit entries, got %d", len(entries))
	}
}
