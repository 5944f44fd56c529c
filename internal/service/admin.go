package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/store"
)

// AdminService applies role and active-status mutations behind the admin
// safety policy. Both mutations run inside a single transaction on the
// admin-privileged pool: the target row and the active-admin set are locked
// together, so two concurrent demotions of "the last two admins" cannot both
// pass the policy check.
type AdminService struct {
	store  *store.DataStore
	audit  *Recorder
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(st *store.DataStore, audit *Recorder, logger *slog.Logger) *AdminService {
	return &AdminService{store: st, audit: audit, logger: logger}
}

// GetUser returns a single user.
func (a *AdminService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns users through the read-only pool.
func (a *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	return a.store.ListUsers(ctx, limit, offset)
}

// ListAudit returns recent audit entries through the read-only pool.
func (a *AdminService) ListAudit(ctx context.Context, limit, offset int) ([]model.AuditEntry, error) {
	return a.store.ListAudit(ctx, limit, offset)
}

// SetUserRole changes a user's role after the safety policy allows it.
func (a *AdminService) SetUserRole(ctx context.Context, actor *model.User, targetID int64, newRole model.Role, meta *RequestMeta) (*model.User, error) {
	if !model.ValidRole(newRole) {
		return nil, ErrInvalidRole
	}

	var target *model.User
	err := a.store.AdminTx(ctx, func(tx *store.AdminTx) error {
		var err error
		target, err = tx.GetUserForUpdate(ctx, targetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		activeAdmins, err := tx.CountActiveAdmins(ctx)
		if err != nil {
			return err
		}
		if err := CheckRoleChange(target, newRole, activeAdmins); err != nil {
			return err
		}
		return tx.UpdateUserRole(ctx, targetID, newRole)
	})
	if err != nil {
		return nil, err
	}

	oldRole := target.Role
	target.Role = newRole

	a.audit.Record(ctx, &actor.ID, model.AuditActionChangeRole, "user", targetID, map[string]interface{}{
		"old_role": oldRole,
		"new_role": newRole,
	}, meta)

	return target, nil
}

// SetUserStatus changes a user's is_active flag after the safety policy
// allows it. Deactivation also discards the user's sessions; reactivation is
// recorded as its own audit action on top of the status change.
func (a *AdminService) SetUserStatus(ctx context.Context, actor *model.User, targetID int64, active bool, meta *RequestMeta) (*model.User, error) {
	var target *model.User
	err := a.store.AdminTx(ctx, func(tx *store.AdminTx) error {
		var err error
		target, err = tx.GetUserForUpdate(ctx, targetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		activeAdmins, err := tx.CountActiveAdmins(ctx)
		if err != nil {
			return err
		}
		if err := CheckStatusChange(target, active, activeAdmins); err != nil {
			return err
		}
		return tx.UpdateUserStatus(ctx, targetID, active)
	})
	if err != nil {
		return nil, err
	}

	wasActive := target.IsActive
	target.IsActive = active

	a.audit.Record(ctx, &actor.ID, model.AuditActionChangeStatus, "user", targetID, map[string]interface{}{
		"old_is_active": wasActive,
		"new_is_active": active,
	}, meta)

	if !active && wasActive {
		if n, err := a.store.DeleteSessionsForUser(ctx, targetID); err != nil {
			a.logger.Warn("discard sessions for deactivated user failed", "user_id", targetID, "error", err)
		} else if n > 0 {
			a.logger.Info("discarded sessions for deactivated user", "user_id", targetID, "sessions", n)
		}
	}

	if active && !wasActive {
		a.audit.Record(ctx, &actor.ID, model.AuditActionReactivateUser, "user", targetID, nil, meta)
	}

	return target, nil
}
