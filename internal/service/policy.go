package service

import "github.com/pressgate/pressgate/internal/model"

// The admin safety policy is pure decision logic: given the target user, the
// proposed change, and a fresh count of active admins, it either allows the
// mutation or names the invariant it would break. Callers must take the
// count inside the same transaction that applies the change.

// CheckRoleChange decides whether target may be moved to newRole.
// Demoting the last active admin is rejected, as is promoting a deactivated
// account (activation is a separate, separately audited step).
func CheckRoleChange(target *model.User, newRole model.Role, activeAdmins int) error {
	if target.Role == model.RoleAdmin && newRole != model.RoleAdmin {
		if target.IsActive && activeAdmins <= 1 {
			return ErrLastAdmin
		}
	}
	if newRole == model.RoleAdmin && !target.IsActive {
		return ErrPromoteInactive
	}
	return nil
}

// CheckStatusChange decides whether target's is_active flag may be set to
// newActive. Deactivating the last active admin is rejected.
func CheckStatusChange(target *model.User, newActive bool, activeAdmins int) error {
	if target.Role == model.RoleAdmin && target.IsActive && !newActive {
		if activeAdmins <= 1 {
			return ErrLastAdmin
		}
	}
	return nil
}
