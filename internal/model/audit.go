package model

import "time"

// Audit actions recorded for security-sensitive operations.
const (
	AuditActionRegister       = "register"
	AuditActionLogin          = "login"
	AuditActionLogout         = "logout"
	AuditActionChangeRole     = "change_role"
	AuditActionChangeStatus   = "change_status"
	AuditActionReactivateUser = "reactivate_user"
)

// AuditEntry is one append-only row in the audit_log table. The application
// never updates or deletes these rows; the audit database credential can only
// INSERT them.
type AuditEntry struct {
	ID         int64     `json:"id" db:"id"`
	UserID     *int64    `json:"user_id,omitempty" db:"user_id"` // actor, nil for system actions
	Action     string    `json:"action" db:"action"`
	TargetType string    `json:"target_type" db:"target_type"`
	TargetID   int64     `json:"target_id" db:"target_id"`
	Details    string    `json:"details" db:"details"` // JSON blob, opaque to the store
	IPAddress  *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string   `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
