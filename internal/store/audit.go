package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pressgate/pressgate/internal/model"
)

// InsertAudit appends one entry to audit_log through the audit pool, whose
// credential can only INSERT. The id is not read back: the audit user has no
// SELECT privilege, and nothing downstream needs it.
func (s *DataStore) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
	e.CreatedAt = time.Now().UTC()

	q := s.rebind(`INSERT INTO audit_log (user_id, action, target_type, target_id, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	if _, err := s.audit.ExecContext(ctx, q,
		e.UserID, e.Action, e.TargetType, e.TargetID, e.Details, e.IPAddress, e.UserAgent, e.CreatedAt); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns recent audit entries, newest first, through the read-only
// pool.
func (s *DataStore) ListAudit(ctx context.Context, limit, offset int) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	q := s.rebind("SELECT * FROM audit_log ORDER BY id DESC LIMIT ? OFFSET ?")
	if err := sqlx.SelectContext(ctx, s.read, &entries, q, limit, offset); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
