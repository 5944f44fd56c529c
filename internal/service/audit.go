package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/store"
)

// RequestMeta carries the client attribution recorded alongside an audit
// entry. Nil meta leaves ip_address and user_agent null.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Recorder writes audit entries through the insert-only audit pool.
//
// Record never returns an error. Audit logging is the one deliberate
// exception to the strict error-propagation policy: a failed audit write is
// logged operationally and swallowed, because it must never fail or roll
// back the operation it is recording.
type Recorder struct {
	store  *store.DataStore
	logger *slog.Logger
}

// NewRecorder creates an audit Recorder.
func NewRecorder(st *store.DataStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record appends one audit entry. actorID may be nil for system actions.
func (r *Recorder) Record(ctx context.Context, actorID *int64, action, targetType string, targetID int64, details map[string]interface{}, meta *RequestMeta) {
	detailsJSON := "{}"
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			r.logger.Error("audit details marshal failed", "action", action, "error", err)
		} else {
			detailsJSON = string(b)
		}
	}

	entry := &model.AuditEntry{
		UserID:     actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    detailsJSON,
	}
	if meta != nil {
		if meta.IPAddress != "" {
			entry.IPAddress = &meta.IPAddress
		}
		if meta.UserAgent != "" {
			entry.UserAgent = &meta.UserAgent
		}
	}

	if err := r.store.InsertAudit(ctx, entry); err != nil {
		r.logger.Error("audit write failed", "action", action, "target_type", targetType, "target_id", targetID, "error", err)
	}
}
