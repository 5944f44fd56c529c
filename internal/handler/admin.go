package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pressgate/pressgate/internal/model"
	"github.com/pressgate/pressgate/internal/server/middleware"
	"github.com/pressgate/pressgate/internal/service"
)

// AdminHandler serves the admin user-management and audit endpoints. All of
// its routes run behind Authenticate plus RequireRole(admin); the two
// mutations additionally sit behind the AdminSessionGuard.
type AdminHandler struct {
	adminSvc *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc *service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

type roleRequest struct {
	Role model.Role `json:"role"`
	// SessionID is read by the session guard; clients send it in the same body.
	SessionID string `json:"sessionId"`
}

type statusRequest struct {
	IsActive  *bool  `json:"isActive"`
	SessionID string `json:"sessionId"`
}

// userIDParam parses the {userID} route parameter.
func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	return id, err == nil && id > 0
}

// ListUsers returns a page of users through the read-only pool.
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 50), 1, 200)
	offset := clampInt(queryInt(r, "offset", 0), 0, 1<<30)

	users, err := h.adminSvc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: users,
		Meta: &model.ResponseMeta{
			Count:  len(users),
			Limit:  limit,
			Offset: offset,
		},
	})
}

// GetUser returns a single user.
// GET /api/admin/users/{userID}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	u, err := h.adminSvc.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// SetRole changes a user's role, subject to the admin safety policy.
// PUT /api/admin/users/{userID}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req roleRequest
	if err := readJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Role is required")
		return
	}

	actor := middleware.GetCurrentUser(r.Context())
	u, err := h.adminSvc.SetUserRole(r.Context(), actor, id, req.Role, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// SetStatus activates or deactivates a user, subject to the admin safety
// policy. Deactivation also discards the target's sessions.
// PUT /api/admin/users/{userID}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req statusRequest
	if err := readJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsActive == nil {
		writeErrorMessage(w, http.StatusBadRequest, "isActive is required")
		return
	}

	actor := middleware.GetCurrentUser(r.Context())
	u, err := h.adminSvc.SetUserStatus(r.Context(), actor, id, *req.IsActive, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// ListAudit returns a page of audit entries, newest first, through the
// read-only pool.
// GET /api/admin/audit
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 50), 1, 200)
	offset := clampInt(queryInt(r, "offset", 0), 0, 1<<30)

	entries, err := h.adminSvc.ListAudit(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: entries,
		Meta: &model.ResponseMeta{
			Count:  len(entries),
			Limit:  limit,
			Offset: offset,
		},
	})
}
