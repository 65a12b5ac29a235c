package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/security/audit"
	"github.com/yourorg/staybook/internal/security/middleware"
)

// AdminHandler serves the admin console's user list. Routing wraps it with
// the users.manage permission gate.
type AdminHandler struct {
	store    domain.IdentityStore
	auditLog *audit.Logger
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store domain.IdentityStore, auditLog *audit.Logger, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		store:    store,
		auditLog: auditLog,
		logger:   logger,
	}
}

// AdminUserView is the wire shape of a user row in the admin console
type AdminUserView struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetIdentity(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	users, err := h.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list users"})
		return
	}

	if resolved != nil {
		h.auditLog.LogAdminAccess(r.Context(), resolved.User.ID, "admin.users")
	}

	views := make([]AdminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, AdminUserView{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			CreatedAt: u.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, views)
}
