package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/staybook/internal/pms"
	"github.com/yourorg/staybook/internal/security/middleware"
)

// PMSHandler serves the caller's derived property-management role
type PMSHandler struct {
	resolver *pms.Resolver
	logger   *slog.Logger
}

// NewPMSHandler creates a new PMS handler
func NewPMSHandler(resolver *pms.Resolver, logger *slog.Logger) *PMSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PMSHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// PMSRoleResponse is the wire shape of a PMS role derivation
type PMSRoleResponse struct {
	Role      string `json:"role"`
	CanAccess bool   `json:"canAccess"`
}

// ServeHTTP handles GET /api/me/pms-role
func (h *PMSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetIdentity(r.Context())
	if resolved == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	role := h.resolver.Role(r.Context(), resolved.User.ID)
	canAccess := h.resolver.CanAccessPMS(r.Context(), resolved)

	writeJSON(w, http.StatusOK, PMSRoleResponse{
		Role:      string(role),
		CanAccess: canAccess,
	})
}
