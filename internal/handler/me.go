package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/security"
	"github.com/yourorg/staybook/internal/security/middleware"
)

// MeHandler serves the caller's resolved identity
type MeHandler struct {
	logger *slog.Logger
}

// NewMeHandler creates a new me handler
func NewMeHandler(logger *slog.Logger) *MeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeHandler{logger: logger}
}

// ProfileView is the wire shape of a profile
type ProfileView struct {
	Bio         string          `json:"bio"`
	Phone       string          `json:"phone"`
	Location    string          `json:"location"`
	Website     string          `json:"website"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
}

// MeResponse is the wire shape of a resolved identity
type MeResponse struct {
	UserID      string       `json:"userId"`
	FirstName   string       `json:"firstName"`
	LastName    string       `json:"lastName"`
	Email       string       `json:"email"`
	Profile     *ProfileView `json:"profile,omitempty"`
	Roles       []string     `json:"roles"`
	RoleDisplay string       `json:"roleDisplay"`
	Permissions []string     `json:"permissions"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	ResolvedAt  time.Time    `json:"resolvedAt"`
}

// ServeHTTP handles GET /api/me
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resolved := middleware.GetIdentity(r.Context())
	if resolved == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, toMeResponse(resolved))
}

func toMeResponse(resolved *domain.Identity) MeResponse {
	roles := make([]string, 0, len(resolved.Roles))
	for _, role := range resolved.Roles {
		roles = append(roles, role.Name)
	}

	perms := resolved.Permissions.Names()
	sort.Strings(perms)

	resp := MeResponse{
		UserID:      resolved.User.ID,
		FirstName:   resolved.User.FirstName,
		LastName:    resolved.User.LastName,
		Email:       resolved.User.Email,
		Roles:       roles,
		RoleDisplay: security.RoleDisplay(resolved),
		Permissions: perms,
		AvatarURL:   resolved.AvatarURL,
		ResolvedAt:  resolved.ResolvedAt,
	}

	if resolved.Profile != nil {
		resp.Profile = &ProfileView{
			Bio:         resolved.Profile.Bio,
			Phone:       resolved.Profile.Phone,
			Location:    resolved.Profile.Location,
			Website:     resolved.Profile.Website,
			Preferences: resolved.Profile.Preferences,
		}
	}

	return resp
}
