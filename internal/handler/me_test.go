package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/security/middleware"
)

func requestWithIdentity(t *testing.T, resolved *domain.Identity) *http.Request {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/me", nil)
	ctx := context.WithValue(req.Context(), middleware.IdentityContextKey{}, resolved)
	return req.WithContext(ctx)
}

func TestMeHandlerAnonymous(t *testing.T) {
	h := NewMeHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", rec.Code)
	}
}

func TestMeHandlerResolvedIdentity(t *testing.T) {
	resolved := &domain.Identity{
		User: domain.User{
			ID:        "u1",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		},
		Roles:       []domain.Role{{Name: "admin", DisplayName: "Administrator"}},
		Permissions: domain.NewPermissionSet([]string{"users.manage", "admin.dashboard.access"}),
		AvatarURL:   "https://cdn.example.com/a.jpg",
		ResolvedAt:  time.Now(),
	}

	h := NewMeHandler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithIdentity(t, resolved))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp MeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UserID != "u1" || resp.Email != "ada@example.com" {
		t.Errorf("unexpected user fields: %+v", resp)
	}
	if resp.RoleDisplay != "Administrator" {
		t.Errorf("expected Administrator display, got %q", resp.RoleDisplay)
	}
	if len(resp.Permissions) != 2 || resp.Permissions[0] != "admin.dashboard.access" {
		t.Errorf("expected sorted permissions, got %v", resp.Permissions)
	}
	if resp.Profile != nil {
		t.Errorf("expected no profile view, got %+v", resp.Profile)
	}
}
