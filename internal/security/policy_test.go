package security

import (
	"testing"

	"github.com/yourorg/staybook/internal/domain"
)

func identityWith(userID string, roleNames []string, perms []string) *domain.Identity {
	roles := make([]domain.Role, 0, len(roleNames))
	for _, n := range roleNames {
		roles = append(roles, domain.Role{Name: n, DisplayName: "Display " + n})
	}
	return &domain.Identity{
		User:        domain.User{ID: userID},
		Roles:       roles,
		Permissions: domain.NewPermissionSet(perms),
	}
}

func TestNilIdentityIsAlwaysDenied(t *testing.T) {
	checks := map[string]bool{
		"HasPermission":           HasPermission(nil, PermListingsView),
		"HasAnyPermission":        HasAnyPermission(nil, PermListingsView, PermManageUsers),
		"HasAllPermissions":       HasAllPermissions(nil, PermListingsView),
		"HasRole":                 HasRole(nil, RoleAdmin),
		"HasAnyRole":              HasAnyRole(nil, RoleAdmin, RoleModerator),
		"IsAdmin":                 IsAdmin(nil),
		"IsOwner":                 IsOwner(nil, "u1"),
		"CanEditListing":          CanEditListing(nil, "u1"),
		"CanDeleteListing":        CanDeleteListing(nil, "u1"),
		"CanEditUserProfile":      CanEditUserProfile(nil, "u1"),
		"CanAccessAdminDashboard": CanAccessAdminDashboard(nil),
		"CanManageUsers":          CanManageUsers(nil),
		"CanManageRoles":          CanManageRoles(nil),
	}

	for name, got := range checks {
		if got {
			t.Errorf("%s(nil) = true, want false", name)
		}
	}

	if got := RoleDisplay(nil); got != DefaultRoleDisplay {
		t.Errorf("RoleDisplay(nil) = %q, want %q", got, DefaultRoleDisplay)
	}
}

func TestHasPermissionExactMatch(t *testing.T) {
	caller := identityWith("u1", nil, []string{PermListingsEditOwn})

	if !HasPermission(caller, PermListingsEditOwn) {
		t.Error("expected exact permission to match")
	}
	if HasPermission(caller, PermListingsEditAny) {
		t.Error("own-scope permission must not imply any-scope")
	}
	if HasPermission(caller, "listings.edit") {
		t.Error("permission names never match by prefix")
	}
}

func TestHasAllAndAnyPermissions(t *testing.T) {
	caller := identityWith("u1", nil, []string{PermListingsView, PermProfileEditOwn})

	if !HasAllPermissions(caller, PermListingsView, PermProfileEditOwn) {
		t.Error("expected all held permissions to pass")
	}
	if HasAllPermissions(caller, PermListingsView, PermManageUsers) {
		t.Error("one missing permission fails HasAllPermissions")
	}
	if !HasAnyPermission(caller, PermManageUsers, PermListingsView) {
		t.Error("one held permission passes HasAnyPermission")
	}
	if HasAnyPermission(caller) {
		t.Error("empty permission list never passes")
	}
}

func TestCanEditListing(t *testing.T) {
	owner := identityWith("u1", nil, []string{PermListingsEditOwn})
	moderator := identityWith("u2", nil, []string{PermListingsEditAny})
	bystander := identityWith("u3", nil, []string{PermListingsEditOwn})

	if !CanEditListing(owner, "u1") {
		t.Error("owner with own-scope permission can edit")
	}
	if !CanEditListing(moderator, "u1") {
		t.Error("any-scope permission can edit regardless of ownership")
	}
	if CanEditListing(bystander, "u1") {
		t.Error("own-scope permission on someone else's listing must fail")
	}

	ownerNoPerm := identityWith("u1", nil, nil)
	if CanEditListing(ownerNoPerm, "u1") {
		t.Error("ownership without the permission must fail")
	}
}

func TestCanDeleteListingMirrorsEditPattern(t *testing.T) {
	owner := identityWith("u1", nil, []string{PermListingsDeleteOwn})

	if !CanDeleteListing(owner, "u1") {
		t.Error("owner with delete.own can delete")
	}
	if CanDeleteListing(owner, "u2") {
		t.Error("delete.own never applies to others' listings")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(identityWith("u1", []string{RoleAdmin}, nil)) {
		t.Error("admin role is admin")
	}
	if !IsAdmin(identityWith("u1", []string{RoleSuperAdmin}, nil)) {
		t.Error("super_admin role is admin")
	}
	if IsAdmin(identityWith("u1", []string{RoleModerator}, nil)) {
		t.Error("moderator is not admin")
	}
}

func TestRoleDisplayPrefersHighestPriorityRole(t *testing.T) {
	caller := identityWith("u1", []string{RoleUser, RoleAdmin}, nil)
	if got := RoleDisplay(caller); got != "Display "+RoleAdmin {
		t.Errorf("expected admin display name, got %q", got)
	}

	custom := identityWith("u1", []string{"concierge"}, nil)
	if got := RoleDisplay(custom); got != "Display concierge" {
		t.Errorf("unranked roles fall back to the first granted, got %q", got)
	}

	none := identityWith("u1", nil, nil)
	if got := RoleDisplay(none); got != DefaultRoleDisplay {
		t.Errorf("no roles falls back to %q, got %q", DefaultRoleDisplay, got)
	}
}
