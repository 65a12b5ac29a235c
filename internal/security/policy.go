package security

import "github.com/yourorg/staybook/internal/domain"

// Permission names used across the platform
const (
	PermListingsView         = "listings.view"
	PermListingsEditOwn      = "listings.edit.own"
	PermListingsEditAny      = "listings.edit.any"
	PermListingsDeleteOwn    = "listings.delete.own"
	PermListingsDeleteAny    = "listings.delete.any"
	PermProfileEditOwn       = "profile.edit.own"
	PermProfileEditAny       = "profile.edit.any"
	PermAdminDashboardAccess = "admin.dashboard.access"
	PermManageUsers          = "users.manage"
	PermManageRoles          = "roles.manage"
)

// Role names with special meaning to policy checks
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleModerator  = "moderator"
	RoleUser       = "user"
)

// rolePriority orders roles for display purposes, highest first
var rolePriority = []string{RoleSuperAdmin, RoleAdmin, RoleModerator, RoleUser}

// DefaultRoleDisplay is shown when a user has no granted roles
const DefaultRoleDisplay = "Member"

// Every predicate in this file is a pure function of its inputs: no I/O,
// no hidden state. A nil identity always means "no roles, no permissions";
// predicates return false for it, they never panic.

// HasPermission reports exact membership in the effective permission set
func HasPermission(identity *domain.Identity, name string) bool {
	if identity == nil {
		return false
	}
	return identity.Permissions.Has(name)
}

// HasAnyPermission is a logical OR over HasPermission
func HasAnyPermission(identity *domain.Identity, names ...string) bool {
	for _, name := range names {
		if HasPermission(identity, name) {
			return true
		}
	}
	return false
}

// HasAllPermissions is a logical AND over HasPermission
func HasAllPermissions(identity *domain.Identity, names ...string) bool {
	if identity == nil {
		return false
	}
	for _, name := range names {
		if !identity.Permissions.Has(name) {
			return false
		}
	}
	return true
}

// HasRole reports whether the identity holds a role by name
func HasRole(identity *domain.Identity, roleName string) bool {
	if identity == nil {
		return false
	}
	for _, role := range identity.Roles {
		if role.Name == roleName {
			return true
		}
	}
	return false
}

// HasAnyRole is a logical OR over HasRole
func HasAnyRole(identity *domain.Identity, roleNames ...string) bool {
	for _, name := range roleNames {
		if HasRole(identity, name) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity holds an administrative role
func IsAdmin(identity *domain.Identity) bool {
	return HasAnyRole(identity, RoleAdmin, RoleSuperAdmin)
}

// IsOwner reports whether the identity is the owner of a resource
func IsOwner(identity *domain.Identity, resourceOwnerID string) bool {
	if identity == nil || resourceOwnerID == "" {
		return false
	}
	return identity.User.ID == resourceOwnerID
}

// CanEditListing allows owners holding the own-scope permission, or anyone
// holding the any-scope permission
func CanEditListing(identity *domain.Identity, resourceOwnerID string) bool {
	if IsOwner(identity, resourceOwnerID) && HasPermission(identity, PermListingsEditOwn) {
		return true
	}
	return HasPermission(identity, PermListingsEditAny)
}

// CanDeleteListing follows the same own/any pattern as CanEditListing
func CanDeleteListing(identity *domain.Identity, resourceOwnerID string) bool {
	if IsOwner(identity, resourceOwnerID) && HasPermission(identity, PermListingsDeleteOwn) {
		return true
	}
	return HasPermission(identity, PermListingsDeleteAny)
}

// CanEditUserProfile follows the same own/any pattern for profiles
func CanEditUserProfile(identity *domain.Identity, profileOwnerID string) bool {
	if IsOwner(identity, profileOwnerID) && HasPermission(identity, PermProfileEditOwn) {
		return true
	}
	return HasPermission(identity, PermProfileEditAny)
}

// CanAccessAdminDashboard gates the admin console
func CanAccessAdminDashboard(identity *domain.Identity) bool {
	return HasPermission(identity, PermAdminDashboardAccess)
}

// CanManageUsers gates user administration
func CanManageUsers(identity *domain.Identity) bool {
	return HasPermission(identity, PermManageUsers)
}

// CanManageRoles gates role administration
func CanManageRoles(identity *domain.Identity) bool {
	return HasPermission(identity, PermManageRoles)
}

// RoleDisplay returns the display name of the highest-priority granted
// role. Falls back to the first granted role, then to the default label.
func RoleDisplay(identity *domain.Identity) string {
	if identity == nil || len(identity.Roles) == 0 {
		return DefaultRoleDisplay
	}
	for _, name := range rolePriority {
		for _, role := range identity.Roles {
			if role.Name == name {
				return role.DisplayName
			}
		}
	}
	return identity.Roles[0].DisplayName
}
