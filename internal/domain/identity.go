package domain

import (
	"context"
	"time"
)

// ExternalPrincipal is the minimal fact a validated session credential
// proves: which external identity is calling, and when the session was
// issued. It is never persisted by this layer.
type ExternalPrincipal struct {
	ExternalID string
	IssuedAt   time.Time
}

// Role is a named role grantable to users
type Role struct {
	ID          string
	Name        string
	DisplayName string
	Description string
}

// PermissionSet is the de-duplicated union of permissions implied by every
// role granted to a user. Membership checks are O(1).
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names, collapsing duplicates
func NewPermissionSet(names []string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports exact membership
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the permissions in no particular order
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	return names
}

// Identity is the fully-resolved view of a caller. It is assembled once per
// resolution and must not be mutated afterwards; changing roles or profile
// data requires a fresh resolution. Roles and Permissions are always
// non-nil, possibly empty.
type Identity struct {
	User        User
	Profile     *Profile
	Roles       []Role
	Permissions PermissionSet
	AvatarURL   string
	ResolvedAt  time.Time
}

// IdentityStore defines the queries the identity assembler fans out over.
// Both data-access strategies implement it and must be observably
// identical to callers.
type IdentityStore interface {
	// UserByExternalID returns (nil, nil) when no user row exists for the
	// principal; that is a normal not-yet-provisioned state, not an error.
	UserByExternalID(ctx context.Context, externalID string) (*User, error)

	// ProfileByUserID returns (nil, nil) when the user has no profile.
	ProfileByUserID(ctx context.Context, userID string) (*Profile, error)

	RolesByUserID(ctx context.Context, userID string) ([]Role, error)

	// EffectivePermissions runs the single aggregation call that computes
	// the union of permissions across all granted roles.
	EffectivePermissions(ctx context.Context, userID string) ([]string, error)

	// ImageURLByID resolves a stored image id to its public URL.
	ImageURLByID(ctx context.Context, imageID string) (string, error)

	FavoriteListingIDs(ctx context.Context, userID string) ([]string, error)

	ListUsers(ctx context.Context, limit, offset int) ([]*User, error)
}
