package domain

import (
	"context"
	"encoding/json"
	"time"
)

// User is the internal identity anchor. Every application entity references
// User.ID; only this table maps back to the external principal.
type User struct {
	ID         string // UUID
	ExternalID string // external principal id (gateway column)
	FirstName  string
	LastName   string
	Email      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile holds optional per-user profile data (0..1 per user)
type Profile struct {
	ID            string
	UserID        string
	Bio           string
	Phone         string
	Location      string
	Website       string
	AvatarImageID string // empty when no avatar is set
	CoverImageID  string
	Preferences   json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Credential is a login credential owned by the session layer. It is keyed
// by the external principal id and never referenced by application tables.
type Credential struct {
	ExternalID   string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialStore defines data access for credentials and user provisioning
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred *Credential) error
	CredentialByEmail(ctx context.Context, email string) (*Credential, error)
	UpdatePassword(ctx context.Context, externalID, passwordHash string) error

	// ProvisionUser creates the internal user row for an external principal
	// and grants the default role.
	ProvisionUser(ctx context.Context, externalID, email, firstName, lastName string) (*User, error)
}
