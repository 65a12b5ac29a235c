package domain

import "context"

// PMSRole is a user's derived role within the property-management
// subsystem. It is never stored; it is recomputed from relational facts on
// every call.
type PMSRole string

const (
	PMSRoleOwner  PMSRole = "owner"
	PMSRoleHost   PMSRole = "host"
	PMSRoleCoHost PMSRole = "co_host"
	PMSRoleGuest  PMSRole = "guest"
	PMSRoleNone   PMSRole = "none"
)

// Assignment role values in property_assignments
const (
	AssignmentHost   = "host"
	AssignmentCoHost = "co_host"
)

// PMSStore exposes the existence checks the PMS role derivation is built
// from. Each check is independent; callers decide precedence.
type PMSStore interface {
	HasPropertyOwnership(ctx context.Context, userID string) (bool, error)
	HasActiveAssignment(ctx context.Context, userID, role string) (bool, error)
	HasReservation(ctx context.Context, userID string) (bool, error)
}
