package pms

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/observability/metrics"
	"github.com/yourorg/staybook/internal/security"
)

// Resolver derives a user's property-management role from relational
// facts on every call. Results are never cached: PMS access decisions must
// reflect the store as it is now.
type Resolver struct {
	store  domain.PMSStore
	logger *slog.Logger
}

// NewResolver creates a PMS role resolver
func NewResolver(store domain.PMSStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Role derives the PMS role by strict precedence:
// owner > host > co_host > guest > none.
// The three top-precedence facts are checked concurrently and the highest
// positive one wins; the guest fallback only runs when all three are
// negative. A failed check counts as "fact absent": the resolver fails
// closed, never open.
func (r *Resolver) Role(ctx context.Context, userID string) domain.PMSRole {
	var (
		wg      sync.WaitGroup
		isOwner bool
		isHost  bool
		isCo    bool
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		isOwner = r.fact(ctx, "ownership", func() (bool, error) {
			return r.store.HasPropertyOwnership(ctx, userID)
		})
	}()
	go func() {
		defer wg.Done()
		isHost = r.fact(ctx, "host_assignment", func() (bool, error) {
			return r.store.HasActiveAssignment(ctx, userID, domain.AssignmentHost)
		})
	}()
	go func() {
		defer wg.Done()
		isCo = r.fact(ctx, "co_host_assignment", func() (bool, error) {
			return r.store.HasActiveAssignment(ctx, userID, domain.AssignmentCoHost)
		})
	}()
	wg.Wait()

	role := domain.PMSRoleNone
	switch {
	case isOwner:
		role = domain.PMSRoleOwner
	case isHost:
		role = domain.PMSRoleHost
	case isCo:
		role = domain.PMSRoleCoHost
	default:
		if r.fact(ctx, "reservation", func() (bool, error) {
			return r.store.HasReservation(ctx, userID)
		}) {
			role = domain.PMSRoleGuest
		}
	}

	metrics.ObservePMSRoleCheck(string(role))
	return role
}

// IsPropertyOwner performs only the ownership existence check
func (r *Resolver) IsPropertyOwner(ctx context.Context, userID string) bool {
	return r.fact(ctx, "ownership", func() (bool, error) {
		return r.store.HasPropertyOwnership(ctx, userID)
	})
}

// IsHost performs only the active host assignment check
func (r *Resolver) IsHost(ctx context.Context, userID string) bool {
	return r.fact(ctx, "host_assignment", func() (bool, error) {
		return r.store.HasActiveAssignment(ctx, userID, domain.AssignmentHost)
	})
}

// IsCoHost performs only the active co-host assignment check
func (r *Resolver) IsCoHost(ctx context.Context, userID string) bool {
	return r.fact(ctx, "co_host_assignment", func() (bool, error) {
		return r.store.HasActiveAssignment(ctx, userID, domain.AssignmentCoHost)
	})
}

// CanAccessPMS grants the property-management surface to admins, to anyone
// with a PMS role above guest, and to users with at least one reservation
func (r *Resolver) CanAccessPMS(ctx context.Context, identity *domain.Identity) bool {
	if identity == nil {
		return false
	}
	if security.IsAdmin(identity) {
		return true
	}
	userID := identity.User.ID
	if r.IsPropertyOwner(ctx, userID) || r.IsHost(ctx, userID) || r.IsCoHost(ctx, userID) {
		return true
	}
	return r.fact(ctx, "reservation", func() (bool, error) {
		return r.store.HasReservation(ctx, userID)
	})
}

// fact runs a single existence check, treating any failure as a negative
func (r *Resolver) fact(ctx context.Context, name string, check func() (bool, error)) bool {
	exists, err := check()
	if err != nil {
		r.logger.Warn("pms fact check failed",
			slog.String("fact", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	return exists
}
