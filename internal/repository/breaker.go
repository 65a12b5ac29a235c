package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/reliability/circuitbreaker"
)

// ErrStoreUnavailable is returned while the breaker is open. Identity
// resolution treats it like any other loader failure: degrade to anonymous.
var ErrStoreUnavailable = fmt.Errorf("identity store unavailable")

// BreakerStore decorates an IdentityStore with a circuit breaker so a down
// database fails fast instead of tying up the pool on every resolution.
type BreakerStore struct {
	inner   domain.IdentityStore
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewBreakerStore wraps a store with fast-fail behavior
func NewBreakerStore(inner domain.IdentityStore, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}

	cb := circuitbreaker.New(5, 2, 10*time.Second)
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("identity store breaker state change",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &BreakerStore{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

func (s *BreakerStore) observe(err error) error {
	if err != nil {
		s.breaker.Failure()
		return err
	}
	s.breaker.Success()
	return nil
}

func (s *BreakerStore) UserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	if !s.breaker.Allow() {
		return nil, ErrStoreUnavailable
	}
	user, err := s.inner.UserByExternalID(ctx, externalID)
	return user, s.observe(err)
}

func (s *BreakerStore) ProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	if !s.breaker.Allow() {
		return nil, ErrStoreUnavailable
	}
	profile, err := s.inner.ProfileByUserID(ctx, userID)
	return profile, s.observe(err)
}

func (s *BreakerStore) RolesByUserID(ctx context.Context, userID string) ([]domain.Role, error) {
	if !s.breaker.Allow() {
		return nil, ErrStoreUnavailable
	}
	roles, err := s.inner.RolesByUserID(ctx, userID)
	return roles, s.observe(err)
}

func (s *BreakerStore) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	if !s.breaker.Allow() {
		return nil, ErrStoreUnavailable
	}
	perms, err := s.inner.EffectivePermissions(ctx, userID)
	return perms, s.observe(err)
}

func (s *BreakerStore) ImageURLByID(ctx context.Context, imageID string) (string, error) {
	if !s.breaker.Allow() {
		return "", ErrStoreUnavailable
	}
	url, err := s.inner.ImageURLByID(ctx, imageID)
	return url, s.observe(err)
}

func (s *BreakerStore) FavoriteListingIDs(ctx context.Context, userID string) ([]string, error) {
	if !s.breaker.Allow() {
		return nil, ErrStoreUnavailable
	}
	ids, err := s.inner.FavoriteListingIDs(ctx, userID)
	return ids, s.observe(err)
}

func (s *BreakerStore) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if !s.breaker.Allow() {
		return nil, ErrStoreUnavailable
	}
	users, err := s.inner.ListUsers(ctx, limit, offset)
	return users, s.observe(err)
}
