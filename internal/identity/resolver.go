package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/observability/metrics"
	"github.com/yourorg/staybook/pkg/cache"
)

// resolution is what the identity cache holds. A nil identity is a valid
// cached result: anonymous lookups within the TTL window are just as worth
// deduplicating as successful ones.
type resolution struct {
	identity *domain.Identity
}

// Options tunes a Resolver
type Options struct {
	// CacheTTL is deliberately short. The cache exists to collapse the
	// burst of resolutions a single request fan-out produces, not to serve
	// long-lived data.
	CacheTTL time.Duration

	FavoritesCacheSize int
	FavoritesCacheTTL  time.Duration

	// Clock overrides the time source for deterministic tests
	Clock func() time.Time

	// Diagnostics enables logging of loader failures. Outside development
	// these degrade silently to anonymous.
	Diagnostics bool
}

// Resolver turns a raw session credential into a fully-resolved Identity.
// It is the single entry point the rest of the platform uses to answer
// "who is calling".
type Resolver struct {
	verifier  *SessionVerifier
	store     domain.IdentityStore
	cache     *cache.Cache
	ttl       time.Duration
	favorites *expirable.LRU[string, map[string]struct{}]
	logger    *slog.Logger
	now       func() time.Time
	diag      bool
}

// NewResolver creates a resolver. The cache is injected, not global, and
// entries are keyed per principal so concurrent requests for different
// users can never observe each other's identity.
func NewResolver(verifier *SessionVerifier, store domain.IdentityStore, idCache *cache.Cache, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if idCache == nil {
		idCache = cache.New()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.FavoritesCacheSize <= 0 {
		opts.FavoritesCacheSize = 1024
	}
	if opts.FavoritesCacheTTL <= 0 {
		opts.FavoritesCacheTTL = 30 * time.Second
	}

	return &Resolver{
		verifier:  verifier,
		store:     store,
		cache:     idCache,
		ttl:       opts.CacheTTL,
		favorites: expirable.NewLRU[string, map[string]struct{}](opts.FavoritesCacheSize, nil, opts.FavoritesCacheTTL),
		logger:    logger,
		now:       opts.Clock,
		diag:      opts.Diagnostics,
	}
}

// Resolve validates the credential and returns the caller's Identity, or
// nil for anonymous. It never returns an error: missing sessions,
// unprovisioned users and datastore failures all degrade to nil because
// this path backs page rendering.
func (r *Resolver) Resolve(ctx context.Context, rawCredential string) *domain.Identity {
	principal, err := r.verifier.Verify(ctx, rawCredential)
	if err != nil {
		metrics.ObserveIdentityResolution("no_session")
		return nil
	}

	key := identityCacheKey(principal.ExternalID)
	if v, ok := r.cache.Get(key); ok {
		metrics.ObserveIdentityCache("hit")
		return v.(resolution).identity
	}
	metrics.ObserveIdentityCache("miss")

	identity := r.assemble(ctx, principal)
	r.cache.Set(key, resolution{identity: identity}, r.ttl)

	if identity == nil {
		metrics.ObserveIdentityResolution("anonymous")
	} else {
		metrics.ObserveIdentityResolution("resolved")
	}
	return identity
}

// Invalidate drops any cached resolution for a principal. Called on logout
// and after role or profile mutations.
func (r *Resolver) Invalidate(externalID string) {
	r.cache.Delete(identityCacheKey(externalID))
	r.favorites.Remove(externalID)
}

// assemble builds a fresh Identity: user record first, then profile, roles
// and the effective permission set loaded concurrently, then the dependent
// avatar lookup. Any loader failure aborts the whole assembly and yields
// anonymous.
func (r *Resolver) assemble(ctx context.Context, principal *domain.ExternalPrincipal) *domain.Identity {
	user, err := r.store.UserByExternalID(ctx, principal.ExternalID)
	if err != nil {
		r.logLoaderFailure("user", err)
		return nil
	}
	if user == nil {
		// Valid principal without a user row: not yet provisioned.
		return nil
	}

	var (
		wg       sync.WaitGroup
		profile  *domain.Profile
		roles    []domain.Role
		perms    []string
		profErr  error
		rolesErr error
		permsErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		profile, profErr = r.store.ProfileByUserID(ctx, user.ID)
	}()
	go func() {
		defer wg.Done()
		roles, rolesErr = r.store.RolesByUserID(ctx, user.ID)
	}()
	go func() {
		defer wg.Done()
		perms, permsErr = r.store.EffectivePermissions(ctx, user.ID)
	}()
	wg.Wait()

	if profErr != nil {
		r.logLoaderFailure("profile", profErr)
		return nil
	}
	if rolesErr != nil {
		r.logLoaderFailure("roles", rolesErr)
		return nil
	}
	if permsErr != nil {
		r.logLoaderFailure("permissions", permsErr)
		return nil
	}

	avatarURL := ""
	if profile != nil && profile.AvatarImageID != "" {
		avatarURL, err = r.store.ImageURLByID(ctx, profile.AvatarImageID)
		if err != nil {
			r.logLoaderFailure("avatar", err)
			return nil
		}
	}

	// Roles and permissions are always well-defined containers so policy
	// code never needs nil checks.
	if roles == nil {
		roles = []domain.Role{}
	}

	return &domain.Identity{
		User:        *user,
		Profile:     profile,
		Roles:       roles,
		Permissions: domain.NewPermissionSet(perms),
		AvatarURL:   avatarURL,
		ResolvedAt:  r.now(),
	}
}

// FavoriteListingIDs resolves the caller's favorited listing ids. It
// follows the same session-to-user resolution as Resolve but is cached
// independently, with a longer window, because favorites tolerate more
// staleness than identity.
func (r *Resolver) FavoriteListingIDs(ctx context.Context, rawCredential string) map[string]struct{} {
	principal, err := r.verifier.Verify(ctx, rawCredential)
	if err != nil {
		return map[string]struct{}{}
	}

	if cached, ok := r.favorites.Get(principal.ExternalID); ok {
		return cached
	}

	user, err := r.store.UserByExternalID(ctx, principal.ExternalID)
	if err != nil {
		r.logLoaderFailure("user", err)
		return map[string]struct{}{}
	}
	if user == nil {
		return map[string]struct{}{}
	}

	ids, err := r.store.FavoriteListingIDs(ctx, user.ID)
	if err != nil {
		r.logLoaderFailure("favorites", err)
		return map[string]struct{}{}
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	r.favorites.Add(principal.ExternalID, set)
	return set
}

func (r *Resolver) logLoaderFailure(loader string, err error) {
	if !r.diag {
		return
	}
	r.logger.Warn("identity loader failed",
		slog.String("loader", loader),
		slog.String("error", err.Error()),
	)
}

func identityCacheKey(externalID string) string {
	return "identity:" + externalID
}
