package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/pkg/cache"
)

type fakeStore struct {
	mu sync.Mutex

	users    map[string]*domain.User // keyed by external id
	profiles map[string]*domain.Profile
	roles    map[string][]domain.Role
	perms    map[string][]string
	images   map[string]string
	favs     map[string][]string

	userCalls int
	favCalls  int

	profileErr error
	rolesErr   error
	permsErr   error
	imageErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*domain.User{},
		profiles: map[string]*domain.Profile{},
		roles:    map[string][]domain.Role{},
		perms:    map[string][]string{},
		images:   map[string]string{},
		favs:     map[string][]string{},
	}
}

func (f *fakeStore) UserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	return f.users[externalID], nil
}

func (f *fakeStore) ProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profiles[userID], nil
}

func (f *fakeStore) RolesByUserID(ctx context.Context, userID string) ([]domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return f.roles[userID], nil
}

func (f *fakeStore) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permsErr != nil {
		return nil, f.permsErr
	}
	return f.perms[userID], nil
}

func (f *fakeStore) ImageURLByID(ctx context.Context, imageID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return f.images[imageID], nil
}

func (f *fakeStore) FavoriteListingIDs(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favCalls++
	return f.favs[userID], nil
}

func (f *fakeStore) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return nil, nil
}

// testClock is a settable time source shared by the resolver and its cache
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestResolver(t *testing.T, store *fakeStore) (*Resolver, *TokenManager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := NewTokenManager("test-secret", "staybook", time.Hour)
	verifier := NewSessionVerifier("test-secret", "staybook", nil, nil)
	resolver := NewResolver(verifier, store, cache.NewWithClock(clock.Now), Options{
		CacheTTL: time.Second,
		Clock:    clock.Now,
	}, nil)
	return resolver, tm, clock
}

func seedUser(store *fakeStore, externalID, userID string) {
	store.users[externalID] = &domain.User{
		ID:         userID,
		ExternalID: externalID,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
	}
}

func TestResolveAnonymousWithoutCredential(t *testing.T) {
	store := newFakeStore()
	resolver, _, _ := newTestResolver(t, store)

	if got := resolver.Resolve(context.Background(), ""); got != nil {
		t.Fatalf("expected nil identity, got %+v", got)
	}
	if store.userCalls != 0 {
		t.Errorf("expected no store calls for anonymous, got %d", store.userCalls)
	}
}

func TestResolveAssemblesFullIdentity(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")
	store.profiles["u1"] = &domain.Profile{ID: "p1", UserID: "u1", AvatarImageID: "img_9"}
	store.roles["u1"] = []domain.Role{{ID: "r1", Name: "admin", DisplayName: "Administrator"}}
	store.perms["u1"] = []string{"users.manage", "listings.edit.any", "users.manage"}
	store.images["img_9"] = "https://cdn.example.com/img_9.jpg"

	resolver, tm, _ := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_1", "")

	resolved := resolver.Resolve(context.Background(), token)
	if resolved == nil {
		t.Fatal("expected a resolved identity")
	}
	if resolved.User.ID != "u1" {
		t.Errorf("expected user u1, got %s", resolved.User.ID)
	}
	if resolved.Profile == nil || resolved.Profile.ID != "p1" {
		t.Errorf("expected profile p1, got %+v", resolved.Profile)
	}
	if len(resolved.Roles) != 1 || resolved.Roles[0].Name != "admin" {
		t.Errorf("unexpected roles: %+v", resolved.Roles)
	}
	if !resolved.Permissions.Has("users.manage") || !resolved.Permissions.Has("listings.edit.any") {
		t.Errorf("permission set incomplete: %v", resolved.Permissions.Names())
	}
	if len(resolved.Permissions) != 2 {
		t.Errorf("expected duplicates collapsed, got %v", resolved.Permissions.Names())
	}
	if resolved.AvatarURL != "https://cdn.example.com/img_9.jpg" {
		t.Errorf("unexpected avatar url %q", resolved.AvatarURL)
	}
}

func TestResolveWithoutProfileOrRoles(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")

	resolver, tm, _ := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_1", "")

	resolved := resolver.Resolve(context.Background(), token)
	if resolved == nil {
		t.Fatal("expected a resolved identity")
	}
	if resolved.Profile != nil {
		t.Errorf("expected nil profile, got %+v", resolved.Profile)
	}
	if resolved.Roles == nil || len(resolved.Roles) != 0 {
		t.Errorf("expected empty non-nil roles, got %#v", resolved.Roles)
	}
	if resolved.Permissions == nil || len(resolved.Permissions) != 0 {
		t.Errorf("expected empty permission set, got %v", resolved.Permissions.Names())
	}
	if resolved.AvatarURL != "" {
		t.Errorf("expected no avatar url, got %q", resolved.AvatarURL)
	}
}

func TestResolveUnprovisionedPrincipalIsAnonymous(t *testing.T) {
	store := newFakeStore()
	resolver, tm, _ := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_unknown", "")

	if got := resolver.Resolve(context.Background(), token); got != nil {
		t.Fatalf("expected nil identity for unprovisioned principal, got %+v", got)
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")

	resolver, tm, clock := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_1", "")

	first := resolver.Resolve(context.Background(), token)
	second := resolver.Resolve(context.Background(), token)
	if first == nil || second == nil {
		t.Fatal("expected resolved identities")
	}
	if store.userCalls != 1 {
		t.Errorf("expected one store load within TTL, got %d", store.userCalls)
	}
	if first != second {
		t.Error("expected the cached identity instance to be returned")
	}

	clock.Advance(time.Second + time.Millisecond)
	resolver.Resolve(context.Background(), token)
	if store.userCalls != 2 {
		t.Errorf("expected reload after TTL, got %d calls", store.userCalls)
	}
}

func TestResolveNeverServesExpiredEntry(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")

	resolver, tm, clock := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_1", "")

	resolver.Resolve(context.Background(), token)

	// Role changes land in the store while the cached entry ages out.
	store.mu.Lock()
	store.perms["u1"] = []string{"users.manage"}
	store.mu.Unlock()

	clock.Advance(999 * time.Millisecond)
	stale := resolver.Resolve(context.Background(), token)
	if stale.Permissions.Has("users.manage") {
		t.Error("entry inside TTL should still be served as cached")
	}

	clock.Advance(2 * time.Millisecond)
	fresh := resolver.Resolve(context.Background(), token)
	if !fresh.Permissions.Has("users.manage") {
		t.Error("expired entry must never be served")
	}
}

func TestResolveCacheIsolatesPrincipals(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")
	seedUser(store, "ext_2", "u2")

	resolver, tm, _ := newTestResolver(t, store)
	token1, _, _ := tm.Issue("ext_1", "")
	token2, _, _ := tm.Issue("ext_2", "")

	first := resolver.Resolve(context.Background(), token1)
	second := resolver.Resolve(context.Background(), token2)

	if first.User.ID != "u1" || second.User.ID != "u2" {
		t.Fatalf("principals crossed: %s / %s", first.User.ID, second.User.ID)
	}
	if store.userCalls != 2 {
		t.Errorf("expected one load per principal, got %d", store.userCalls)
	}
}

func TestResolveLoaderFailureYieldsAnonymous(t *testing.T) {
	cases := []struct {
		name string
		set  func(*fakeStore)
	}{
		{"profile", func(s *fakeStore) { s.profileErr = errors.New("boom") }},
		{"roles", func(s *fakeStore) { s.rolesErr = errors.New("boom") }},
		{"permissions", func(s *fakeStore) { s.permsErr = errors.New("boom") }},
		{"avatar", func(s *fakeStore) {
			s.profiles["u1"] = &domain.Profile{ID: "p1", UserID: "u1", AvatarImageID: "img_9"}
			s.imageErr = errors.New("boom")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			seedUser(store, "ext_1", "u1")
			tc.set(store)

			resolver, tm, _ := newTestResolver(t, store)
			token, _, _ := tm.Issue("ext_1", "")

			if got := resolver.Resolve(context.Background(), token); got != nil {
				t.Fatalf("expected nil identity when %s loader fails, got %+v", tc.name, got)
			}
		})
	}
}

func TestResolveCachesAnonymousResult(t *testing.T) {
	store := newFakeStore()
	resolver, tm, _ := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_unknown", "")

	resolver.Resolve(context.Background(), token)
	resolver.Resolve(context.Background(), token)

	if store.userCalls != 1 {
		t.Errorf("expected the anonymous result to be cached, got %d loads", store.userCalls)
	}
}

func TestInvalidateDropsCachedResolution(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")

	resolver, tm, _ := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_1", "")

	resolver.Resolve(context.Background(), token)
	resolver.Invalidate("ext_1")
	resolver.Resolve(context.Background(), token)

	if store.userCalls != 2 {
		t.Errorf("expected reload after invalidation, got %d calls", store.userCalls)
	}
}

func TestFavoriteListingIDs(t *testing.T) {
	store := newFakeStore()
	seedUser(store, "ext_1", "u1")
	store.favs["u1"] = []string{"lst_1", "lst_2"}

	resolver, tm, _ := newTestResolver(t, store)
	token, _, _ := tm.Issue("ext_1", "")

	set := resolver.FavoriteListingIDs(context.Background(), token)
	if len(set) != 2 {
		t.Fatalf("expected 2 favorites, got %v", set)
	}
	if _, ok := set["lst_1"]; !ok {
		t.Error("expected lst_1 in favorites")
	}

	resolver.FavoriteListingIDs(context.Background(), token)
	if store.favCalls != 1 {
		t.Errorf("expected favorites to be cached independently, got %d loads", store.favCalls)
	}
}

func TestFavoriteListingIDsAnonymous(t *testing.T) {
	store := newFakeStore()
	resolver, _, _ := newTestResolver(t, store)

	set := resolver.FavoriteListingIDs(context.Background(), "not-a-token")
	if set == nil {
		t.Fatal("expected an empty set, not nil")
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %v", set)
	}
}
