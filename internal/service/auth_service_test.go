package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/identity"
)

type memCredentialStore struct {
	creds map[string]*domain.Credential // keyed by email
	users map[string]*domain.User       // keyed by external id
	next  int
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{
		creds: map[string]*domain.Credential{},
		users: map[string]*domain.User{},
	}
}

func (m *memCredentialStore) CreateCredential(ctx context.Context, cred *domain.Credential) error {
	if _, exists := m.creds[cred.Email]; exists {
		return errors.New("duplicate email")
	}
	m.next++
	cred.ExternalID = fmt.Sprintf("ext_%d", m.next)
	cred.CreatedAt = time.Now()
	m.creds[cred.Email] = cred
	return nil
}

func (m *memCredentialStore) CredentialByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	cred, ok := m.creds[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return cred, nil
}

func (m *memCredentialStore) UpdatePassword(ctx context.Context, externalID, passwordHash string) error {
	for _, cred := range m.creds {
		if cred.ExternalID == externalID {
			cred.PasswordHash = passwordHash
			return nil
		}
	}
	return errors.New("not found")
}

func (m *memCredentialStore) ProvisionUser(ctx context.Context, externalID, email, firstName, lastName string) (*domain.User, error) {
	user := &domain.User{
		ID:         "u_" + externalID,
		ExternalID: externalID,
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
	}
	m.users[externalID] = user
	return user, nil
}

type memRevoker struct {
	revoked map[string]time.Duration
}

func (m *memRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if m.revoked == nil {
		m.revoked = map[string]time.Duration{}
	}
	m.revoked[tokenID] = ttl
	return nil
}

func newTestAuthService() (*AuthService, *memCredentialStore, *memRevoker) {
	store := newMemCredentialStore()
	revoker := &memRevoker{}
	tokens := identity.NewTokenManager("test-secret", "staybook", 15*time.Minute)
	return NewAuthService(store, tokens, revoker, nil, nil), store, revoker
}

func TestRegisterProvisionsUserAndIssuesToken(t *testing.T) {
	svc, store, _ := newTestAuthService()

	result, err := svc.Register(context.Background(), "ada@example.com", "longenough", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.Token == "" {
		t.Error("expected a session token")
	}
	if result.UserID == "" {
		t.Error("expected a provisioned user id")
	}

	cred := store.creds["ada@example.com"]
	if cred == nil {
		t.Fatal("expected a stored credential")
	}
	if cred.PasswordHash == "longenough" {
		t.Error("password must be hashed")
	}
	if store.users[cred.ExternalID] == nil {
		t.Error("expected a user row keyed by the credential's external id")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestAuthService()

	if _, err := svc.Register(context.Background(), "ada@example.com", "short", "", ""); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService()

	if _, err := svc.Register(context.Background(), "ada@example.com", "longenough", "", ""); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "ada@example.com", "longenough", "", ""); err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuthService()
	if _, err := svc.Register(context.Background(), "ada@example.com", "longenough", "", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := svc.Login(context.Background(), "ada@example.com", "longenough")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Token == "" || result.TokenType != "Bearer" {
		t.Errorf("unexpected login result: %+v", result)
	}
	if result.ExpiresIn != int((15 * time.Minute).Seconds()) {
		t.Errorf("unexpected expires_in: %d", result.ExpiresIn)
	}

	if _, err := svc.Login(context.Background(), "ada@example.com", "wrongpass"); err == nil {
		t.Error("expected wrong password to fail")
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "longenough"); err == nil {
		t.Error("expected unknown email to fail")
	}
}

func TestLogoutRevokesTokenForRemainingLifetime(t *testing.T) {
	svc, _, revoker := newTestAuthService()

	tokens := identity.NewTokenManager("test-secret", "staybook", 15*time.Minute)
	token, _, err := tokens.Issue("ext_1", "ada@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	verifier := identity.NewSessionVerifier("test-secret", "staybook", nil, nil)
	claims, err := verifier.VerifyClaims(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyClaims failed: %v", err)
	}

	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	ttl, ok := revoker.revoked[claims.ID]
	if !ok {
		t.Fatal("expected the token id to be revoked")
	}
	if ttl <= 0 || ttl > 15*time.Minute {
		t.Errorf("unexpected revocation ttl: %v", ttl)
	}
}

func TestLogoutWithoutClaimsIsNoOp(t *testing.T) {
	svc, _, revoker := newTestAuthService()

	if err := svc.Logout(context.Background(), nil); err != nil {
		t.Fatalf("Logout(nil) failed: %v", err)
	}
	if len(revoker.revoked) != 0 {
		t.Error("nothing should be revoked without claims")
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestAuthService()
	if _, err := svc.Register(context.Background(), "ada@example.com", "longenough", "", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), "ada@example.com", "wrongpass", "evenlonger"); err == nil {
		t.Fatal("expected wrong current password to fail")
	}
	if err := svc.ChangePassword(context.Background(), "ada@example.com", "longenough", "tiny"); err == nil {
		t.Fatal("expected short new password to fail")
	}
	if err := svc.ChangePassword(context.Background(), "ada@example.com", "longenough", "evenlonger"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), "ada@example.com", "evenlonger"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "ada@example.com", "longenough"); err == nil {
		t.Error("old password must no longer work")
	}
}
