package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[tokenID], nil
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	tm := NewTokenManager("test-secret", "staybook", time.Minute)
	verifier := NewSessionVerifier("test-secret", "staybook", nil, nil)

	token, tokenID, err := tm.Issue("ext_123", "user@example.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if tokenID == "" {
		t.Fatal("expected a token id")
	}

	principal, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if principal.ExternalID != "ext_123" {
		t.Errorf("expected external id ext_123, got %s", principal.ExternalID)
	}
	if principal.IssuedAt.IsZero() {
		t.Error("expected issued-at to be set")
	}
}

func TestVerifyMissingCredential(t *testing.T) {
	verifier := NewSessionVerifier("test-secret", "staybook", nil, nil)

	if _, err := verifier.Verify(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for empty credential, got %v", err)
	}
}

func TestVerifyMalformedCredential(t *testing.T) {
	verifier := NewSessionVerifier("test-secret", "staybook", nil, nil)

	for _, raw := range []string{"garbage", "a.b.c", "Bearer something"} {
		if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrNoSession) {
			t.Errorf("credential %q: expected ErrNoSession, got %v", raw, err)
		}
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", "staybook", -time.Minute)
	verifier := NewSessionVerifier("test-secret", "staybook", nil, nil)

	token, _, err := tm.Issue("ext_123", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for expired token, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", "staybook", time.Minute)
	verifier := NewSessionVerifier("other-secret", "staybook", nil, nil)

	token, _, _ := tm.Issue("ext_123", "")

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for wrong secret, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	tm := NewTokenManager("test-secret", "someone-else", time.Minute)
	verifier := NewSessionVerifier("test-secret", "staybook", nil, nil)

	token, _, _ := tm.Issue("ext_123", "")

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for wrong issuer, got %v", err)
	}
}

func TestVerifyRevokedToken(t *testing.T) {
	tm := NewTokenManager("test-secret", "staybook", time.Minute)
	revocations := &fakeRevocations{revoked: map[string]bool{}}
	verifier := NewSessionVerifier("test-secret", "staybook", revocations, nil)

	token, tokenID, _ := tm.Issue("ext_123", "")
	revocations.revoked[tokenID] = true

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for revoked token, got %v", err)
	}
}

func TestVerifyFailsClosedWhenRevocationCheckErrors(t *testing.T) {
	tm := NewTokenManager("test-secret", "staybook", time.Minute)
	revocations := &fakeRevocations{err: errors.New("redis down")}
	verifier := NewSessionVerifier("test-secret", "staybook", revocations, nil)

	token, _, _ := tm.Issue("ext_123", "")

	if _, err := verifier.Verify(context.Background(), token); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession when revocation list is unavailable, got %v", err)
	}
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc123")
	if err != nil {
		t.Fatalf("ExtractToken failed: %v", err)
	}
	if token != "abc123" {
		t.Errorf("expected abc123, got %s", token)
	}

	for _, header := range []string{"", "abc123", "Basic abc123", "Bearer a b"} {
		if _, err := ExtractToken(header); err == nil {
			t.Errorf("header %q: expected error", header)
		}
	}
}
