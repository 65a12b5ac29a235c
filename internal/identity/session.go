package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yourorg/staybook/internal/domain"
)

// ErrNoSession means the caller presented no usable session credential:
// missing, malformed, expired, or revoked. It is the expected anonymous
// path, not a fault.
var ErrNoSession = errors.New("no session")

// SessionClaims is the payload of a staybook session token. Subject is the
// external principal id.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RevocationList answers whether a session token id has been revoked
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenManager issues session tokens for the built-in credential flow
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager creates a token issuer
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "staybook"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue signs a session token for an external principal. The returned token
// id is what the revocation list is keyed by.
func (tm *TokenManager) Issue(externalID, email string) (token, tokenID string, err error) {
	if externalID == "" {
		return "", "", fmt.Errorf("external id required")
	}
	now := time.Now()
	tokenID = uuid.NewString()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   externalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			Issuer:    tm.issuer,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(tm.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, tokenID, nil
}

// TTL returns the configured session lifetime
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// SessionVerifier validates a raw session credential into an
// ExternalPrincipal. Verification is either a shared HMAC secret or a
// remote JWKS, chosen at construction. It queries no application tables.
type SessionVerifier struct {
	secret  []byte
	issuer  string
	keys    keyfunc.Keyfunc
	revoked RevocationList
	logger  *slog.Logger
}

// NewSessionVerifier creates an HMAC-secret verifier
func NewSessionVerifier(secret, issuer string, revoked RevocationList, logger *slog.Logger) *SessionVerifier {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionVerifier{
		secret:  []byte(secret),
		issuer:  issuer,
		revoked: revoked,
		logger:  logger,
	}
}

// NewJWKSVerifier creates a verifier backed by a remote JWKS endpoint.
// Keys refresh in the background for the lifetime of ctx.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string, revoked RevocationList, logger *slog.Logger) (*SessionVerifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks: %w", err)
	}
	logger.Info("session verification via jwks", slog.String("url", jwksURL))
	return &SessionVerifier{
		keys:    keys,
		issuer:  issuer,
		revoked: revoked,
		logger:  logger,
	}, nil
}

// Verify resolves a raw credential to its external principal.
// Every failure mode collapses to ErrNoSession; callers treat that as
// anonymous, never as a fault.
func (v *SessionVerifier) Verify(ctx context.Context, rawCredential string) (*domain.ExternalPrincipal, error) {
	claims, err := v.VerifyClaims(ctx, rawCredential)
	if err != nil {
		return nil, err
	}

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return &domain.ExternalPrincipal{
		ExternalID: claims.Subject,
		IssuedAt:   issuedAt,
	}, nil
}

// VerifyClaims validates the credential and returns the full claims.
// Used directly by logout, which needs the token id and expiry.
func (v *SessionVerifier) VerifyClaims(ctx context.Context, rawCredential string) (*SessionClaims, error) {
	if rawCredential == "" {
		return nil, ErrNoSession
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(rawCredential, claims, v.keyFor)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrNoSession
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrNoSession
	}

	if v.revoked != nil && claims.ID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Fail closed: if the revocation list cannot be consulted,
			// the session is not trusted.
			v.logger.Warn("revocation check failed",
				slog.String("error", err.Error()),
			)
			return nil, ErrNoSession
		}
		if revoked {
			return nil, ErrNoSession
		}
	}

	return claims, nil
}

func (v *SessionVerifier) keyFor(token *jwt.Token) (interface{}, error) {
	if v.keys != nil {
		return v.keys.Keyfunc(token)
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}

// ExtractToken pulls the bearer token out of an Authorization header
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
