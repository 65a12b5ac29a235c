package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/identity"
	"github.com/yourorg/staybook/internal/observability/metrics"
)

// Revoker invalidates session tokens until their natural expiry
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// AuthService implements the built-in credential flow: it provisions
// external principals, signs session tokens for them, and revokes tokens
// on logout. Identity resolution itself never touches this service.
type AuthService struct {
	creds    domain.CredentialStore
	tokens   *identity.TokenManager
	revoker  Revoker
	resolver *identity.Resolver
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	creds domain.CredentialStore,
	tokens *identity.TokenManager,
	revoker Revoker,
	resolver *identity.Resolver,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		creds:    creds,
		tokens:   tokens,
		revoker:  revoker,
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterResult represents registration response
type RegisterResult struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// LoginResult represents login response
type LoginResult struct {
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
	TokenType string `json:"token_type"`
}

// Register creates a credential, provisions the internal user row, and
// returns a fresh session token
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (*RegisterResult, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	existing, err := s.creds.CredentialByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, errors.New("failed to register user")
	}

	cred := &domain.Credential{
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.creds.CreateCredential(ctx, cred); err != nil {
		s.logger.Error("failed to create credential", slog.String("error", err.Error()))
		return nil, errors.New("failed to register user")
	}

	user, err := s.creds.ProvisionUser(ctx, cred.ExternalID, email, firstName, lastName)
	if err != nil {
		s.logger.Error("failed to provision user", slog.String("error", err.Error()))
		return nil, errors.New("failed to register user")
	}

	token, _, err := s.tokens.Issue(cred.ExternalID, email)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, errors.New("failed to register user")
	}

	return &RegisterResult{
		UserID: user.ID,
		Email:  user.Email,
		Token:  token,
	}, nil
}

// Login authenticates a credential and returns a session token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	cred, err := s.creds.CredentialByEmail(ctx, email)
	if err != nil {
		s.logger.Info("login attempt with non-existent email", slog.String("email", email))
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("email", email))
		return nil, errors.New("invalid credentials")
	}

	token, _, err := s.tokens.Issue(cred.ExternalID, cred.Email)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, errors.New("failed to log in")
	}

	s.logger.Info("user logged in", slog.String("email", cred.Email))

	return &LoginResult{
		Email:     cred.Email,
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		TokenType: "Bearer",
	}, nil
}

// Logout revokes the presented session token and drops any cached identity
// for its principal
func (s *AuthService) Logout(ctx context.Context, claims *identity.SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}

	remaining := time.Duration(0)
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}

	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, claims.ID, remaining); err != nil {
			s.logger.Error("failed to revoke session",
				slog.String("token_id", claims.ID),
				slog.String("error", err.Error()),
			)
			return errors.New("failed to log out")
		}
	}

	if s.resolver != nil {
		s.resolver.Invalidate(claims.Subject)
	}

	metrics.ObserveSessionRevocation()
	return nil
}

// ChangePassword verifies the current password and replaces it
func (s *AuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if newPassword == "" || len(newPassword) < 8 {
		return errors.New("new password must be at least 8 characters")
	}

	cred, err := s.creds.CredentialByEmail(ctx, email)
	if err != nil {
		return errors.New("user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(oldPassword)); err != nil {
		return errors.New("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return errors.New("failed to change password")
	}

	if err := s.creds.UpdatePassword(ctx, cred.ExternalID, string(hash)); err != nil {
		s.logger.Error("failed to update password", slog.String("error", err.Error()))
		return errors.New("failed to change password")
	}

	s.logger.Info("user changed password", slog.String("email", email))
	return nil
}
