package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourorg/staybook/internal/domain"
)

// PGXStore implements the identity, PMS and credential stores on a pgx
// client pool (the client strategy). It runs the same SQL as PostgresStore;
// only connection handling differs, never semantics.
type PGXStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGXStore creates a client-strategy store
func NewPGXStore(pool *pgxpool.Pool, logger *slog.Logger) *PGXStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PGXStore{
		pool:   pool,
		logger: logger,
	}
}

// UserByExternalID maps an external principal to the internal user record.
// A missing row is reported as (nil, nil), same as the direct-pool store.
func (s *PGXStore) UserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	user := &domain.User{}

	err := s.pool.QueryRow(ctx, queryUserByExternalID, externalID).Scan(
		&user.ID,
		&user.ExternalID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		s.logger.Error("failed to load user by external id",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return user, nil
}

// ProfileByUserID returns the user's profile, or (nil, nil) when none exists
func (s *PGXStore) ProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	profile := &domain.Profile{}

	err := s.pool.QueryRow(ctx, queryProfileByUserID, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Bio,
		&profile.Phone,
		&profile.Location,
		&profile.Website,
		&profile.AvatarImageID,
		&profile.CoverImageID,
		&profile.Preferences,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return profile, nil
}

// RolesByUserID returns all roles granted to a user
func (s *PGXStore) RolesByUserID(ctx context.Context, userID string) ([]domain.Role, error) {
	rows, err := s.pool.Query(ctx, queryRolesByUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// EffectivePermissions runs the server-side permission aggregation
func (s *PGXStore) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, queryEffectivePermissions, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}

	return perms, rows.Err()
}

// ImageURLByID resolves an image id to its URL; missing images resolve to ""
func (s *PGXStore) ImageURLByID(ctx context.Context, imageID string) (string, error) {
	var url string
	err := s.pool.QueryRow(ctx, queryImageURLByID, imageID).Scan(&url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve image url: %w", err)
	}
	return url, nil
}

// FavoriteListingIDs returns the ids of listings the user has favorited
func (s *PGXStore) FavoriteListingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, queryFavoriteListingIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListUsers returns a page of users ordered by creation time
func (s *PGXStore) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := s.pool.Query(ctx, queryListUsers, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		err := rows.Scan(
			&user.ID,
			&user.ExternalID,
			&user.FirstName,
			&user.LastName,
			&user.Email,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// HasPropertyOwnership reports whether any ownership row exists for the user
func (s *PGXStore) HasPropertyOwnership(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryHasPropertyOwnership, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return exists, nil
}

// HasActiveAssignment reports whether an active assignment with the given
// role exists for the user
func (s *PGXStore) HasActiveAssignment(ctx context.Context, userID, role string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryHasActiveAssignment, userID, role).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

// HasReservation reports whether any reservation exists for the user
func (s *PGXStore) HasReservation(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryHasReservation, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return exists, nil
}

// CreateCredential stores a new login credential
func (s *PGXStore) CreateCredential(ctx context.Context, cred *domain.Credential) error {
	err := s.pool.QueryRow(ctx, queryCreateCredential, cred.Email, cred.PasswordHash).
		Scan(&cred.ExternalID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		s.logger.Error("failed to create credential",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// CredentialByEmail loads a credential by email
func (s *PGXStore) CredentialByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	cred := &domain.Credential{}

	err := s.pool.QueryRow(ctx, queryCredentialByEmail, email).Scan(
		&cred.ExternalID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("credential not found")
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	return cred, nil
}

// UpdatePassword replaces the password hash for a credential
func (s *PGXStore) UpdatePassword(ctx context.Context, externalID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, queryUpdatePassword, passwordHash, externalID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credential not found")
	}
	return nil
}

// ProvisionUser creates the internal user row for an external principal and
// grants the default role, atomically
func (s *PGXStore) ProvisionUser(ctx context.Context, externalID, email, firstName, lastName string) (*domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	user := &domain.User{}
	err = tx.QueryRow(ctx, queryInsertUser, externalID, email, firstName, lastName).Scan(
		&user.ID,
		&user.ExternalID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if _, err := tx.Exec(ctx, queryGrantDefaultRole, user.ID); err != nil {
		return nil, fmt.Errorf("failed to grant default role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return user, nil
}
