package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/staybook/internal/domain"
)

// PostgresStore implements the identity, PMS and credential stores on a
// pooled database/sql connection (the direct-pool strategy).
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a direct-pool store
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// UserByExternalID maps an external principal to the internal user record.
// A missing row is a normal not-yet-provisioned state, reported as (nil, nil).
func (s *PostgresStore) UserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	user := &domain.User{}

	err := s.db.QueryRowContext(ctx, queryUserByExternalID, externalID).Scan(
		&user.ID,
		&user.ExternalID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
func (s *PostgresStore) ProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	profile := &domain.Profile{}

	err := s.db.QueryRowContext(ctx, queryProfileByUserID, userID).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return profile, nil
}

// RolesByUserID returns all roles granted to a user
func (s *PostgresStore) RolesByUserID(ctx context.Context, userID string) ([]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx, queryRolesByUserID, userID)
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
func (s *PostgresStore) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryEffectivePermissions, userID)
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

// ImageURLByID resolves an image id to its URL. A missing image resolves to
// an empty URL rather than an error.
func (s *PostgresStore) ImageURLByID(ctx context.Context, imageID string) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, queryImageURLByID, imageID).Scan(&url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve image url: %w", err)
	}
	return url, nil
}

// FavoriteListingIDs returns the ids of listings the user has favorited
func (s *PostgresStore) FavoriteListingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryFavoriteListingIDs, userID)
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
func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, queryListUsers, limit, offset)
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
func (s *PostgresStore) HasPropertyOwnership(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queryHasPropertyOwnership, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return exists, nil
}

// HasActiveAssignment reports whether an active assignment with the given
// role exists for the user
func (s *PostgresStore) HasActiveAssignment(ctx context.Context, userID, role string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queryHasActiveAssignment, userID, role).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

// HasReservation reports whether any reservation exists for the user
func (s *PostgresStore) HasReservation(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queryHasReservation, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return exists, nil
}

// CreateCredential stores a new login credential
func (s *PostgresStore) CreateCredential(ctx context.Context, cred *domain.Credential) error {
	err := s.db.QueryRowContext(ctx, queryCreateCredential, cred.Email, cred.PasswordHash).
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
func (s *PostgresStore) CredentialByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	cred := &domain.Credential{}

	err := s.db.QueryRowContext(ctx, queryCredentialByEmail, email).Scan(
		&cred.ExternalID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential not found")
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	return cred, nil
}

// UpdatePassword replaces the password hash for a credential
func (s *PostgresStore) UpdatePassword(ctx context.Context, externalID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, queryUpdatePassword, passwordHash, externalID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential not found")
	}

	return nil
}

// ProvisionUser creates the internal user row for an external principal and
// grants the default role, atomically
func (s *PostgresStore) ProvisionUser(ctx context.Context, externalID, email, firstName, lastName string) (*domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	user := &domain.User{}
	err = tx.QueryRowContext(ctx, queryInsertUser, externalID, email, firstName, lastName).Scan(
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

	if _, err := tx.ExecContext(ctx, queryGrantDefaultRole, user.ID); err != nil {
		return nil, fmt.Errorf("failed to grant default role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return user, nil
}
