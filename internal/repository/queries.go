package repository

// Both data-access strategies run exactly this SQL. Keeping the text in one
// place is what makes "bit-identical results regardless of strategy"
// enforceable.
const (
	queryUserByExternalID = `
		SELECT id, external_id, first_name, last_name, email, created_at, updated_at
		FROM users
		WHERE external_id = $1
	`

	queryProfileByUserID = `
		SELECT id, user_id, bio, phone, location, website,
		       COALESCE(avatar_image_id::text, ''),
		       COALESCE(cover_image_id::text, ''),
		       preferences, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	queryRolesByUserID = `
		SELECT r.id, r.name, r.display_name, r.description
		FROM roles r
		JOIN role_grants rg ON rg.role_id = r.id
		WHERE rg.user_id = $1
		ORDER BY r.name
	`

	// Permission aggregation happens in one place, server-side. Clients
	// never reconstruct the union from partial joins.
	queryEffectivePermissions = `
		SELECT permission FROM effective_permissions($1)
	`

	queryImageURLByID = `
		SELECT url FROM images WHERE id = $1
	`

	queryFavoriteListingIDs = `
		SELECT listing_id FROM favorites WHERE user_id = $1
	`

	queryListUsers = `
		SELECT id, external_id, first_name, last_name, email, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	queryHasPropertyOwnership = `
		SELECT EXISTS(SELECT 1 FROM property_ownerships WHERE user_id = $1)
	`

	queryHasActiveAssignment = `
		SELECT EXISTS(
			SELECT 1 FROM property_assignments
			WHERE user_id = $1 AND role = $2 AND status = 'active'
		)
	`

	queryHasReservation = `
		SELECT EXISTS(SELECT 1 FROM reservations WHERE user_id = $1)
	`

	queryCreateCredential = `
		INSERT INTO credentials (email, password_hash)
		VALUES ($1, $2)
		RETURNING external_id, created_at, updated_at
	`

	queryCredentialByEmail = `
		SELECT external_id, email, password_hash, created_at, updated_at
		FROM credentials
		WHERE email = $1
	`

	queryUpdatePassword = `
		UPDATE credentials
		SET password_hash = $1, updated_at = now()
		WHERE external_id = $2
	`

	queryInsertUser = `
		INSERT INTO users (external_id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, external_id, first_name, last_name, email, created_at, updated_at
	`

	queryGrantDefaultRole = `
		INSERT INTO role_grants (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = 'user'
		ON CONFLICT DO NOTHING
	`
)
