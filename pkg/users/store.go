package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/teams"
)

const userColumns = `id, email, hashed_password, full_name, is_active, token_version,
	       two_factor_secret, two_factor_enabled, current_team_id, timezone,
	       last_active_at, created_at, updated_at`

// PostgresStore implements user persistence over PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new user. The token version starts at 1 so freshly issued
// tokens verify without a prior password change. Email uniqueness violations
// surface as a conflict.
func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	u.IsActive = true
	u.TokenVersion = 1

	query := `
		INSERT INTO users (email, hashed_password, full_name, is_active, token_version, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		u.Email, u.HashedPassword, u.FullName, u.IsActive, u.TokenVersion, u.Timezone).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("email already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateWithPersonalTeam creates the account, its personal team and the
// current-team pointer as one atomic unit. The pointer is patched after the
// team insert because the rows reference each other; a failure at any step
// rolls back the whole registration.
func (s *PostgresStore) CreateWithPersonalTeam(ctx context.Context, u *User, teamName string) (*teams.Team, error) {
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	u.IsActive = true
	u.TokenVersion = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback()

	insertUser := `
		INSERT INTO users (email, hashed_password, full_name, is_active, token_version, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertUser,
		u.Email, u.HashedPassword, u.FullName, u.IsActive, u.TokenVersion, u.Timezone).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("email already registered")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	team := &teams.Team{Name: teamName, OwnerID: u.ID, IsPersonal: true, IsActive: true}
	insertTeam := `
		INSERT INTO teams (name, description, owner_id, is_personal, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertTeam,
		team.Name, team.Description, team.OwnerID, team.IsPersonal, team.IsActive).
		Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create personal team: %w", err)
	}

	patch := `UPDATE users SET current_team_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, patch, team.ID, u.ID); err != nil {
		return nil, fmt.Errorf("failed to set current team: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}
	u.CurrentTeamID = &team.ID
	return team, nil
}

// GetByID retrieves a user by ID.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

// SetCurrentTeam points the user at a team. Pass nil to clear.
func (s *PostgresStore) SetCurrentTeam(ctx context.Context, userID int64, teamID *int64) error {
	query := `UPDATE users SET current_team_id = $1, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, query, teamID, userID)
}

// UpdatePassword replaces the password hash and bumps the token version in
// the same statement. Every session issued before this call is dead once it
// returns.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) (int, error) {
	query := `
		UPDATE users
		SET hashed_password = $1, token_version = token_version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING token_version
	`
	var tv int
	err := s.db.QueryRowContext(ctx, query, hashedPassword, userID).Scan(&tv)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("user %d not found", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update password: %w", err)
	}
	return tv, nil
}

// SetTwoFactorSecret stores a provisioned TOTP secret and disables two-factor
// in the same statement. A rotated secret is unverified until the user proves
// a code from it, so the flag must not survive the rotation.
func (s *PostgresStore) SetTwoFactorSecret(ctx context.Context, userID int64, secret string) error {
	query := `UPDATE users SET two_factor_secret = $1, two_factor_enabled = FALSE, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, query, secret, userID)
}

// EnableTwoFactor flips the two-factor flag on.
func (s *PostgresStore) EnableTwoFactor(ctx context.Context, userID int64) error {
	query := `UPDATE users SET two_factor_enabled = TRUE, updated_at = NOW() WHERE id = $1`
	return s.execOne(ctx, query, userID)
}

// TouchLastActive records activity. Best effort from callers' point of view;
// errors still surface so the middleware can log them.
func (s *PostgresStore) TouchLastActive(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_active_at = NOW() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to touch last_active_at: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*User, error) {
	u := &User{}
	var secret sql.NullString
	var currentTeam sql.NullInt64
	var lastActive sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.IsActive, &u.TokenVersion,
		&secret, &u.TwoFactorEnabled, &currentTeam, &u.Timezone,
		&lastActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.TwoFactorSecret = secret.String
	if currentTeam.Valid {
		u.CurrentTeamID = &currentTeam.Int64
	}
	if lastActive.Valid {
		u.LastActiveAt = &lastActive.Time
	}
	return u, nil
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
