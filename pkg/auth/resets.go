package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crewbase/crewbase/pkg/apperr"
)

// PasswordReset is one pass through the reset state machine. The record
// advances started -> otp verified -> reset issued -> consumed; a consumed
// record is inert.
type PasswordReset struct {
	ID           int64
	UserID       *int64
	Email        string
	OTPHash      string
	OTPExpiresAt time.Time
	OTPVerified  bool

	RequireTOTP  bool
	TOTPVerified bool

	ResetSessionIssuedAt *time.Time
	ConsumedAt           *time.Time

	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostgresResetStore persists password-reset records.
type PostgresResetStore struct {
	db *sql.DB
}

// NewPostgresResetStore creates a new PostgresResetStore.
func NewPostgresResetStore(db *sql.DB) *PostgresResetStore {
	return &PostgresResetStore{db: db}
}

// Create inserts a started record.
func (s *PostgresResetStore) Create(ctx context.Context, r *PasswordReset) error {
	query := `
		INSERT INTO password_resets (user_id, email, otp_hash, otp_expires_at, require_totp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		r.UserID, r.Email, r.OTPHash, r.OTPExpiresAt, r.RequireTOTP).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

// GetLatestUnconsumed returns the most recent unconsumed record for the
// email. Earlier unconsumed records are ignored, matching "latest attempt
// wins".
func (s *PostgresResetStore) GetLatestUnconsumed(ctx context.Context, email string) (*PasswordReset, error) {
	query := `
		SELECT id, user_id, email, otp_hash, otp_expires_at, otp_verified,
		       require_totp, totp_verified, reset_session_issued_at, consumed_at,
		       attempts, created_at, updated_at
		FROM password_resets
		WHERE email = $1 AND consumed_at IS NULL
		ORDER BY id DESC
		LIMIT 1
	`
	r := &PasswordReset{}
	var userID sql.NullInt64
	var issuedAt, consumedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&r.ID, &userID, &r.Email, &r.OTPHash, &r.OTPExpiresAt, &r.OTPVerified,
		&r.RequireTOTP, &r.TOTPVerified, &issuedAt, &consumedAt,
		&r.Attempts, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no pending password reset")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get password reset: %w", err)
	}
	if userID.Valid {
		r.UserID = &userID.Int64
	}
	if issuedAt.Valid {
		r.ResetSessionIssuedAt = &issuedAt.Time
	}
	if consumedAt.Valid {
		r.ConsumedAt = &consumedAt.Time
	}
	return r, nil
}

// IncrementAttempts records a failed verification.
func (s *PostgresResetStore) IncrementAttempts(ctx context.Context, id int64) error {
	query := `UPDATE password_resets SET attempts = attempts + 1, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment reset attempts: %w", err)
	}
	return nil
}

// MarkVerified stamps a successful verification and the reset-session
// issuance in one update.
func (s *PostgresResetStore) MarkVerified(ctx context.Context, id int64, totpVerified bool) error {
	query := `
		UPDATE password_resets
		SET otp_verified = TRUE, totp_verified = $1, reset_session_issued_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, totpVerified, id); err != nil {
		return fmt.Errorf("failed to mark reset verified: %w", err)
	}
	return nil
}

// ConsumeLatest marks the user's most recent unconsumed record consumed.
// No-op when nothing is pending.
func (s *PostgresResetStore) ConsumeLatest(ctx context.Context, userID int64) error {
	query := `
		UPDATE password_resets SET consumed_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM password_resets
			WHERE user_id = $1 AND consumed_at IS NULL
			ORDER BY id DESC
			LIMIT 1
		)
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to consume password reset: %w", err)
	}
	return nil
}
