// Package database holds the schema migrations for the service. Migrations
// are versioned, applied in order inside transactions, and tracked in a
// schema_migrations table so restarts are idempotent.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					hashed_password VARCHAR(255) NOT NULL,
					full_name VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					token_version INT NOT NULL DEFAULT 1,
					two_factor_secret VARCHAR(255),
					two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
					current_team_id BIGINT,
					timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
					last_active_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_email ON users(email);
			`,
		},
		{
			Version:     2,
			Description: "Create teams table",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					is_personal BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_teams_owner_id ON teams(owner_id);
				CREATE INDEX idx_teams_is_active ON teams(is_active);

				ALTER TABLE users
					ADD CONSTRAINT fk_users_current_team
					FOREIGN KEY (current_team_id) REFERENCES teams(id) ON DELETE SET NULL;
			`,
		},
		{
			Version:     3,
			Description: "Create organizations and extension tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					org_type VARCHAR(20) NOT NULL,
					email VARCHAR(255),
					phone VARCHAR(50),
					address TEXT,
					archived BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_org_type ON organizations(org_type);
				CREATE INDEX idx_organizations_archived ON organizations(archived);

				CREATE TABLE IF NOT EXISTS providers (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL UNIQUE REFERENCES organizations(id) ON DELETE CASCADE,
					services_offered JSONB NOT NULL DEFAULT '[]',
					capabilities JSONB NOT NULL DEFAULT '{}',
					certification_info TEXT,
					verified BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS clients (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL UNIQUE REFERENCES organizations(id) ON DELETE CASCADE,
					contract_number VARCHAR(255),
					billing_info JSONB NOT NULL DEFAULT '{}',
					payment_terms VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS guests (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL UNIQUE REFERENCES organizations(id) ON DELETE CASCADE,
					access_expires_at TIMESTAMP,
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					access_scope JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create organization_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_members (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL DEFAULT 'member',
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX idx_organization_members_org_id ON organization_members(organization_id);
				CREATE INDEX idx_organization_members_user_id ON organization_members(user_id);
			`,
		},
		{
			Version:     5,
			Description: "Create team_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS team_members (
					id BIGSERIAL PRIMARY KEY,
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					member_type VARCHAR(20) NOT NULL,
					member_id BIGINT NOT NULL,
					role VARCHAR(20) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					invited_at TIMESTAMP,
					joined_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(team_id, member_type, member_id)
				);

				CREATE INDEX idx_team_members_team_id ON team_members(team_id);
				CREATE INDEX idx_team_members_member ON team_members(member_type, member_id);
				CREATE INDEX idx_team_members_status ON team_members(status);
			`,
		},
		{
			Version:     6,
			Description: "Create password_resets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS password_resets (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					otp_hash VARCHAR(255) NOT NULL,
					otp_expires_at TIMESTAMP NOT NULL,
					otp_verified BOOLEAN NOT NULL DEFAULT FALSE,
					require_totp BOOLEAN NOT NULL DEFAULT FALSE,
					totp_verified BOOLEAN NOT NULL DEFAULT FALSE,
					reset_session_issued_at TIMESTAMP,
					consumed_at TIMESTAMP,
					attempts INT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_password_resets_email ON password_resets(email, consumed_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
