package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/apperr"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func userRows(u *User) *sqlmock.Rows {
	now := time.Now()
	var secret interface{}
	if u.TwoFactorSecret != "" {
		secret = u.TwoFactorSecret
	}
	var currentTeam interface{}
	if u.CurrentTeamID != nil {
		currentTeam = *u.CurrentTeamID
	}
	return sqlmock.NewRows([]string{
		"id", "email", "hashed_password", "full_name", "is_active", "token_version",
		"two_factor_secret", "two_factor_enabled", "current_team_id", "timezone",
		"last_active_at", "created_at", "updated_at",
	}).AddRow(u.ID, u.Email, u.HashedPassword, u.FullName, u.IsActive, u.TokenVersion,
		secret, u.TwoFactorEnabled, currentTeam, u.Timezone, nil, now, now)
}

func TestCreate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success sets defaults", func(t *testing.T) {
		u := &User{Email: "alice@example.com", HashedPassword: "hash", FullName: "Alice"}

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("alice@example.com", "hash", "Alice", true, 1, "UTC").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(7, time.Now(), time.Now()))

		require.NoError(t, store.Create(context.Background(), u))
		assert.Equal(t, int64(7), u.ID)
		assert.Equal(t, 1, u.TokenVersion)
		assert.True(t, u.IsActive)
		assert.Equal(t, "UTC", u.Timezone)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		u := &User{Email: "alice@example.com", HashedPassword: "hash"}

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.Create(context.Background(), u)
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestCreateWithPersonalTeam(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("commits user, team and pointer together", func(t *testing.T) {
		u := &User{Email: "alice@example.com", HashedPassword: "hash", FullName: "Alice"}
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("alice@example.com", "hash", "Alice", true, 1, "UTC").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(7, now, now))
		mock.ExpectQuery(`INSERT INTO teams`).
			WithArgs("Alice's Team", "", int64(7), true, true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(12, now, now))
		mock.ExpectExec(`UPDATE users SET current_team_id = \$1`).
			WithArgs(int64(12), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		team, err := store.CreateWithPersonalTeam(context.Background(), u, "Alice's Team")
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)
		assert.Equal(t, int64(12), team.ID)
		assert.True(t, team.IsPersonal)
		require.NotNil(t, u.CurrentTeamID)
		assert.Equal(t, team.ID, *u.CurrentTeamID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("team failure rolls the account back", func(t *testing.T) {
		u := &User{Email: "bob@example.com", HashedPassword: "hash", FullName: "Bob"}

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(8, time.Now(), time.Now()))
		mock.ExpectQuery(`INSERT INTO teams`).
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		_, err := store.CreateWithPersonalTeam(context.Background(), u, "Bob's Team")
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		u := &User{Email: "alice@example.com", HashedPassword: "hash", FullName: "Alice"}

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := store.CreateWithPersonalTeam(context.Background(), u, "Alice's Team")
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestGetByEmail(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("found", func(t *testing.T) {
		teamID := int64(3)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("bob@example.com").
			WillReturnRows(userRows(&User{
				ID: 2, Email: "bob@example.com", HashedPassword: "h", FullName: "Bob",
				IsActive: true, TokenVersion: 4, CurrentTeamID: &teamID,
				TwoFactorSecret: "SECRET", Timezone: "UTC",
			}))

		u, err := store.GetByEmail(context.Background(), "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(2), u.ID)
		assert.Equal(t, 4, u.TokenVersion)
		assert.Equal(t, "SECRET", u.TwoFactorSecret)
		require.NotNil(t, u.CurrentTeamID)
		assert.Equal(t, teamID, *u.CurrentTeamID)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetByEmail(context.Background(), "nobody@example.com")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestUpdatePassword(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("bumps token version atomically", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE users\s+SET hashed_password = \$1, token_version = token_version \+ 1`).
			WithArgs("newhash", int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(5))

		tv, err := store.UpdatePassword(context.Background(), 2, "newhash")
		require.NoError(t, err)
		assert.Equal(t, 5, tv)
	})

	t.Run("missing user", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE users`).
			WithArgs("newhash", int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := store.UpdatePassword(context.Background(), 99, "newhash")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestSetCurrentTeam(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	teamID := int64(12)
	mock.ExpectExec(`UPDATE users SET current_team_id = \$1`).
		WithArgs(teamID, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetCurrentTeam(context.Background(), 2, &teamID))
}

func TestTwoFactorUpdates(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	// Rotating the secret must drop the enabled flag in the same statement:
	// the new secret is unverified until the user proves a code from it.
	mock.ExpectExec(`UPDATE users SET two_factor_secret = \$1, two_factor_enabled = FALSE`).
		WithArgs("NEWSECRET", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetTwoFactorSecret(context.Background(), 2, "NEWSECRET"))

	mock.ExpectExec(`UPDATE users SET two_factor_enabled = TRUE`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.EnableTwoFactor(context.Background(), 2))

	mock.ExpectExec(`UPDATE users SET two_factor_enabled = TRUE`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, apperr.IsNotFound(store.EnableTwoFactor(context.Background(), 99)))
}
