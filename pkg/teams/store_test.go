package teams

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
	"github.com/crewbase/crewbase/pkg/authz"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func teamRow(id int64, personal bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "owner_id", "is_personal", "is_active",
		"created_at", "updated_at",
	}).AddRow(id, "Acme", "", 1, personal, true, now, now)
}

func memberRow(id int64, memberType authz.MemberType, memberID int64, role authz.Role) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "team_id", "member_type", "member_id", "role", "status",
		"invited_by", "invited_at", "joined_at", "created_at", "updated_at",
	}).AddRow(id, 1, memberType, memberID, role, authz.StatusActive, nil, now, now, now, now)
}

func TestCreateTeam(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	team := &Team{Name: "Acme", OwnerID: 1}
	mock.ExpectQuery(`INSERT INTO teams`).
		WithArgs("Acme", "", int64(1), false, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(5, time.Now(), time.Now()))

	require.NoError(t, store.CreateTeam(context.Background(), team))
	assert.Equal(t, int64(5), team.ID)
	assert.True(t, team.IsActive)
}

func TestArchiveTeam(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("archives a regular team", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(teamRow(5, false))
		mock.ExpectExec(`UPDATE teams SET is_active = FALSE`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.ArchiveTeam(context.Background(), 5))
	})

	t.Run("refuses personal teams", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1`).
			WithArgs(int64(6)).
			WillReturnRows(teamRow(6, true))

		err := store.ArchiveTeam(context.Background(), 6)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("missing team", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM teams WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnError(sql.ErrNoRows)

		assert.True(t, apperr.IsNotFound(store.ArchiveTeam(context.Background(), 7)))
	})
}

func TestAddMember(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success defaults to active", func(t *testing.T) {
		invitedBy := int64(1)
		m := &TeamMember{
			TeamID:     1,
			MemberType: authz.MemberTypeUser,
			MemberID:   9,
			Role:       authz.RoleMember,
			InvitedBy:  &invitedBy,
		}
		now := time.Now()
		mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectQuery(`INSERT INTO team_members`).
			WithArgs(int64(1), authz.MemberTypeUser, int64(9), authz.RoleMember, authz.StatusActive, invitedBy).
			WillReturnRows(sqlmock.NewRows([]string{"id", "invited_at", "joined_at", "created_at", "updated_at"}).
				AddRow(3, now, now, now, now))

		require.NoError(t, store.AddMember(context.Background(), m))
		assert.Equal(t, int64(3), m.ID)
		assert.Equal(t, authz.StatusActive, m.Status)
	})

	t.Run("duplicate membership is a conflict", func(t *testing.T) {
		m := &TeamMember{TeamID: 1, MemberType: authz.MemberTypeUser, MemberID: 9, Role: authz.RoleMember}
		mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
		mock.ExpectQuery(`INSERT INTO team_members`).
			WillReturnError(&pq.Error{Code: "23505"})

		assert.True(t, apperr.IsConflict(store.AddMember(context.Background(), m)))
	})

	t.Run("missing referent", func(t *testing.T) {
		m := &TeamMember{TeamID: 1, MemberType: authz.MemberTypeOrganization, MemberID: 77, Role: authz.RoleViewer}
		mock.ExpectQuery(`SELECT 1 FROM organizations WHERE id = \$1 AND archived = FALSE`).
			WithArgs(int64(77)).
			WillReturnError(sql.ErrNoRows)

		assert.True(t, apperr.IsNotFound(store.AddMember(context.Background(), m)))
	})
}

func TestListTeamsForUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("hides archived by default", func(t *testing.T) {
		mock.ExpectQuery(`AND t\.is_active = TRUE ORDER BY t\.created_at ASC LIMIT \$2 OFFSET \$3`).
			WithArgs(int64(1), 50, 0).
			WillReturnRows(teamRow(5, false))

		list, err := store.ListTeamsForUser(context.Background(), 1, ListOptions{Limit: 50})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(5), list[0].ID)
	})

	t.Run("includes archived on request", func(t *testing.T) {
		mock.ExpectQuery(`OR tm\.id IS NOT NULL\)\s+ORDER BY t\.created_at ASC`).
			WithArgs(int64(1)).
			WillReturnRows(teamRow(5, false))

		_, err := store.ListTeamsForUser(context.Background(), 1, ListOptions{IncludeArchived: true})
		require.NoError(t, err)
	})
}

func TestCountActiveMembers(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM team_members`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountActiveMembers(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGetActiveUserMembership(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`FROM team_members\s+WHERE team_id = \$1 AND member_type = 'user'`).
			WithArgs(int64(1), int64(9)).
			WillReturnRows(memberRow(3, authz.MemberTypeUser, 9, authz.RoleViewer))

		m, err := store.GetActiveUserMembership(context.Background(), 1, 9)
		require.NoError(t, err)
		assert.Equal(t, authz.RoleViewer, m.Role)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`FROM team_members\s+WHERE team_id = \$1 AND member_type = 'user'`).
			WithArgs(int64(1), int64(10)).
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetActiveUserMembership(context.Background(), 1, 10)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestGetActiveOrganizationMembership(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("resolves through organization", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "team_id", "member_type", "member_id", "role", "status",
			"invited_by", "invited_at", "joined_at", "created_at", "updated_at",
			"org_id", "org_name", "org_type",
		}).AddRow(4, 1, authz.MemberTypeOrganization, 20, authz.RoleMember, authz.StatusActive,
			nil, now, now, now, now, 20, "Globex", authz.OrgTypeProvider)

		mock.ExpectQuery(`JOIN organization_members om`).
			WithArgs(int64(1), int64(9)).
			WillReturnRows(rows)

		om, err := store.GetActiveOrganizationMembership(context.Background(), 1, 9)
		require.NoError(t, err)
		assert.Equal(t, authz.RoleMember, om.Member.Role)
		assert.Equal(t, int64(20), om.OrgID)
		assert.Equal(t, authz.OrgTypeProvider, om.OrgType)
	})

	t.Run("no path", func(t *testing.T) {
		mock.ExpectQuery(`JOIN organization_members om`).
			WithArgs(int64(1), int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetActiveOrganizationMembership(context.Background(), 1, 99)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestListMembers(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "team_id", "member_type", "member_id", "role", "status",
		"invited_by", "invited_at", "joined_at", "created_at", "updated_at",
		"name", "email", "org_type",
	}).
		AddRow(1, 1, authz.MemberTypeUser, 9, authz.RoleAdmin, authz.StatusActive,
			nil, now, now, now, now, "Alice", "alice@example.com", "").
		AddRow(2, 1, authz.MemberTypeOrganization, 20, authz.RoleMember, authz.StatusActive,
			nil, now, now, now, now, "Globex", "", authz.OrgTypeClient)

	mock.ExpectQuery(`LEFT JOIN organizations o`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	members, err := store.ListMembers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].Name)
	assert.Equal(t, "alice@example.com", members[0].Email)
	assert.Equal(t, "Globex", members[1].Name)
	assert.Equal(t, authz.OrgTypeClient, members[1].OrgType)
}

func TestRemoveMember(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM team_members`).
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.RemoveMember(context.Background(), 1, 3))

	mock.ExpectExec(`DELETE FROM team_members`).
		WithArgs(int64(4), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, apperr.IsNotFound(store.RemoveMember(context.Background(), 1, 4)))
}
