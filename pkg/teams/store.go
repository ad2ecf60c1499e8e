package teams

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/authz"
)

const teamColumns = `id, name, description, owner_id, is_personal, is_active, created_at, updated_at`

const memberColumns = `id, team_id, member_type, member_id, role, status,
	       invited_by, invited_at, joined_at, created_at, updated_at`

// PostgresStore implements team persistence over PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateTeam inserts a new team.
func (s *PostgresStore) CreateTeam(ctx context.Context, t *Team) error {
	t.IsActive = true
	query := `
		INSERT INTO teams (name, description, owner_id, is_personal, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.OwnerID, t.IsPersonal, t.IsActive).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// GetTeam retrieves a team by ID, archived teams included. Callers that only
// want live teams check IsActive themselves.
func (s *PostgresStore) GetTeam(ctx context.Context, id int64) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	t := &Team{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.OwnerID, &t.IsPersonal, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("team %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// ListOptions controls team listing. Archived teams are hidden unless
// IncludeArchived is set; Limit of 0 means no page bound.
type ListOptions struct {
	IncludeArchived bool
	Limit           int
	Skip            int
}

// ListTeamsForUser returns the teams the user can see: teams they own plus
// teams where they hold an active direct membership.
func (s *PostgresStore) ListTeamsForUser(ctx context.Context, userID int64, opts ListOptions) ([]*Team, error) {
	query := `
		SELECT DISTINCT t.id, t.name, t.description, t.owner_id, t.is_personal, t.is_active,
		       t.created_at, t.updated_at
		FROM teams t
		LEFT JOIN team_members tm
		       ON tm.team_id = t.id AND tm.member_type = 'user'
		      AND tm.member_id = $1 AND tm.status = 'active'
		WHERE (t.owner_id = $1 OR tm.id IS NOT NULL)
	`
	if !opts.IncludeArchived {
		query += ` AND t.is_active = TRUE`
	}
	query += ` ORDER BY t.created_at ASC`
	args := []interface{}{userID}
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Skip)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t := &Team{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.OwnerID, &t.IsPersonal,
			&t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// UpdateTeam updates mutable team fields.
func (s *PostgresStore) UpdateTeam(ctx context.Context, t *Team) error {
	query := `
		UPDATE teams SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query, t.Name, t.Description, t.ID).Scan(&t.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperr.NotFound("team %d not found", t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

// ArchiveTeam soft-deletes a team. Personal teams are refused: they anchor
// the owner's account and must outlive every other workspace.
func (s *PostgresStore) ArchiveTeam(ctx context.Context, id int64) error {
	t, err := s.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	if t.IsPersonal {
		return apperr.Conflict("personal teams cannot be archived")
	}

	query := `UPDATE teams SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to archive team: %w", err)
	}
	return nil
}

// AddMember inserts a membership row. The referent must exist; the check is
// dispatched on member_type because the column cannot carry a foreign key to
// two tables. A second row for the same (team, member_type, member_id) is a
// conflict.
func (s *PostgresStore) AddMember(ctx context.Context, m *TeamMember) error {
	if m.Status == "" {
		m.Status = authz.StatusActive
	}
	if err := s.checkReferent(ctx, m.MemberType, m.MemberID); err != nil {
		return err
	}
	query := `
		INSERT INTO team_members (team_id, member_type, member_id, role, status, invited_by, invited_at, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, invited_at, joined_at, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		m.TeamID, m.MemberType, m.MemberID, m.Role, m.Status, m.InvitedBy).
		Scan(&m.ID, &m.InvitedAt, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("member already on team")
	}
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// GetMember retrieves a membership row by its ID within a team.
func (s *PostgresStore) GetMember(ctx context.Context, teamID, memberRowID int64) (*TeamMember, error) {
	query := `SELECT ` + memberColumns + ` FROM team_members WHERE id = $1 AND team_id = $2`
	return s.scanMember(s.db.QueryRowContext(ctx, query, memberRowID, teamID))
}

// UpdateMemberRole changes a member's role.
func (s *PostgresStore) UpdateMemberRole(ctx context.Context, teamID, memberRowID int64, role authz.Role) (*TeamMember, error) {
	query := `
		UPDATE team_members SET role = $1, updated_at = NOW()
		WHERE id = $2 AND team_id = $3
		RETURNING ` + memberColumns
	return s.scanMember(s.db.QueryRowContext(ctx, query, role, memberRowID, teamID))
}

// RemoveMember deletes a membership row.
func (s *PostgresStore) RemoveMember(ctx context.Context, teamID, memberRowID int64) error {
	query := `DELETE FROM team_members WHERE id = $1 AND team_id = $2`
	res, err := s.db.ExecContext(ctx, query, memberRowID, teamID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check removal result: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("team member %d not found", memberRowID)
	}
	return nil
}

// ListMembers returns the team's membership rows joined with their referents'
// display fields, users and organizations alike.
func (s *PostgresStore) ListMembers(ctx context.Context, teamID int64) ([]*MemberDetail, error) {
	query := `
		SELECT tm.id, tm.team_id, tm.member_type, tm.member_id, tm.role, tm.status,
		       tm.invited_by, tm.invited_at, tm.joined_at, tm.created_at, tm.updated_at,
		       COALESCE(u.full_name, o.name, '') AS name,
		       COALESCE(u.email, '') AS email,
		       COALESCE(o.org_type, '') AS org_type
		FROM team_members tm
		LEFT JOIN users u ON tm.member_type = 'user' AND u.id = tm.member_id
		LEFT JOIN organizations o ON tm.member_type = 'organization' AND o.id = tm.member_id
		WHERE tm.team_id = $1
		ORDER BY tm.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var members []*MemberDetail
	for rows.Next() {
		d := &MemberDetail{}
		var invitedBy sql.NullInt64
		var invitedAt, joinedAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.TeamID, &d.MemberType, &d.MemberID, &d.Role, &d.Status,
			&invitedBy, &invitedAt, &joinedAt, &d.CreatedAt, &d.UpdatedAt,
			&d.Name, &d.Email, &d.OrgType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		assignNullables(&d.TeamMember, invitedBy, invitedAt, joinedAt)
		members = append(members, d)
	}
	return members, rows.Err()
}

// GetActiveUserMembership returns the user's active direct membership on the
// team, or a not-found error when there is none.
func (s *PostgresStore) GetActiveUserMembership(ctx context.Context, teamID, userID int64) (*TeamMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM team_members
		WHERE team_id = $1 AND member_type = 'user' AND member_id = $2 AND status = 'active'
	`
	return s.scanMember(s.db.QueryRowContext(ctx, query, teamID, userID))
}

// OrgMembership is an indirect access path: the team's organization
// membership row plus the organization the user reached it through.
type OrgMembership struct {
	Member  *TeamMember
	OrgID   int64
	OrgName string
	OrgType authz.OrgType
}

// GetActiveOrganizationMembership finds the first organization that is an
// active member of the team and counts the user among its active members.
// Deterministic order: oldest team membership row wins.
func (s *PostgresStore) GetActiveOrganizationMembership(ctx context.Context, teamID, userID int64) (*OrgMembership, error) {
	query := `
		SELECT tm.id, tm.team_id, tm.member_type, tm.member_id, tm.role, tm.status,
		       tm.invited_by, tm.invited_at, tm.joined_at, tm.created_at, tm.updated_at,
		       o.id, o.name, o.org_type
		FROM team_members tm
		JOIN organizations o ON o.id = tm.member_id
		JOIN organization_members om ON om.organization_id = o.id
		WHERE tm.team_id = $1 AND tm.member_type = 'organization' AND tm.status = 'active'
		  AND om.user_id = $2 AND om.status = 'active'
		ORDER BY tm.created_at ASC
		LIMIT 1
	`
	m := &TeamMember{}
	om := &OrgMembership{Member: m}
	var invitedBy sql.NullInt64
	var invitedAt, joinedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, teamID, userID).Scan(
		&m.ID, &m.TeamID, &m.MemberType, &m.MemberID, &m.Role, &m.Status,
		&invitedBy, &invitedAt, &joinedAt, &m.CreatedAt, &m.UpdatedAt,
		&om.OrgID, &om.OrgName, &om.OrgType,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no organization membership on team")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organization membership: %w", err)
	}
	assignNullables(m, invitedBy, invitedAt, joinedAt)
	return om, nil
}

// CountActiveMembers returns the number of active membership rows, the
// implicit owner excluded.
func (s *PostgresStore) CountActiveMembers(ctx context.Context, teamID int64) (int, error) {
	query := `SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND status = 'active'`
	var n int
	if err := s.db.QueryRowContext(ctx, query, teamID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) checkReferent(ctx context.Context, memberType authz.MemberType, memberID int64) error {
	var query string
	switch memberType {
	case authz.MemberTypeUser:
		query = `SELECT 1 FROM users WHERE id = $1`
	case authz.MemberTypeOrganization:
		query = `SELECT 1 FROM organizations WHERE id = $1 AND archived = FALSE`
	default:
		return apperr.Validation("unknown member type %q", memberType)
	}
	var one int
	err := s.db.QueryRowContext(ctx, query, memberID).Scan(&one)
	if err == sql.ErrNoRows {
		return apperr.NotFound("%s %d not found", memberType, memberID)
	}
	if err != nil {
		return fmt.Errorf("failed to check member referent: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanMember(row *sql.Row) (*TeamMember, error) {
	m := &TeamMember{}
	var invitedBy sql.NullInt64
	var invitedAt, joinedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.TeamID, &m.MemberType, &m.MemberID, &m.Role, &m.Status,
		&invitedBy, &invitedAt, &joinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("team member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	assignNullables(m, invitedBy, invitedAt, joinedAt)
	return m, nil
}

func assignNullables(m *TeamMember, invitedBy sql.NullInt64, invitedAt, joinedAt sql.NullTime) {
	if invitedBy.Valid {
		m.InvitedBy = &invitedBy.Int64
	}
	if invitedAt.Valid {
		m.InvitedAt = &invitedAt.Time
	}
	if joinedAt.Valid {
		m.JoinedAt = &joinedAt.Time
	}
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
