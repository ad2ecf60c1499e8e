package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/authz"
)

// PostgresStore implements organization persistence over PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateOrganization inserts the organization, its type-specific extension
// record and the creator's admin membership as one transaction. Any failure
// rolls all three back.
func (s *PostgresStore) CreateOrganization(ctx context.Context, org *Organization, creatorID int64) error {
	if !org.OrgType.Valid() {
		return apperr.Validation("unknown organization type %q", org.OrgType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO organizations (name, org_type, email, phone, address, archived)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		org.Name, org.OrgType, org.Email, org.Phone, org.Address).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	if err := s.createExtension(ctx, tx, org); err != nil {
		return err
	}

	memberQuery := `
		INSERT INTO organization_members (organization_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.ExecContext(ctx, memberQuery,
		org.ID, creatorID, authz.OrgRoleAdmin, authz.StatusActive); err != nil {
		return fmt.Errorf("failed to create admin membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) createExtension(ctx context.Context, tx *sql.Tx, org *Organization) error {
	switch org.OrgType {
	case authz.OrgTypeProvider:
		p := org.Provider
		if p == nil {
			p = &Provider{}
			org.Provider = p
		}
		services, err := json.Marshal(p.ServicesOffered)
		if err != nil {
			return fmt.Errorf("failed to marshal services: %w", err)
		}
		capabilities, err := json.Marshal(p.Capabilities)
		if err != nil {
			return fmt.Errorf("failed to marshal capabilities: %w", err)
		}
		query := `
			INSERT INTO providers (organization_id, services_offered, capabilities, certification_info, verified)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, query,
			org.ID, services, capabilities, p.CertificationInfo, p.Verified).
			Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create provider record: %w", err)
		}
		p.OrganizationID = org.ID

	case authz.OrgTypeClient:
		c := org.Client
		if c == nil {
			c = &Client{}
			org.Client = c
		}
		billing, err := json.Marshal(c.BillingInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal billing info: %w", err)
		}
		query := `
			INSERT INTO clients (organization_id, contract_number, billing_info, payment_terms)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, query,
			org.ID, c.ContractNumber, billing, c.PaymentTerms).
			Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create client record: %w", err)
		}
		c.OrganizationID = org.ID

	case authz.OrgTypeGuest:
		g := org.Guest
		if g == nil {
			g = &Guest{}
			org.Guest = g
		}
		scope, err := json.Marshal(g.AccessScope)
		if err != nil {
			return fmt.Errorf("failed to marshal access scope: %w", err)
		}
		query := `
			INSERT INTO guests (organization_id, access_expires_at, invited_by, access_scope)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, query,
			org.ID, g.AccessExpiresAt, g.InvitedBy, scope).
			Scan(&g.ID, &g.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create guest record: %w", err)
		}
		g.OrganizationID = org.ID
	}
	return nil
}

// GetOrganization retrieves an organization with its extension record.
func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `
		SELECT id, name, org_type, email, phone, address, archived, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	var email, phone, address sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.OrgType, &email, &phone, &address,
		&org.Archived, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.Email = email.String
	org.Phone = phone.String
	org.Address = address.String

	if err := s.loadExtension(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *PostgresStore) loadExtension(ctx context.Context, org *Organization) error {
	switch org.OrgType {
	case authz.OrgTypeProvider:
		query := `
			SELECT id, organization_id, services_offered, capabilities, certification_info, verified, created_at
			FROM providers WHERE organization_id = $1
		`
		p := &Provider{}
		var services, capabilities []byte
		var cert sql.NullString
		err := s.db.QueryRowContext(ctx, query, org.ID).Scan(
			&p.ID, &p.OrganizationID, &services, &capabilities, &cert, &p.Verified, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to load provider record: %w", err)
		}
		p.CertificationInfo = cert.String
		if err := unmarshalInto(services, &p.ServicesOffered); err != nil {
			return err
		}
		if err := unmarshalInto(capabilities, &p.Capabilities); err != nil {
			return err
		}
		org.Provider = p

	case authz.OrgTypeClient:
		query := `
			SELECT id, organization_id, contract_number, billing_info, payment_terms, created_at
			FROM clients WHERE organization_id = $1
		`
		c := &Client{}
		var billing []byte
		var contract, terms sql.NullString
		err := s.db.QueryRowContext(ctx, query, org.ID).Scan(
			&c.ID, &c.OrganizationID, &contract, &billing, &terms, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to load client record: %w", err)
		}
		c.ContractNumber = contract.String
		c.PaymentTerms = terms.String
		if err := unmarshalInto(billing, &c.BillingInfo); err != nil {
			return err
		}
		org.Client = c

	case authz.OrgTypeGuest:
		query := `
			SELECT id, organization_id, access_expires_at, invited_by, access_scope, created_at
			FROM guests WHERE organization_id = $1
		`
		g := &Guest{}
		var scope []byte
		var expires sql.NullTime
		var invitedBy sql.NullInt64
		err := s.db.QueryRowContext(ctx, query, org.ID).Scan(
			&g.ID, &g.OrganizationID, &expires, &invitedBy, &scope, &g.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to load guest record: %w", err)
		}
		if expires.Valid {
			g.AccessExpiresAt = &expires.Time
		}
		if invitedBy.Valid {
			g.InvitedBy = &invitedBy.Int64
		}
		if err := unmarshalInto(scope, &g.AccessScope); err != nil {
			return err
		}
		org.Guest = g
	}
	return nil
}

func unmarshalInto(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal extension field: %w", err)
	}
	return nil
}

// ListFilter narrows organization listings. The zero value lists every
// non-archived organization.
type ListFilter struct {
	OrgType         authz.OrgType
	IncludeArchived bool
}

// ListOrganizations returns organizations matching the filter.
func (s *PostgresStore) ListOrganizations(ctx context.Context, filter ListFilter) ([]*Organization, error) {
	query := `
		SELECT id, name, org_type, email, phone, address, archived, created_at, updated_at
		FROM organizations
		WHERE 1=1
	`
	var args []interface{}
	if !filter.IncludeArchived {
		query += ` AND archived = FALSE`
	}
	if filter.OrgType != "" {
		args = append(args, filter.OrgType)
		query += fmt.Sprintf(` AND org_type = $%d`, len(args))
	}
	query += ` ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []*Organization
	for rows.Next() {
		org := &Organization{}
		var email, phone, address sql.NullString
		if err := rows.Scan(&org.ID, &org.Name, &org.OrgType, &email, &phone, &address,
			&org.Archived, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		org.Email = email.String
		org.Phone = phone.String
		org.Address = address.String
		out = append(out, org)
	}
	return out, rows.Err()
}

// UpdateOrganization updates contact fields. The type is immutable.
func (s *PostgresStore) UpdateOrganization(ctx context.Context, org *Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, email = $2, phone = $3, address = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		org.Name, org.Email, org.Phone, org.Address, org.ID).Scan(&org.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperr.NotFound("organization %d not found", org.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

// ArchiveOrganization soft-deletes an organization.
func (s *PostgresStore) ArchiveOrganization(ctx context.Context, id int64) error {
	query := `UPDATE organizations SET archived = TRUE, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to archive organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check archive result: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("organization %d not found", id)
	}
	return nil
}

// AddMember inserts a membership row. A second row for the same user in the
// same organization is a conflict.
func (s *PostgresStore) AddMember(ctx context.Context, m *Member) error {
	if m.Role == "" {
		m.Role = authz.OrgRoleMember
	}
	if m.Status == "" {
		m.Status = authz.StatusActive
	}
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, joined_at
	`
	err := s.db.QueryRowContext(ctx, query,
		m.OrganizationID, m.UserID, m.Role, m.Status).Scan(&m.ID, &m.JoinedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("user already a member of organization")
	}
	if err != nil {
		return fmt.Errorf("failed to add organization member: %w", err)
	}
	return nil
}

// GetMembership returns the user's membership in the organization.
func (s *PostgresStore) GetMembership(ctx context.Context, orgID, userID int64) (*Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, joined_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`
	m := &Member{}
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization membership not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization membership: %w", err)
	}
	return m, nil
}

// ListMembers returns the organization's membership rows joined with user
// display fields.
func (s *PostgresStore) ListMembers(ctx context.Context, orgID int64) ([]*MemberDetail, error) {
	query := `
		SELECT om.id, om.organization_id, om.user_id, om.role, om.status, om.joined_at,
		       u.email, u.full_name
		FROM organization_members om
		JOIN users u ON u.id = om.user_id
		WHERE om.organization_id = $1
		ORDER BY om.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	defer rows.Close()

	var members []*MemberDetail
	for rows.Next() {
		d := &MemberDetail{}
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.UserID, &d.Role, &d.Status,
			&d.JoinedAt, &d.Email, &d.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan organization member: %w", err)
		}
		members = append(members, d)
	}
	return members, rows.Err()
}

// UpdateMemberRole changes a member's role. Demoting the last active admin
// is refused; the check runs under row locks in the same transaction as the
// update so concurrent demotions cannot both pass it.
func (s *PostgresStore) UpdateMemberRole(ctx context.Context, orgID, memberRowID int64, role authz.OrgRole) error {
	if !role.Valid() {
		return apperr.Validation("unknown organization role %q", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := lockMember(ctx, tx, orgID, memberRowID)
	if err != nil {
		return err
	}

	if target.Role == authz.OrgRoleAdmin && role != authz.OrgRoleAdmin {
		if err := requireAnotherAdmin(ctx, tx, orgID, memberRowID); err != nil {
			return err
		}
	}

	query := `UPDATE organization_members SET role = $1 WHERE id = $2 AND organization_id = $3`
	if _, err := tx.ExecContext(ctx, query, role, memberRowID, orgID); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role update: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row, refusing to remove the last active
// admin. Same locking discipline as UpdateMemberRole.
func (s *PostgresStore) RemoveMember(ctx context.Context, orgID, memberRowID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := lockMember(ctx, tx, orgID, memberRowID)
	if err != nil {
		return err
	}

	if target.Role == authz.OrgRoleAdmin && target.Status == authz.StatusActive {
		if err := requireAnotherAdmin(ctx, tx, orgID, memberRowID); err != nil {
			return err
		}
	}

	query := `DELETE FROM organization_members WHERE id = $1 AND organization_id = $2`
	if _, err := tx.ExecContext(ctx, query, memberRowID, orgID); err != nil {
		return fmt.Errorf("failed to remove organization member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member removal: %w", err)
	}
	return nil
}

func lockMember(ctx context.Context, tx *sql.Tx, orgID, memberRowID int64) (*Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, joined_at
		FROM organization_members
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE
	`
	m := &Member{}
	err := tx.QueryRowContext(ctx, query, memberRowID, orgID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("organization member %d not found", memberRowID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock organization member: %w", err)
	}
	return m, nil
}

// requireAnotherAdmin locks the organization's active admin rows and fails
// unless at least one besides the excluded row exists.
func requireAnotherAdmin(ctx context.Context, tx *sql.Tx, orgID, excludeRowID int64) error {
	query := `
		SELECT id FROM organization_members
		WHERE organization_id = $1 AND role = 'admin' AND status = 'active' AND id != $2
		FOR UPDATE
	`
	rows, err := tx.QueryContext(ctx, query, orgID, excludeRowID)
	if err != nil {
		return fmt.Errorf("failed to count active admins: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to count active admins: %w", err)
		}
		return apperr.Conflict("organization must retain at least one active admin")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
