package guard

import (
	"context"
	"fmt"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/authz"
	"github.com/crewbase/crewbase/pkg/teams"
	"github.com/crewbase/crewbase/pkg/users"
)

// MembershipStore is the slice of team storage that resolution needs.
type MembershipStore interface {
	GetTeam(ctx context.Context, id int64) (*teams.Team, error)
	GetActiveUserMembership(ctx context.Context, teamID, userID int64) (*teams.TeamMember, error)
	GetActiveOrganizationMembership(ctx context.Context, teamID, userID int64) (*teams.OrgMembership, error)
}

// MemberContext is the resolved access path for a (user, team) pair. It is
// handed to the business operation so it never re-resolves.
type MemberContext struct {
	Team       *teams.Team
	User       *users.User
	Role       authz.Role
	MemberType authz.MemberType

	// Organization fields are set only when access came through an
	// organization membership.
	OrgID   int64
	OrgName string
	OrgType authz.OrgType
}

// Resolver determines the effective role a user holds on a team.
type Resolver struct {
	store MembershipStore
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store MembershipStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveContext walks the three access paths in precedence order and
// returns the first match. Archived teams resolve as not found. A user with
// no path at all gets a forbidden error, distinct from the team missing.
func (r *Resolver) ResolveContext(ctx context.Context, user *users.User, teamID int64) (*MemberContext, error) {
	team, err := r.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.IsActive {
		return nil, apperr.NotFound("team %d not found", teamID)
	}

	// Ownership is authoritative and skips membership lookups entirely.
	if team.OwnerID == user.ID {
		return &MemberContext{
			Team:       team,
			User:       user,
			Role:       authz.RoleAdmin,
			MemberType: authz.MemberTypeOwner,
		}, nil
	}

	direct, err := r.store.GetActiveUserMembership(ctx, teamID, user.ID)
	if err == nil {
		return &MemberContext{
			Team:       team,
			User:       user,
			Role:       direct.Role,
			MemberType: authz.MemberTypeUser,
		}, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("failed to resolve direct membership: %w", err)
	}

	indirect, err := r.store.GetActiveOrganizationMembership(ctx, teamID, user.ID)
	if err == nil {
		// The role is the organization's role on the team, not the
		// user's role inside the organization.
		return &MemberContext{
			Team:       team,
			User:       user,
			Role:       indirect.Member.Role,
			MemberType: authz.MemberTypeOrganization,
			OrgID:      indirect.OrgID,
			OrgName:    indirect.OrgName,
			OrgType:    indirect.OrgType,
		}, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("failed to resolve organization membership: %w", err)
	}

	return nil, apperr.Forbidden("not a member of this team")
}
