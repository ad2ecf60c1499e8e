package guard

import (
	"context"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/authz"
	"github.com/crewbase/crewbase/pkg/observability"
	"github.com/crewbase/crewbase/pkg/teams"
	"github.com/crewbase/crewbase/pkg/users"
)

// Guard gates protected operations: resolve the caller's access path, then
// check the permission matrix against it.
type Guard struct {
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewGuard creates a Guard. Metrics may be nil in tests.
func NewGuard(resolver *Resolver, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{resolver: resolver, logger: logger, metrics: metrics}
}

// RequirePermission resolves the user's context on the team and demands the
// resource/action pair. The organization-type overlay applies only when
// access was resolved through an organization. On success the resolved
// context is returned so the operation does not resolve twice.
func (g *Guard) RequirePermission(ctx context.Context, user *users.User, teamID int64, resource authz.Resource, action authz.Action) (*MemberContext, error) {
	mc, err := g.resolver.ResolveContext(ctx, user, teamID)
	if err != nil {
		return nil, err
	}

	var allowed bool
	if mc.MemberType == authz.MemberTypeOrganization {
		allowed = authz.HasPermissionForOrg(mc.Role, mc.OrgType, resource, action)
	} else {
		allowed = authz.HasPermission(mc.Role, resource, action)
	}

	if g.metrics != nil {
		g.metrics.ObserveAuthzDecision(string(resource), string(action), allowed)
	}

	if !allowed {
		g.logger.WithFields(map[string]interface{}{
			"user_id":  user.ID,
			"team_id":  teamID,
			"role":     mc.Role,
			"resource": resource,
			"action":   action,
		}).Info("permission denied")
		return nil, apperr.Forbidden("permission denied: %s:%s", resource, action)
	}

	return mc, nil
}

// RequireTeamOwner admits only the team's owner, with no role matrix
// involved, and refuses personal teams outright. Used for operations like
// team deletion that stay owner-only regardless of granted roles.
func (g *Guard) RequireTeamOwner(ctx context.Context, user *users.User, teamID int64) (*teams.Team, error) {
	team, err := g.resolver.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.IsActive {
		return nil, apperr.NotFound("team %d not found", teamID)
	}
	if team.OwnerID != user.ID {
		return nil, apperr.Forbidden("only the team owner may perform this action")
	}
	if team.IsPersonal {
		return nil, apperr.Conflict("personal teams cannot be modified this way")
	}
	return team, nil
}
