package authz

// rolePermissions and orgTypePermissions are the authorization source of
// truth. They are populated once at init and never mutated afterwards; all
// lookups go through the pure functions below.
var (
	rolePermissions    map[Role]map[Permission]struct{}
	orgTypePermissions map[OrgType]map[Permission]struct{}
)

func init() {
	rolePermissions = map[Role]map[Permission]struct{}{
		RoleAdmin: permSet(
			Permission{ResourceTeam, ActionRead},
			Permission{ResourceTeam, ActionUpdate},
			Permission{ResourceTeam, ActionDelete},
			Permission{ResourceTeamMember, ActionRead},
			Permission{ResourceTeamMember, ActionInvite},
			Permission{ResourceTeamMember, ActionRemove},
			Permission{ResourceTeamMember, ActionManage},
			Permission{ResourceProject, ActionRead},
			Permission{ResourceProject, ActionCreate},
			Permission{ResourceProject, ActionUpdate},
			Permission{ResourceProject, ActionDelete},
			Permission{ResourceService, ActionRead},
			Permission{ResourceService, ActionCreate},
			Permission{ResourceService, ActionUpdate},
			Permission{ResourceService, ActionDelete},
			Permission{ResourceInvoice, ActionRead},
			Permission{ResourceInvoice, ActionCreate},
			Permission{ResourceReport, ActionRead},
			Permission{ResourceOrganization, ActionRead},
		),
		RoleMember: permSet(
			Permission{ResourceTeam, ActionRead},
			Permission{ResourceTeamMember, ActionRead},
			Permission{ResourceProject, ActionRead},
			Permission{ResourceProject, ActionUpdate},
			Permission{ResourceService, ActionRead},
			Permission{ResourceService, ActionUpdate},
			Permission{ResourceInvoice, ActionRead},
			Permission{ResourceReport, ActionRead},
		),
		RoleViewer: permSet(
			Permission{ResourceTeam, ActionRead},
			Permission{ResourceTeamMember, ActionRead},
			Permission{ResourceProject, ActionRead},
			Permission{ResourceService, ActionRead},
		),
	}

	orgTypePermissions = map[OrgType]map[Permission]struct{}{
		OrgTypeProvider: permSet(
			Permission{ResourceService, ActionCreate},
			Permission{ResourceService, ActionUpdate},
			Permission{ResourceService, ActionDelete},
			Permission{ResourceProject, ActionCreate},
			Permission{ResourceProject, ActionUpdate},
		),
		OrgTypeClient: permSet(
			Permission{ResourceInvoice, ActionRead},
			Permission{ResourceProject, ActionCreate},
			Permission{ResourceService, ActionRead},
		),
		OrgTypeGuest: permSet(
			Permission{ResourceProject, ActionRead},
			Permission{ResourceService, ActionRead},
		),
	}
}

func permSet(perms ...Permission) map[Permission]struct{} {
	s := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// HasPermission reports whether the role's base grants include the
// resource/action pair. Unknown roles have no grants.
func HasPermission(role Role, resource Resource, action Action) bool {
	_, ok := rolePermissions[role][Permission{resource, action}]
	return ok
}

// HasPermissionForOrg reports whether the role grants the pair either
// directly or through the organization-type overlay. The overlay is strictly
// additive: it can widen a role's grants, never narrow them.
func HasPermissionForOrg(role Role, orgType OrgType, resource Resource, action Action) bool {
	if HasPermission(role, resource, action) {
		return true
	}
	_, ok := orgTypePermissions[orgType][Permission{resource, action}]
	return ok
}

// RolePermissions returns a copy of the role's base grants. Mutating the
// returned slice has no effect on the matrix.
func RolePermissions(role Role) []Permission {
	return collect(rolePermissions[role])
}

// OrgTypePermissions returns a copy of the overlay grants for the
// organization type.
func OrgTypePermissions(orgType OrgType) []Permission {
	return collect(orgTypePermissions[orgType])
}

func collect(set map[Permission]struct{}) []Permission {
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// CanManageMembers reports whether the role may change other members' roles.
func CanManageMembers(role Role) bool {
	return HasPermission(role, ResourceTeamMember, ActionManage)
}

// CanDeleteTeam reports whether the role may delete (archive) the team.
func CanDeleteTeam(role Role) bool {
	return HasPermission(role, ResourceTeam, ActionDelete)
}
