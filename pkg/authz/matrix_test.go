package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		resource Resource
		action   Action
		want     bool
	}{
		{"admin deletes team", RoleAdmin, ResourceTeam, ActionDelete, true},
		{"admin manages members", RoleAdmin, ResourceTeamMember, ActionManage, true},
		{"admin creates invoice", RoleAdmin, ResourceInvoice, ActionCreate, true},
		{"admin reads organization", RoleAdmin, ResourceOrganization, ActionRead, true},
		{"admin cannot update invoice", RoleAdmin, ResourceInvoice, ActionUpdate, false},
		{"member updates project", RoleMember, ResourceProject, ActionUpdate, true},
		{"member cannot create project", RoleMember, ResourceProject, ActionCreate, false},
		{"member cannot delete team", RoleMember, ResourceTeam, ActionDelete, false},
		{"member cannot invite", RoleMember, ResourceTeamMember, ActionInvite, false},
		{"viewer reads service", RoleViewer, ResourceService, ActionRead, true},
		{"viewer cannot update project", RoleViewer, ResourceProject, ActionUpdate, false},
		{"viewer cannot read invoice", RoleViewer, ResourceInvoice, ActionRead, false},
		{"unknown role has nothing", Role("superuser"), ResourceTeam, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.resource, tt.action))
		})
	}
}

// Every grant held by a lower role must be held by the roles above it.
func TestRoleGrantsAreNested(t *testing.T) {
	chains := []struct {
		lower, higher Role
	}{
		{RoleViewer, RoleMember},
		{RoleMember, RoleAdmin},
	}

	for _, c := range chains {
		for _, p := range RolePermissions(c.lower) {
			assert.True(t, HasPermission(c.higher, p.Resource, p.Action),
				"%s holds %s but %s does not", c.lower, p, c.higher)
		}
	}
}

func TestHasPermissionForOrg(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		orgType  OrgType
		resource Resource
		action   Action
		want     bool
	}{
		{"provider viewer creates service", RoleViewer, OrgTypeProvider, ResourceService, ActionCreate, true},
		{"provider viewer deletes service", RoleViewer, OrgTypeProvider, ResourceService, ActionDelete, true},
		{"provider member creates project", RoleMember, OrgTypeProvider, ResourceProject, ActionCreate, true},
		{"client viewer reads invoice", RoleViewer, OrgTypeClient, ResourceInvoice, ActionRead, true},
		{"client viewer creates project", RoleViewer, OrgTypeClient, ResourceProject, ActionCreate, true},
		{"guest viewer reads project", RoleViewer, OrgTypeGuest, ResourceProject, ActionRead, true},
		{"guest viewer cannot create project", RoleViewer, OrgTypeGuest, ResourceProject, ActionCreate, false},
		{"client viewer cannot delete service", RoleViewer, OrgTypeClient, ResourceService, ActionDelete, false},
		{"no overlay falls back to role", RoleMember, OrgType(""), ResourceProject, ActionUpdate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermissionForOrg(tt.role, tt.orgType, tt.resource, tt.action))
		})
	}
}

// The overlay may only add grants on top of the role, never subtract. Any
// pair allowed by the bare role must stay allowed under every org type.
func TestOrgOverlayIsAdditive(t *testing.T) {
	roles := []Role{RoleAdmin, RoleMember, RoleViewer}
	orgTypes := []OrgType{OrgTypeProvider, OrgTypeClient, OrgTypeGuest}

	for _, role := range roles {
		for _, p := range RolePermissions(role) {
			for _, ot := range orgTypes {
				assert.True(t, HasPermissionForOrg(role, ot, p.Resource, p.Action),
					"overlay %s removed %s from %s", ot, p, role)
			}
		}
	}
}

func TestRolePermissionsReturnsCopy(t *testing.T) {
	perms := RolePermissions(RoleViewer)
	assert.Len(t, perms, 4)

	perms[0] = Permission{ResourceTeam, ActionDelete}
	assert.False(t, HasPermission(RoleViewer, ResourceTeam, ActionDelete))
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, CanManageMembers(RoleAdmin))
	assert.False(t, CanManageMembers(RoleMember))
	assert.True(t, CanDeleteTeam(RoleAdmin))
	assert.False(t, CanDeleteTeam(RoleViewer))

	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
	assert.True(t, OrgTypeClient.Valid())
	assert.False(t, OrgType("vendor").Valid())
	assert.True(t, OrgRoleAdmin.Valid())
	assert.False(t, OrgRole("owner").Valid())
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "project:create", Permission{ResourceProject, ActionCreate}.String())
}
