package authz

// Role is a team-scoped authority level held by a team member, whether that
// member is a user or an organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// OrgRole is the role of a user inside an organization. Distinct from Role:
// it never feeds the permission matrix, it only gates organization management.
type OrgRole string

const (
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

// Valid reports whether the organization role is known.
func (r OrgRole) Valid() bool {
	return r == OrgRoleAdmin || r == OrgRoleMember
}

// OrgType classifies an organization. Fixed at creation, never mutated.
type OrgType string

const (
	OrgTypeProvider OrgType = "provider"
	OrgTypeClient   OrgType = "client"
	OrgTypeGuest    OrgType = "guest"
)

// Valid reports whether the organization type is known.
func (t OrgType) Valid() bool {
	switch t {
	case OrgTypeProvider, OrgTypeClient, OrgTypeGuest:
		return true
	}
	return false
}

// Resource identifies a kind of protected entity. Permissions apply to the
// kind, never to specific instances.
type Resource string

const (
	ResourceTeam         Resource = "team"
	ResourceTeamMember   Resource = "team_member"
	ResourceProject      Resource = "project"
	ResourceService      Resource = "service"
	ResourceInvoice      Resource = "invoice"
	ResourceReport       Resource = "report"
	ResourceOrganization Resource = "organization"
)

// Action is an operation performed on a resource kind.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
	ActionRemove Action = "remove"
	ActionManage Action = "manage"
)

// Permission pairs a resource kind with an action.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the canonical "resource:action" form.
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// MemberType discriminates how a membership row (or a resolved access path)
// points at its member.
type MemberType string

const (
	// MemberTypeOwner marks access granted by team ownership. It never
	// appears in a stored membership row.
	MemberTypeOwner MemberType = "owner"

	MemberTypeUser         MemberType = "user"
	MemberTypeOrganization MemberType = "organization"
)

// MemberStatus is the lifecycle state of a membership row.
type MemberStatus string

const (
	StatusActive   MemberStatus = "active"
	StatusInactive MemberStatus = "inactive"
	StatusPending  MemberStatus = "pending"
)
