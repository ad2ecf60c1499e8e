package teams

import (
	"time"

	"github.com/crewbase/crewbase/pkg/authz"
)

// Team is a workspace owned by a user. Every user gets a personal team at
// registration; personal teams cannot be archived.
type Team struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	IsPersonal  bool      `json:"is_personal"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TeamMember links a team to a member, which is either a user or an
// organization depending on MemberType.
type TeamMember struct {
	ID         int64              `json:"id"`
	TeamID     int64              `json:"team_id"`
	MemberType authz.MemberType   `json:"member_type"`
	MemberID   int64              `json:"member_id"`
	Role       authz.Role         `json:"role"`
	Status     authz.MemberStatus `json:"status"`
	InvitedBy  *int64             `json:"invited_by,omitempty"`
	InvitedAt  *time.Time         `json:"invited_at,omitempty"`
	JoinedAt   *time.Time         `json:"joined_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// MemberDetail is a membership row joined with its referent's display fields.
// Name holds the user's full name or the organization's name; Email and
// OrgType are filled for the matching member type only.
type MemberDetail struct {
	TeamMember
	Name    string        `json:"name"`
	Email   string        `json:"email,omitempty"`
	OrgType authz.OrgType `json:"org_type,omitempty"`
}
