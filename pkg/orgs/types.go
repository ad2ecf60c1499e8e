package orgs

import (
	"time"

	"github.com/crewbase/crewbase/pkg/authz"
)

// Organization is a company-like tenant that can employ users and join teams.
type Organization struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	OrgType  authz.OrgType `json:"org_type"`
	Email    string        `json:"email,omitempty"`
	Phone    string        `json:"phone,omitempty"`
	Address  string        `json:"address,omitempty"`
	Archived bool          `json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Exactly one of these matches OrgType.
	Provider *Provider `json:"provider,omitempty"`
	Client   *Client   `json:"client,omitempty"`
	Guest    *Guest    `json:"guest,omitempty"`
}

// Provider is the extension record for service-providing organizations.
type Provider struct {
	ID                int64                  `json:"id"`
	OrganizationID    int64                  `json:"organization_id"`
	ServicesOffered   []string               `json:"services_offered,omitempty"`
	Capabilities      map[string]interface{} `json:"capabilities,omitempty"`
	CertificationInfo string                 `json:"certification_info,omitempty"`
	Verified          bool                   `json:"verified"`
	CreatedAt         time.Time              `json:"created_at"`
}

// Client is the extension record for service-consuming organizations.
type Client struct {
	ID             int64                  `json:"id"`
	OrganizationID int64                  `json:"organization_id"`
	ContractNumber string                 `json:"contract_number,omitempty"`
	BillingInfo    map[string]interface{} `json:"billing_info,omitempty"`
	PaymentTerms   string                 `json:"payment_terms,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Guest is the extension record for temporary-access organizations.
type Guest struct {
	ID              int64                  `json:"id"`
	OrganizationID  int64                  `json:"organization_id"`
	AccessExpiresAt *time.Time             `json:"access_expires_at,omitempty"`
	InvitedBy       *int64                 `json:"invited_by,omitempty"`
	AccessScope     map[string]interface{} `json:"access_scope,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Member associates a user with an organization. Unique per
// (organization, user).
type Member struct {
	ID             int64              `json:"id"`
	OrganizationID int64              `json:"organization_id"`
	UserID         int64              `json:"user_id"`
	Role           authz.OrgRole      `json:"role"`
	Status         authz.MemberStatus `json:"status"`
	JoinedAt       time.Time          `json:"joined_at"`
}

// MemberDetail is a membership row joined with the user's display fields.
type MemberDetail struct {
	Member
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}
