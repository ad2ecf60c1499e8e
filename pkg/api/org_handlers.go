package api

import (
	"net/http"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/authz"
	"github.com/crewbase/crewbase/pkg/httputil"
	"github.com/crewbase/crewbase/pkg/orgs"
)

type createOrgRequest struct {
	Name    string        `json:"name"`
	OrgType authz.OrgType `json:"org_type"`
	Email   string        `json:"email,omitempty"`
	Phone   string        `json:"phone,omitempty"`
	Address string        `json:"address,omitempty"`

	Provider *orgs.Provider `json:"provider,omitempty"`
	Client   *orgs.Client   `json:"client,omitempty"`
	Guest    *orgs.Guest    `json:"guest,omitempty"`
}

type updateOrgRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type addOrgMemberRequest struct {
	UserID int64         `json:"user_id"`
	Role   authz.OrgRole `json:"role"`
}

type updateOrgMemberRequest struct {
	Role authz.OrgRole `json:"role"`
}

// requireOrgMember admits any active member of the organization.
func (s *Server) requireOrgMember(w http.ResponseWriter, r *http.Request, orgID int64) bool {
	m, err := s.orgs.GetMembership(r.Context(), orgID, s.sessionUser(r).ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			httputil.WriteAppError(w, apperr.Forbidden("not a member of this organization"))
		} else {
			httputil.WriteAppError(w, err)
		}
		return false
	}
	if m.Status != authz.StatusActive {
		httputil.WriteAppError(w, apperr.Forbidden("not a member of this organization"))
		return false
	}
	return true
}

// requireOrgAdmin admits only active admins; organization management never
// goes through the team permission matrix.
func (s *Server) requireOrgAdmin(w http.ResponseWriter, r *http.Request, orgID int64) bool {
	m, err := s.orgs.GetMembership(r.Context(), orgID, s.sessionUser(r).ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			httputil.WriteAppError(w, apperr.Forbidden("organization admin required"))
		} else {
			httputil.WriteAppError(w, err)
		}
		return false
	}
	if m.Status != authz.StatusActive || m.Role != authz.OrgRoleAdmin {
		httputil.WriteAppError(w, apperr.Forbidden("organization admin required"))
		return false
	}
	return true
}

func (s *Server) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	filter := orgs.ListFilter{
		OrgType:         authz.OrgType(r.URL.Query().Get("org_type")),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}
	if filter.OrgType != "" && !filter.OrgType.Valid() {
		httputil.WriteAppError(w, apperr.Validation("unknown organization type %q", filter.OrgType))
		return
	}
	list, err := s.orgs.ListOrganizations(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org := &orgs.Organization{
		Name:     req.Name,
		OrgType:  req.OrgType,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Provider: req.Provider,
		Client:   req.Client,
		Guest:    req.Guest,
	}
	if err := s.orgs.CreateOrganization(r.Context(), org, s.sessionUser(r).ID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	if !s.requireOrgMember(w, r, orgID) {
		return
	}

	org, err := s.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

func (s *Server) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	var req updateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.requireOrgAdmin(w, r, orgID) {
		return
	}

	org, err := s.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.Email != nil {
		org.Email = *req.Email
	}
	if req.Phone != nil {
		org.Phone = *req.Phone
	}
	if req.Address != nil {
		org.Address = *req.Address
	}
	if err := s.orgs.UpdateOrganization(r.Context(), org); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

func (s *Server) handleArchiveOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	if !s.requireOrgAdmin(w, r, orgID) {
		return
	}

	if err := s.orgs.ArchiveOrganization(r.Context(), orgID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleListOrgMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	if !s.requireOrgMember(w, r, orgID) {
		return
	}

	members, err := s.orgs.ListMembers(r.Context(), orgID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) handleAddOrgMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	var req addOrgMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.requireOrgAdmin(w, r, orgID) {
		return
	}

	member := &orgs.Member{
		OrganizationID: orgID,
		UserID:         req.UserID,
		Role:           req.Role,
	}
	if err := s.orgs.AddMember(r.Context(), member); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, member)
}

func (s *Server) handleUpdateOrgMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	memberID, ok := httputil.ParsePathInt64OrError(w, r, "memberID")
	if !ok {
		return
	}
	var req updateOrgMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.requireOrgAdmin(w, r, orgID) {
		return
	}

	if err := s.orgs.UpdateMemberRole(r.Context(), orgID, memberID, req.Role); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleRemoveOrgMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	memberID, ok := httputil.ParsePathInt64OrError(w, r, "memberID")
	if !ok {
		return
	}
	if !s.requireOrgAdmin(w, r, orgID) {
		return
	}

	if err := s.orgs.RemoveMember(r.Context(), orgID, memberID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
