package api

import (
	"net/http"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/authz"
	"github.com/crewbase/crewbase/pkg/httputil"
	"github.com/crewbase/crewbase/pkg/teams"
)

type createTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateTeamRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type addTeamMemberRequest struct {
	MemberType authz.MemberType `json:"member_type"`
	MemberID   int64            `json:"member_id"`
	Role       authz.Role       `json:"role"`
}

type updateTeamMemberRequest struct {
	Role authz.Role `json:"role"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	opts := teams.ListOptions{
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
		Limit:           page.Limit,
		Skip:            page.Skip,
	}
	list, err := s.teams.ListTeamsForUser(r.Context(), s.sessionUser(r).ID, opts)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	team := &teams.Team{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     s.sessionUser(r).ID,
	}
	if err := s.teams.CreateTeam(r.Context(), team); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, team)
}

type teamResponse struct {
	*teams.Team
	MemberCount int `json:"member_count"`
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}

	mc, err := s.guard.RequirePermission(r.Context(), s.sessionUser(r), teamID, authz.ResourceTeam, authz.ActionRead)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	count, err := s.teams.CountActiveMembers(r.Context(), teamID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, teamResponse{Team: mc.Team, MemberCount: count})
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}
	var req updateTeamRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	mc, err := s.guard.RequirePermission(r.Context(), s.sessionUser(r), teamID, authz.ResourceTeam, authz.ActionUpdate)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	team := mc.Team
	if req.Name != nil {
		team.Name = *req.Name
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	if err := s.teams.UpdateTeam(r.Context(), team); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, team)
}

// handleArchiveTeam is owner-only regardless of granted roles, and personal
// teams are refused outright by the guard.
func (s *Server) handleArchiveTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}

	if _, err := s.guard.RequireTeamOwner(r.Context(), s.sessionUser(r), teamID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.teams.ArchiveTeam(r.Context(), teamID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleListTeamMembers(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}

	if _, err := s.guard.RequirePermission(r.Context(), s.sessionUser(r), teamID, authz.ResourceTeamMember, authz.ActionRead); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	members, err := s.teams.ListMembers(r.Context(), teamID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) handleAddTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}
	var req addTeamMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.MemberType != authz.MemberTypeUser && req.MemberType != authz.MemberTypeOrganization {
		httputil.WriteAppError(w, apperr.Validation("member_type must be user or organization"))
		return
	}
	if !req.Role.Valid() {
		httputil.WriteAppError(w, apperr.Validation("unknown role %q", req.Role))
		return
	}

	actor := s.sessionUser(r)
	if _, err := s.guard.RequirePermission(r.Context(), actor, teamID, authz.ResourceTeamMember, authz.ActionInvite); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	member := &teams.TeamMember{
		TeamID:     teamID,
		MemberType: req.MemberType,
		MemberID:   req.MemberID,
		Role:       req.Role,
		InvitedBy:  &actor.ID,
	}
	if err := s.teams.AddMember(r.Context(), member); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, member)
}

func (s *Server) handleUpdateTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}
	memberID, ok := httputil.ParsePathInt64OrError(w, r, "memberID")
	if !ok {
		return
	}
	var req updateTeamMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteAppError(w, apperr.Validation("unknown role %q", req.Role))
		return
	}

	if _, err := s.guard.RequirePermission(r.Context(), s.sessionUser(r), teamID, authz.ResourceTeamMember, authz.ActionManage); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	member, err := s.teams.UpdateMemberRole(r.Context(), teamID, memberID, req.Role)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

func (s *Server) handleRemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamID")
	if !ok {
		return
	}
	memberID, ok := httputil.ParsePathInt64OrError(w, r, "memberID")
	if !ok {
		return
	}

	if _, err := s.guard.RequirePermission(r.Context(), s.sessionUser(r), teamID, authz.ResourceTeamMember, authz.ActionRemove); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := s.teams.RemoveMember(r.Context(), teamID, memberID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
