package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewbase/crewbase/pkg/authz"
	"github.com/crewbase/crewbase/pkg/guard"
	"github.com/crewbase/crewbase/pkg/httputil"
	"github.com/crewbase/crewbase/pkg/middleware"
	"github.com/crewbase/crewbase/pkg/observability"
	"github.com/crewbase/crewbase/pkg/orgs"
	"github.com/crewbase/crewbase/pkg/teams"
	"github.com/crewbase/crewbase/pkg/users"
)

// AuthService is the credential lifecycle the auth handlers drive.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *users.User, error)
	Register(ctx context.Context, email, password, fullName string) (string, *users.User, error)
	RefreshToken(user *users.User) (string, error)
	Logout(ctx context.Context, rawToken string) error
	ForgotPasswordStart(ctx context.Context, email, clientIP string) error
	ForgotPasswordVerify(ctx context.Context, email, otpCode, totpCode, clientIP string) (string, error)
	ForgotPasswordConfirm(ctx context.Context, rawToken, newPassword string) error
	TwoFASetup(ctx context.Context, user *users.User) (secret, otpauthURL string, err error)
	TwoFAVerify(ctx context.Context, user *users.User, code string) error
}

// Authorizer gates team-scoped operations.
type Authorizer interface {
	RequirePermission(ctx context.Context, user *users.User, teamID int64, resource authz.Resource, action authz.Action) (*guard.MemberContext, error)
	RequireTeamOwner(ctx context.Context, user *users.User, teamID int64) (*teams.Team, error)
}

// TeamStore is the team persistence the handlers use.
type TeamStore interface {
	CreateTeam(ctx context.Context, t *teams.Team) error
	ListTeamsForUser(ctx context.Context, userID int64, opts teams.ListOptions) ([]*teams.Team, error)
	UpdateTeam(ctx context.Context, t *teams.Team) error
	CountActiveMembers(ctx context.Context, teamID int64) (int, error)
	ArchiveTeam(ctx context.Context, id int64) error
	AddMember(ctx context.Context, m *teams.TeamMember) error
	ListMembers(ctx context.Context, teamID int64) ([]*teams.MemberDetail, error)
	UpdateMemberRole(ctx context.Context, teamID, memberRowID int64, role authz.Role) (*teams.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, memberRowID int64) error
}

// OrgStore is the organization persistence the handlers use.
type OrgStore interface {
	CreateOrganization(ctx context.Context, org *orgs.Organization, creatorID int64) error
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
	ListOrganizations(ctx context.Context, filter orgs.ListFilter) ([]*orgs.Organization, error)
	UpdateOrganization(ctx context.Context, org *orgs.Organization) error
	ArchiveOrganization(ctx context.Context, id int64) error
	AddMember(ctx context.Context, m *orgs.Member) error
	GetMembership(ctx context.Context, orgID, userID int64) (*orgs.Member, error)
	ListMembers(ctx context.Context, orgID int64) ([]*orgs.MemberDetail, error)
	UpdateMemberRole(ctx context.Context, orgID, memberRowID int64, role authz.OrgRole) error
	RemoveMember(ctx context.Context, orgID, memberRowID int64) error
}

// Server wires handlers, middleware and routes.
type Server struct {
	auth    AuthService
	guard   Authorizer
	teams   TeamStore
	orgs    OrgStore
	authMW  *middleware.AuthMiddleware
	logger  *observability.Logger
	metrics *observability.Metrics
	router  *mux.Router
}

// NewServer builds the router. Metrics may be nil in tests.
func NewServer(
	auth AuthService,
	authorizer Authorizer,
	teamStore TeamStore,
	orgStore OrgStore,
	authMW *middleware.AuthMiddleware,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		auth:    auth,
		guard:   authorizer,
		teams:   teamStore,
		orgs:    orgStore,
		authMW:  authMW,
		logger:  logger,
		metrics: metrics,
	}
	s.routes()
	return s
}

// Router returns the HTTP handler with common middleware applied.
func (s *Server) Router() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	)
	return chain(s.router)
}

func (s *Server) routes() {
	s.router = mux.NewRouter()
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public auth endpoints.
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/forgot-password/start", s.handleForgotStart).Methods(http.MethodPost)
	api.HandleFunc("/auth/forgot-password/verify", s.handleForgotVerify).Methods(http.MethodPost)
	api.HandleFunc("/auth/forgot-password/confirm", s.handleForgotConfirm).Methods(http.MethodPost)

	// Authenticated endpoints.
	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMW.Handler)

	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/auth/token", s.handleRefreshToken).Methods(http.MethodPost)
	authed.HandleFunc("/auth/2fa/setup", s.handleTwoFASetup).Methods(http.MethodPost)
	authed.HandleFunc("/auth/2fa/verify", s.handleTwoFAVerify).Methods(http.MethodPost)

	authed.HandleFunc("/teams", s.handleListTeams).Methods(http.MethodGet)
	authed.HandleFunc("/teams", s.handleCreateTeam).Methods(http.MethodPost)
	authed.HandleFunc("/teams/{teamID:[0-9]+}", s.handleGetTeam).Methods(http.MethodGet)
	authed.HandleFunc("/teams/{teamID:[0-9]+}", s.handleUpdateTeam).Methods(http.MethodPatch)
	authed.HandleFunc("/teams/{teamID:[0-9]+}", s.handleArchiveTeam).Methods(http.MethodDelete)
	authed.HandleFunc("/teams/{teamID:[0-9]+}/members", s.handleListTeamMembers).Methods(http.MethodGet)
	authed.HandleFunc("/teams/{teamID:[0-9]+}/members", s.handleAddTeamMember).Methods(http.MethodPost)
	authed.HandleFunc("/teams/{teamID:[0-9]+}/members/{memberID:[0-9]+}", s.handleUpdateTeamMember).Methods(http.MethodPatch)
	authed.HandleFunc("/teams/{teamID:[0-9]+}/members/{memberID:[0-9]+}", s.handleRemoveTeamMember).Methods(http.MethodDelete)

	authed.HandleFunc("/organizations", s.handleListOrgs).Methods(http.MethodGet)
	authed.HandleFunc("/organizations", s.handleCreateOrg).Methods(http.MethodPost)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}", s.handleGetOrg).Methods(http.MethodGet)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}", s.handleUpdateOrg).Methods(http.MethodPatch)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}", s.handleArchiveOrg).Methods(http.MethodDelete)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}/members", s.handleListOrgMembers).Methods(http.MethodGet)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}/members", s.handleAddOrgMember).Methods(http.MethodPost)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}/members/{memberID:[0-9]+}", s.handleUpdateOrgMember).Methods(http.MethodPatch)
	authed.HandleFunc("/organizations/{orgID:[0-9]+}/members/{memberID:[0-9]+}", s.handleRemoveOrgMember).Methods(http.MethodDelete)
}

// sessionUser pulls the authenticated user off the request. The auth
// middleware guarantees it on protected routes.
func (s *Server) sessionUser(r *http.Request) *users.User {
	if session := middleware.SessionFrom(r.Context()); session != nil {
		return session.User
	}
	return nil
}
