package api

import (
	"net/http"

	"github.com/crewbase/crewbase/pkg/httputil"
	"github.com/crewbase/crewbase/pkg/users"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type meResponse struct {
	User        *users.Public `json:"user"`
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") ||
		!httputil.RequireNonEmpty(w, req.FullName, "full_name") {
		return
	}

	token, _, err := s.auth.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	token, _, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleMe returns the authenticated user along with a fresh token, so
// clients can keep a session alive without a separate refresh endpoint.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUser(r)
	token, err := s.auth.RefreshToken(user)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, meResponse{
		User:        user.Public(),
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// handleRefreshToken exchanges a live session token for a fresh one.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.auth.RefreshToken(s.sessionUser(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleLogout is public on purpose: the token being revoked is the
// credential itself, so a separate auth pass would reject exactly the tokens
// users most want to revoke.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := httputil.BearerToken(r)
	if token == "" {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"message": "logout successful"})
}

type forgotStartRequest struct {
	Email string `json:"email"`
}

type forgotVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	TOTP  string `json:"totp,omitempty"`
}

type forgotVerifyResponse struct {
	ResetSessionToken string `json:"reset_session_token"`
}

type forgotConfirmRequest struct {
	NewPassword string `json:"new_password"`
}

func (s *Server) handleForgotStart(w http.ResponseWriter, r *http.Request) {
	var req forgotStartRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.auth.ForgotPasswordStart(r.Context(), req.Email, httputil.ClientIP(r)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	// Uniform response whether or not the account exists.
	httputil.WriteAccepted(w, map[string]string{
		"message": "if the email exists, a verification code has been sent",
	})
}

func (s *Server) handleForgotVerify(w http.ResponseWriter, r *http.Request) {
	var req forgotVerifyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	token, err := s.auth.ForgotPasswordVerify(r.Context(), req.Email, req.OTP, req.TOTP, httputil.ClientIP(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, forgotVerifyResponse{ResetSessionToken: token})
}

func (s *Server) handleForgotConfirm(w http.ResponseWriter, r *http.Request) {
	var req forgotConfirmRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.NewPassword, "new_password") {
		return
	}

	token := httputil.BearerToken(r)
	if token == "" {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "missing reset session")
		return
	}
	if err := s.auth.ForgotPasswordConfirm(r.Context(), token, req.NewPassword); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type twoFASetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type twoFAVerifyRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleTwoFASetup(w http.ResponseWriter, r *http.Request) {
	secret, url, err := s.auth.TwoFASetup(r.Context(), s.sessionUser(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, twoFASetupResponse{Secret: secret, OTPAuthURL: url})
}

func (s *Server) handleTwoFAVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFAVerifyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.auth.TwoFAVerify(r.Context(), s.sessionUser(r), req.Code); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
