// Package middleware provides the HTTP authentication layer: bearer token
// extraction, blacklist and token-version checks, and session injection into
// the request context.
package middleware

import (
	"context"
	"net/http"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/auth"
	"github.com/crewbase/crewbase/pkg/contextkeys"
	"github.com/crewbase/crewbase/pkg/httputil"
	"github.com/crewbase/crewbase/pkg/observability"
	"github.com/crewbase/crewbase/pkg/users"
)

// Session is the authenticated request context stored under
// contextkeys.AuthKey.
type Session struct {
	User   *users.User
	Token  string
	Claims *auth.Claims
}

// UserLoader is the slice of user storage authentication needs.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
	TouchLastActive(ctx context.Context, id int64) error
}

// AuthMiddleware authenticates requests. A token passes only when its
// signature and expiry hold, it is not blacklisted, it carries no special
// scope, and its version matches the user's current one.
type AuthMiddleware struct {
	codec     *auth.TokenCodec
	blacklist *auth.Blacklist
	users     UserLoader
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewAuthMiddleware creates the middleware. Metrics may be nil in tests.
func NewAuthMiddleware(
	codec *auth.TokenCodec,
	blacklist *auth.Blacklist,
	users UserLoader,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *AuthMiddleware {
	return &AuthMiddleware{
		codec:     codec,
		blacklist: blacklist,
		users:     users,
		logger:    logger,
		metrics:   metrics,
	}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		revoked, err := m.blacklist.IsRevoked(r.Context(), token)
		if err != nil {
			m.logger.WithError(err).Error("blacklist lookup failed")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if revoked {
			if m.metrics != nil {
				m.metrics.BlacklistHitsTotal.Inc()
			}
			m.reject(w, "revoked")
			return
		}

		claims, err := m.codec.Decode(token)
		if err != nil {
			m.reject(w, "invalid")
			return
		}
		// Reset-session tokens authorize password confirmation only.
		if claims.Scope != "" {
			m.reject(w, "scope")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			m.reject(w, "invalid")
			return
		}
		user, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if apperr.IsNotFound(err) {
				m.reject(w, "unknown_user")
				return
			}
			m.logger.WithError(err).Error("user lookup failed")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if claims.TokenVersion != user.TokenVersion {
			m.reject(w, "version_mismatch")
			return
		}

		if err := m.users.TouchLastActive(r.Context(), user.ID); err != nil {
			m.logger.WithError(err).Warn("failed to record user activity")
		}

		session := &Session{User: user, Token: token, Claims: claims}
		ctx := contextkeys.WithAuth(r.Context(), session)
		ctx = contextkeys.WithUserID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, reason string) {
	if m.metrics != nil {
		m.metrics.TokenRejectionsTotal.WithLabelValues(reason).Inc()
	}
	httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
}

// SessionFrom extracts the authenticated session from a request context.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(contextkeys.AuthKey).(*Session)
	return s
}
