package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewbase/crewbase/pkg/apperr"
)

// ScopePasswordReset marks a token that authorizes password confirmation
// only. General session tokens carry no scope.
const ScopePasswordReset = "pwd_reset"

// Claims is the token payload: subject, token version at issue time, and an
// optional scope.
type Claims struct {
	TokenVersion int    `json:"tv"`
	Scope        string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, apperr.Unauthorized("invalid token subject")
	}
	return id, nil
}

// TokenCodec signs and verifies HS256 tokens.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a codec over the shared signing secret.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

// Issue signs a session token bound to the user's current token version.
func (tc *TokenCodec) Issue(userID int64, tokenVersion int, ttl time.Duration) (string, error) {
	return tc.sign(userID, tokenVersion, "", ttl)
}

// IssueResetSession signs a narrowly scoped token that only the
// password-confirm step accepts.
func (tc *TokenCodec) IssueResetSession(userID int64, tokenVersion int, ttl time.Duration) (string, error) {
	return tc.sign(userID, tokenVersion, ScopePasswordReset, ttl)
}

func (tc *TokenCodec) sign(userID int64, tokenVersion int, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		TokenVersion: tokenVersion,
		Scope:        scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
}

// Decode verifies signature and expiry and returns the claims. All parse
// failures come back as an unauthorized error; callers never see library
// internals.
func (tc *TokenCodec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return tc.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return claims, nil
}

// RemainingTTL returns how long the claims stay valid, zero if already
// expired or unset.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	ttl := c.ExpiresAt.Time.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
