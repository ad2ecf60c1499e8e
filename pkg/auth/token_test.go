package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/apperr"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec(testSecret)

	token, err := codec.Issue(42, 3, time.Hour)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Empty(t, claims.Scope)
	assert.Greater(t, claims.RemainingTTL(time.Now()), 59*time.Minute)
}

func TestResetSessionTokenCarriesScope(t *testing.T) {
	codec := NewTokenCodec(testSecret)

	token, err := codec.IssueResetSession(42, 3, 15*time.Minute)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, ScopePasswordReset, claims.Scope)
}

func TestDecodeRejections(t *testing.T) {
	codec := NewTokenCodec(testSecret)

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Decode("not.a.token")
		assert.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenCodec("another-secret-another-secret-xx")
		token, err := other.Issue(42, 1, time.Hour)
		require.NoError(t, err)

		_, err = codec.Decode(token)
		assert.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := codec.Issue(42, 1, -time.Minute)
		require.NoError(t, err)

		_, err = codec.Decode(token)
		assert.True(t, apperr.IsUnauthorized(err))
	})
}

func TestRemainingTTLClampsAtZero(t *testing.T) {
	codec := NewTokenCodec(testSecret)
	token, err := codec.Issue(1, 1, time.Minute)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), claims.RemainingTTL(time.Now().Add(2*time.Minute)))
}
