package auth

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
	digest, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", digest)

	assert.True(t, VerifyPassword("hunter2hunter2", digest))
	assert.False(t, VerifyPassword("wrong", digest))
}

func TestGenerateOTPShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
		seen[code] = true
	}
	// 20 draws from a million values should not all collide.
	assert.Greater(t, len(seen), 1)
}

func TestOTPHashRoundTrip(t *testing.T) {
	digest, err := HashOTP("042135")
	require.NoError(t, err)
	assert.True(t, VerifyOTP("042135", digest))
	assert.False(t, VerifyOTP("042136", digest))
}

func TestTOTPProvider(t *testing.T) {
	p := NewTOTPProvider("Crewbase")

	secret, url, err := p.GenerateSecret("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, url, "otpauth://totp/")
	assert.Contains(t, url, "Crewbase")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, p.Verify(secret, code))
	assert.False(t, p.Verify(secret, "[not-a-code]"))
}
