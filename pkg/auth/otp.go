package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTP returns a 6-digit numeric code, zero padded, from a
// cryptographic source.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashOTP hashes the code the same way passwords are hashed; codes are
// low-entropy so they never touch storage in the clear.
func HashOTP(code string) (string, error) {
	return HashPassword(code)
}

// VerifyOTP reports whether the code matches the stored hash.
func VerifyOTP(code, digest string) bool {
	return VerifyPassword(code, digest)
}
