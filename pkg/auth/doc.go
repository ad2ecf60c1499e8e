// Package auth implements the credential and session lifecycle: login and
// registration, token issuance and verification, logout blacklisting, TOTP
// enrollment and the OTP-based password-reset state machine.
//
// Session tokens carry the user's token version at issue time; bumping the
// version on password change invalidates every outstanding token at once.
// The logout blacklist layers on top for immediate single-token revocation.
package auth
