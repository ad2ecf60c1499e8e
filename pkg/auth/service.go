package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/crewbase/crewbase/pkg/config"
	"github.com/crewbase/crewbase/pkg/observability"
	"github.com/crewbase/crewbase/pkg/teams"
	"github.com/crewbase/crewbase/pkg/users"
)

// Rate-limited operations, used both as limiter keys and metric labels.
const (
	opResetStart  = "pwd_reset_start"
	opResetVerify = "pwd_reset_verify"
)

// UserStore is the slice of user persistence the lifecycle needs.
// Registration is a single store call so the account, its personal team and
// the current-team pointer commit or roll back together.
type UserStore interface {
	CreateWithPersonalTeam(ctx context.Context, u *users.User, teamName string) (*teams.Team, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	UpdatePassword(ctx context.Context, userID int64, hashedPassword string) (int, error)
	SetTwoFactorSecret(ctx context.Context, userID int64, secret string) error
	EnableTwoFactor(ctx context.Context, userID int64) error
}

// ResetStore persists password-reset state machine records.
type ResetStore interface {
	Create(ctx context.Context, r *PasswordReset) error
	GetLatestUnconsumed(ctx context.Context, email string) (*PasswordReset, error)
	IncrementAttempts(ctx context.Context, id int64) error
	MarkVerified(ctx context.Context, id int64, totpVerified bool) error
	ConsumeLatest(ctx context.Context, userID int64) error
}

// Service drives the credential and session lifecycle.
type Service struct {
	userStore UserStore
	resets    ResetStore
	codec     *TokenCodec
	blacklist *Blacklist
	limiter   *Limiter
	totp      *TOTPProvider
	deliverer OTPDeliverer
	logger    *observability.Logger
	metrics   *observability.Metrics
	cfg       config.AuthConfig
	debug     bool
}

// NewService wires the lifecycle. Metrics may be nil in tests.
func NewService(
	userStore UserStore,
	resets ResetStore,
	codec *TokenCodec,
	blacklist *Blacklist,
	limiter *Limiter,
	totp *TOTPProvider,
	deliverer OTPDeliverer,
	logger *observability.Logger,
	metrics *observability.Metrics,
	cfg config.AuthConfig,
	debug bool,
) *Service {
	return &Service{
		userStore: userStore,
		resets:    resets,
		codec:     codec,
		blacklist: blacklist,
		limiter:   limiter,
		totp:      totp,
		deliverer: deliverer,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		debug:     debug,
	}
}

// Login verifies credentials and issues a session token. Unknown accounts
// and wrong passwords produce the identical error so the endpoint cannot be
// used to probe for registered emails.
func (s *Service) Login(ctx context.Context, email, password string) (string, *users.User, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			s.countLogin("failure")
			return "", nil, apperr.Unauthorized("invalid credentials")
		}
		return "", nil, err
	}
	if !user.IsActive || !VerifyPassword(password, user.HashedPassword) {
		s.countLogin("failure")
		return "", nil, apperr.Unauthorized("invalid credentials")
	}

	token, err := s.codec.Issue(user.ID, user.TokenVersion, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	s.countLogin("success")
	s.countTokenIssued("session")
	return token, user, nil
}

// Register creates the account, its personal team and the current-team
// pointer in one store transaction, then issues the first session token.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (string, *users.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", nil, err
	}

	user := &users.User{Email: email, HashedPassword: hash, FullName: fullName}
	if _, err := s.userStore.CreateWithPersonalTeam(ctx, user, fmt.Sprintf("%s's Team", fullName)); err != nil {
		return "", nil, err
	}

	token, err := s.codec.Issue(user.ID, user.TokenVersion, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	s.countTokenIssued("session")
	s.logger.WithField("user_id", user.ID).Info("user registered")
	return token, user, nil
}

// RefreshToken issues a fresh session token for an authenticated user.
func (s *Service) RefreshToken(user *users.User) (string, error) {
	token, err := s.codec.Issue(user.ID, user.TokenVersion, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	s.countTokenIssued("session")
	return token, nil
}

// Logout blacklists the exact token for its remaining lifetime. In debug
// mode logout is a no-op and tokens simply age out.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if s.debug {
		return nil
	}
	claims, err := s.codec.Decode(rawToken)
	if err != nil {
		return err
	}
	return s.blacklist.Revoke(ctx, rawToken, claims.RemainingTTL(time.Now()))
}

// ForgotPasswordStart begins a reset: rate limit, create the record, hand
// the code off for delivery. The caller gets the same nil result whether or
// not the account exists.
func (s *Service) ForgotPasswordStart(ctx context.Context, email, clientIP string) error {
	if err := s.allow(ctx, opResetStart, email, clientIP, s.cfg.ResetStartLimit); err != nil {
		return err
	}

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Uniform response; nothing to do for unknown accounts.
			return nil
		}
		return err
	}

	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	hash, err := HashOTP(code)
	if err != nil {
		return err
	}

	reset := &PasswordReset{
		UserID:       &user.ID,
		Email:        email,
		OTPHash:      hash,
		OTPExpiresAt: time.Now().Add(s.cfg.OTPTTL),
		RequireTOTP:  user.TwoFactorEnabled,
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return err
	}
	s.countReset("start", "success")

	// Delivery is out of band. Failure is logged, never propagated, and
	// never rolls back the record.
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.deliverer.DeliverOTP(dctx, email, code); err != nil {
			s.logger.WithError(err).WithField("email", email).Error("otp delivery failed")
		}
	}()

	return nil
}

// ForgotPasswordVerify checks the OTP (and TOTP when the account requires
// it) and issues a reset-session token scoped to password confirmation.
func (s *Service) ForgotPasswordVerify(ctx context.Context, email, otpCode, totpCode, clientIP string) (string, error) {
	if err := s.allow(ctx, opResetVerify, email, clientIP, s.cfg.ResetVerifyLimit); err != nil {
		return "", err
	}

	invalidCode := apperr.Validation("invalid or expired code")

	reset, err := s.resets.GetLatestUnconsumed(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", invalidCode
		}
		return "", err
	}
	if reset.OTPHash == "" || time.Now().After(reset.OTPExpiresAt) {
		s.countReset("verify", "failure")
		return "", invalidCode
	}
	if otpCode == "" || !VerifyOTP(otpCode, reset.OTPHash) {
		if err := s.resets.IncrementAttempts(ctx, reset.ID); err != nil {
			return "", err
		}
		s.countReset("verify", "failure")
		return "", invalidCode
	}

	if reset.UserID == nil {
		return "", invalidCode
	}
	user, err := s.userStore.GetByID(ctx, *reset.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", invalidCode
		}
		return "", err
	}

	totpVerified := false
	if reset.RequireTOTP {
		if user.TwoFactorSecret == "" || totpCode == "" || !s.totp.Verify(user.TwoFactorSecret, totpCode) {
			if err := s.resets.IncrementAttempts(ctx, reset.ID); err != nil {
				return "", err
			}
			s.countReset("verify", "failure")
			return "", apperr.Validation("invalid or missing authenticator code")
		}
		totpVerified = true
	}

	if err := s.resets.MarkVerified(ctx, reset.ID, totpVerified); err != nil {
		return "", err
	}

	token, err := s.codec.IssueResetSession(user.ID, user.TokenVersion, s.cfg.ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset session token: %w", err)
	}
	s.countReset("verify", "success")
	s.countTokenIssued(ScopePasswordReset)
	return token, nil
}

// ForgotPasswordConfirm consumes a reset-session token: set the new
// password, bump the token version (killing every outstanding session,
// including the token just used) and retire the reset record.
func (s *Service) ForgotPasswordConfirm(ctx context.Context, rawToken, newPassword string) error {
	invalidSession := apperr.Unauthorized("invalid reset session")

	claims, err := s.codec.Decode(rawToken)
	if err != nil {
		return invalidSession
	}
	if claims.Scope != ScopePasswordReset {
		return invalidSession
	}
	userID, err := claims.UserID()
	if err != nil {
		return invalidSession
	}

	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return invalidSession
		}
		return err
	}
	// A version bump since issuance (another confirm racing this one, or a
	// plain password change) voids the reset session.
	if claims.TokenVersion != user.TokenVersion {
		return invalidSession
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.userStore.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.resets.ConsumeLatest(ctx, userID); err != nil {
		return err
	}
	s.countReset("confirm", "success")
	s.logger.WithField("user_id", userID).Info("password reset completed")
	return nil
}

// TwoFASetup provisions a fresh TOTP secret for the user. The secret is
// stored disabled; a later verify call with a valid code enables it.
// Re-running setup replaces any earlier secret.
func (s *Service) TwoFASetup(ctx context.Context, user *users.User) (secret, otpauthURL string, err error) {
	secret, otpauthURL, err = s.totp.GenerateSecret(user.Email)
	if err != nil {
		return "", "", err
	}
	if err := s.userStore.SetTwoFactorSecret(ctx, user.ID, secret); err != nil {
		return "", "", err
	}
	return secret, otpauthURL, nil
}

// TwoFAVerify checks the code against the provisioned secret and enables
// two-factor on success.
func (s *Service) TwoFAVerify(ctx context.Context, user *users.User, code string) error {
	if user.TwoFactorSecret == "" || !s.totp.Verify(user.TwoFactorSecret, code) {
		return apperr.Validation("invalid code")
	}
	return s.userStore.EnableTwoFactor(ctx, user.ID)
}

func (s *Service) allow(ctx context.Context, op, email, ip string, limit int) error {
	ok, err := s.limiter.Allow(ctx, op, email, ip, limit)
	if err != nil {
		// A broken counter must not take password recovery down with it.
		s.logger.WithError(err).Warn("rate limit check failed, allowing request")
		return nil
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.RateLimitRejectionsTotal.WithLabelValues(op).Inc()
		}
		return apperr.RateLimited("too many requests")
	}
	return nil
}

func (s *Service) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countTokenIssued(scope string) {
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.WithLabelValues(scope).Inc()
	}
}

func (s *Service) countReset(stage, result string) {
	if s.metrics != nil {
		s.metrics.PasswordResetsTotal.WithLabelValues(stage, result).Inc()
	}
}
