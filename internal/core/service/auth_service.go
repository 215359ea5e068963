package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

const defaultResetTokenTTL = time.Hour

// AuthOptions holds the externally supplied settings of AuthService.
type AuthOptions struct {
	ResetTokenTTL time.Duration
	// FrontendURL is the base of the reset link sent by email.
	FrontendURL string
	// Cooldown is optional; nil issues a token on every request.
	Cooldown ports.ResetCooldown
}

// AuthService implements login and the password lifecycle.
type AuthService struct {
	repo     ports.AccountRepository
	resolver *CredentialResolver
	sessions *SessionIssuer
	hasher   *PasswordHasher
	notifier ports.Notifier
	opts     AuthOptions
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthService(
	repo ports.AccountRepository,
	resolver *CredentialResolver,
	sessions *SessionIssuer,
	hasher *PasswordHasher,
	notifier ports.Notifier,
	opts AuthOptions,
	log zerolog.Logger,
) *AuthService {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = defaultResetTokenTTL
	}
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &AuthService{
		repo:     repo,
		resolver: resolver,
		sessions: sessions,
		hasher:   hasher,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// Login resolves the credentials, records the login time and issues a token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*ports.LoginResult, error) {
	account, err := s.resolver.Resolve(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	account.LastLoginAt = &now

	token, session, err := s.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	s.log.Info().Int64("account_id", account.ID).Str("role", string(account.Role)).Msg("login succeeded")
	return &ports.LoginResult{Token: token, Session: session, Account: account}, nil
}

// Me returns the stored account behind session.
func (s *AuthService) Me(ctx context.Context, session *domain.Session) (*domain.Account, error) {
	return s.repo.FindByID(ctx, session.AccountID)
}

// ChangePassword replaces the password of the session's account, clears the
// forced-change flag and returns a token reflecting the new state.
func (s *AuthService) ChangePassword(ctx context.Context, session *domain.Session, currentPassword, newPassword string) (*ports.LoginResult, error) {
	if currentPassword == "" || newPassword == "" {
		return nil, fmt.Errorf("%w: current and new password are required", domain.ErrValidation)
	}

	account, err := s.repo.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, err
	}

	if !s.hasher.Matches(account.PasswordHash, currentPassword) {
		return nil, domain.ErrIncorrectPassword
	}
	if err := validateNewPassword(newPassword); err != nil {
		return nil, err
	}
	if s.hasher.Matches(account.PasswordHash, newPassword) {
		return nil, domain.ErrPasswordUnchanged
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdatePassword(ctx, account.ID, hash, false, now); err != nil {
		return nil, fmt.Errorf("change password: %w", err)
	}
	account.PasswordHash = hash
	account.MustChangePassword = false
	account.UpdatedAt = now

	token, fresh, err := s.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("change password: issue token: %w", err)
	}

	s.log.Info().Int64("account_id", account.ID).Msg("password changed")
	return &ports.LoginResult{Token: token, Session: fresh, Account: account}, nil
}

// ForgotPassword issues a reset token when email belongs to an active
// account. The result is the same whether or not it does.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.log.Debug().Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	if !account.IsActive() {
		s.log.Info().Int64("account_id", account.ID).Msg("password reset requested for inactive account")
		return nil
	}
	if !s.acquireCooldown(ctx, account.ID) {
		s.log.Info().Int64("account_id", account.ID).Msg("password reset already requested recently")
		return nil
	}

	token, digest, err := newResetToken()
	if err != nil {
		s.releaseCooldown(ctx, account.ID)
		return err
	}
	expiry := s.now().UTC().Add(s.opts.ResetTokenTTL)
	if err := s.repo.SetResetToken(ctx, account.ID, digest, expiry); err != nil {
		s.releaseCooldown(ctx, account.ID)
		return fmt.Errorf("forgot password: %w", err)
	}

	s.notifier.PasswordResetRequested(ctx, ports.PasswordResetNotice{
		Email:     account.Email,
		FirstName: account.FirstName,
		ResetURL:  s.resetURL(token),
		ExpiresIn: s.opts.ResetTokenTTL.String(),
	})

	s.log.Info().Int64("account_id", account.ID).Time("expires_at", expiry).Msg("password reset token issued")
	return nil
}

// acquireCooldown admits the request when the cooldown store fails.
func (s *AuthService) acquireCooldown(ctx context.Context, accountID int64) bool {
	if s.opts.Cooldown == nil {
		return true
	}
	ok, err := s.opts.Cooldown.Acquire(ctx, accountID)
	if err != nil {
		s.log.Warn().Err(err).Int64("account_id", accountID).Msg("reset cooldown unavailable")
		return true
	}
	return ok
}

// releaseCooldown lets the caller retry at once after a failed issue.
func (s *AuthService) releaseCooldown(ctx context.Context, accountID int64) {
	if s.opts.Cooldown == nil {
		return
	}
	if err := s.opts.Cooldown.Release(context.WithoutCancel(ctx), accountID); err != nil {
		s.log.Warn().Err(err).Int64("account_id", accountID).Msg("reset cooldown release failed")
	}
}

// ResetPassword consumes a reset token. Unknown, used and expired tokens are
// indistinguishable to the caller.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrInvalidResetToken
	}

	digest := hashResetToken(token)
	account, err := s.repo.FindByResetToken(ctx, digest)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	now := s.now().UTC()
	if !account.HasUsableResetToken(now) {
		return domain.ErrInvalidResetToken
	}
	if err := validateNewPassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.ConsumeResetToken(ctx, account.ID, digest, hash, now); err != nil {
		return err
	}

	s.log.Info().Int64("account_id", account.ID).Msg("password reset completed")
	return nil
}

// RefreshSession re-reads the account behind session. Missing and inactive
// accounts lose their session; role and forced-change state come from the store.
func (s *AuthService) RefreshSession(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	account, err := s.repo.FindByID(ctx, session.AccountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, domain.ErrUnauthorized
	}

	fresh := *session
	fresh.Role = account.Role
	fresh.Email = account.Email
	fresh.MustChangePassword = account.MustChangePassword
	return &fresh, nil
}

func (s *AuthService) resetURL(token string) string {
	return s.opts.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
}
