package ports

import (
	"context"

	"github.com/structo/structo-api/internal/core/domain"
)

// LoginResult is returned by a successful login or password change.
type LoginResult struct {
	Token   string
	Session *domain.Session
	Account *domain.Account
}

// AuthService covers authentication and the password lifecycle.
type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	Me(ctx context.Context, session *domain.Session) (*domain.Account, error)
	ChangePassword(ctx context.Context, session *domain.Session, currentPassword, newPassword string) (*LoginResult, error)
	// ForgotPassword never reports whether email belongs to an account.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// SessionVerifier turns a bearer token into the acting session.
type SessionVerifier interface {
	Verify(token string) (*domain.Session, error)
}

// SessionRefresher reconciles decoded claims with the stored account.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, session *domain.Session) (*domain.Session, error)
}

// ResetCooldown holds back repeated password reset requests for one account.
type ResetCooldown interface {
	// Acquire reports whether a reset may be issued now and, if so, starts
	// the cooldown.
	Acquire(ctx context.Context, accountID int64) (bool, error)
	// Release ends the cooldown early, used when no reset was issued.
	Release(ctx context.Context, accountID int64) error
}
