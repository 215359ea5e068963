package ports

import "context"

// AccountCreatedNotice is sent to a newly created account holder.
type AccountCreatedNotice struct {
	Email             string
	UserID            string
	FirstName         string
	RoleLabel         string
	TemporaryPassword string
	LoginURL          string
}

// PasswordResetNotice carries the reset link for a forgot-password request.
type PasswordResetNotice struct {
	Email     string
	FirstName string
	ResetURL  string
	ExpiresIn string
}

// Notifier hands messages to a best-effort background sender. Implementations
// must not block on delivery and never report delivery failures to the caller.
type Notifier interface {
	AccountCreated(ctx context.Context, notice AccountCreatedNotice)
	PasswordResetRequested(ctx context.Context, notice PasswordResetNotice)
}
