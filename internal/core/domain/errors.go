package domain

import "errors"

var (
	// ErrValidation wraps every malformed-input failure; the wrapping error carries the detail.
	ErrValidation = errors.New("validation failed")

	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDeactivated     = errors.New("account has been deactivated, contact your admin")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("access forbidden")
	ErrPasswordChangeRequired = errors.New("password change required")
	ErrAccountExists          = errors.New("account already exists")
	ErrAccountNotFound        = errors.New("account not found")
	ErrRateLimited            = errors.New("too many attempts, try again later")

	ErrWeakPassword      = errors.New("new password must be at least 8 characters")
	ErrPasswordUnchanged = errors.New("new password must be different from current password")
	ErrIncorrectPassword = errors.New("current password is incorrect")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrSelfDeactivation  = errors.New("you cannot deactivate your own account")
)
