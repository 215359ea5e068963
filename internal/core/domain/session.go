package domain

import "time"

// Session is the acting identity decoded from a session token.
type Session struct {
	AccountID          int64
	Role               Role
	Email              string
	MustChangePassword bool
	IssuedAt           time.Time
	ExpiresAt          time.Time
}
