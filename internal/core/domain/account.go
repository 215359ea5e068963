package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleManagerQA  Role = "MANAGER_QA"
	RoleManagerQC  Role = "MANAGER_QC"
	RoleUser       Role = "USER"
)

// Roles returns every role, most privileged first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleManagerQA, RoleManagerQC, RoleUser}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManagerQA, RoleManagerQC, RoleUser:
		return true
	}
	return false
}

// Label is the human readable name used in emails and the dashboard.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleManagerQA:
		return "QA Manager"
	case RoleManagerQC:
		return "QC Manager"
	case RoleUser:
		return "User"
	default:
		return string(r)
	}
}

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// Status is the operational state of an account.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// Account is the sole identity record of the system.
type Account struct {
	ID                 int64      `json:"id"`
	UserID             string     `json:"userId,omitempty"`
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName,omitempty"`
	LastName           string     `json:"lastName,omitempty"`
	PasswordHash       string     `json:"-"`
	MustChangePassword bool       `json:"mustChangePassword"`
	Role               Role       `json:"role"`
	Status             Status     `json:"status"`
	LastLoginAt        *time.Time `json:"lastLoginAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	CreatedByID        *int64     `json:"createdById,omitempty"`

	// PasswordResetToken holds the digest of the outstanding reset token.
	PasswordResetToken  string     `json:"-"`
	PasswordResetExpiry *time.Time `json:"-"`
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// HasUsableResetToken reports whether the stored reset token is still valid at now.
func (a *Account) HasUsableResetToken(now time.Time) bool {
	return a.PasswordResetToken != "" && a.PasswordResetExpiry != nil && a.PasswordResetExpiry.After(now)
}

// NormalizeEmail returns the case-folded form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUserID returns the canonical upper-case user ID.
func NormalizeUserID(userID string) string {
	return strings.ToUpper(strings.TrimSpace(userID))
}

// EmailLocalPart returns everything before the last '@', or "" when there is none.
func EmailLocalPart(email string) string {
	i := strings.LastIndex(email, "@")
	if i <= 0 {
		return ""
	}
	return email[:i]
}

const minUserIDLength = 6

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidateUserID checks an already normalized user ID.
func ValidateUserID(userID string) error {
	if len(userID) < minUserIDLength {
		return fmt.Errorf("%w: user ID must be at least %d characters", ErrValidation, minUserIDLength)
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: user ID must contain only letters and numbers", ErrValidation)
	}
	return nil
}
