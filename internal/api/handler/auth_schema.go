package handler

import (
	"time"

	"github.com/structo/structo-api/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Request types ---

// loginRequest accepts the identifier field; email is the legacy name of
// the same input.
type loginRequest struct {
	Identifier string `json:"identifier" validate:"required_without=Email"`
	Email      string `json:"email"      validate:"required_without=Identifier"`
	Password   string `json:"password"   validate:"required"`
}

func (r loginRequest) identifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Email
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"       validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// --- Response types ---

// userResponse is the public view of an account. It never carries the
// password hash or reset token.
type userResponse struct {
	ID                 int64      `json:"id"`
	UserID             string     `json:"userId,omitempty"`
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName,omitempty"`
	LastName           string     `json:"lastName,omitempty"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	MustChangePassword bool       `json:"mustChangePassword"`
	LastLoginAt        *time.Time `json:"lastLoginAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toUserResponse(a *domain.Account) userResponse {
	return userResponse{
		ID:                 a.ID,
		UserID:             a.UserID,
		Email:              a.Email,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		Role:               string(a.Role),
		Status:             string(a.Status),
		MustChangePassword: a.MustChangePassword,
		LastLoginAt:        a.LastLoginAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type loginResponse struct {
	Token              string       `json:"token"`
	MustChangePassword bool         `json:"mustChangePassword"`
	User               userResponse `json:"user"`
}

type changePasswordResponse struct {
	Message            string `json:"message"`
	Token              string `json:"token"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

type meResponse struct {
	User userResponse `json:"user"`
}
