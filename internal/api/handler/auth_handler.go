package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/api/metrics"
	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates by email, user ID, super admin alias or email local part.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.identifier(), req.Password)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusOK, loginResponse{
		Token:              res.Token,
		MustChangePassword: res.Account.MustChangePassword,
		User:               toUserResponse(res.Account),
	})
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrAccountDeactivated):
		return "deactivated"
	case errors.Is(err, domain.ErrValidation):
		return "invalid_request"
	default:
		return "error"
	}
}

// ChangePassword replaces the caller's password and returns a fresh token.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  changePasswordResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.ChangePassword(c.Request().Context(), session, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	metrics.PasswordEventsTotal.WithLabelValues("changed").Inc()

	return c.JSON(http.StatusOK, changePasswordResponse{
		Message:            "Password changed successfully",
		Token:              res.Token,
		MustChangePassword: false,
	})
}

// Me returns the caller's own account.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	account, err := h.authService.Me(c.Request().Context(), session)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, meResponse{User: toUserResponse(account)})
}

// ForgotPassword starts a password reset. The response is identical
// whether or not the email is known.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	metrics.PasswordEventsTotal.WithLabelValues("reset_requested").Inc()

	return c.JSON(http.StatusOK, messageResponse{Message: forgotPasswordMessage})
}

// ResetPassword redeems a reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	metrics.PasswordEventsTotal.WithLabelValues("reset_completed").Inc()

	return c.JSON(http.StatusOK, messageResponse{Message: "Password has been reset successfully"})
}
