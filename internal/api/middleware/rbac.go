package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/core/domain"
)

// RBAC enforces role-based access control from the session claims.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, ok := Session(c)
			if !ok {
				return domain.ErrUnauthorized
			}
			if err := domain.RequireRole(session.Role, allowedRoles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequirePasswordChanged blocks every request whose session still carries
// the forced password change flag.
func RequirePasswordChanged() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, ok := Session(c)
			if !ok {
				return domain.ErrUnauthorized
			}
			if session.MustChangePassword {
				return domain.ErrPasswordChangeRequired
			}
			return next(c)
		}
	}
}
