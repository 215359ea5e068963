package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

const sessionKey = "session"

// Auth validates the bearer token and stores the acting session in the
// context. When refresher is non-nil the session is reconciled with the
// stored account on every request.
func Auth(verifier ports.SessionVerifier, refresher ports.SessionRefresher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return domain.ErrUnauthorized
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return domain.ErrUnauthorized
			}

			session, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}

			if refresher != nil {
				session, err = refresher.RefreshSession(c.Request().Context(), session)
				if err != nil {
					return err
				}
			}

			SetSession(c, session)
			return next(c)
		}
	}
}

// Session returns the session stored by Auth.
func Session(c echo.Context) (*domain.Session, bool) {
	s, ok := c.Get(sessionKey).(*domain.Session)
	return s, ok && s != nil
}

// SetSession stores s as the acting session.
func SetSession(c echo.Context, s *domain.Session) {
	c.Set(sessionKey, s)
}
