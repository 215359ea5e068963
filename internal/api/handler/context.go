package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/structo/structo-api/internal/api/middleware"
	"github.com/structo/structo-api/internal/core/domain"
)

// ctxSession returns the acting session injected by the Auth middleware.
// A missing session means the route was mounted without Auth; treat it as
// unauthenticated rather than panicking.
func ctxSession(c echo.Context) (*domain.Session, error) {
	session, ok := middleware.Session(c)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

// bindAndValidate decodes the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
