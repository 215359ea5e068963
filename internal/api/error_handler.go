package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/pkg/logger"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error              string `json:"error"`
	MustChangePassword bool   `json:"mustChangePassword,omitempty"`
}

// errorMapping ties a sentinel to its status code. When detailed is set the
// text wrapped after the sentinel is shown to the client.
type errorMapping struct {
	target   error
	status   int
	detailed bool
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, true},
	{domain.ErrWeakPassword, http.StatusBadRequest, false},
	{domain.ErrPasswordUnchanged, http.StatusBadRequest, false},
	{domain.ErrInvalidResetToken, http.StatusBadRequest, false},
	{domain.ErrSelfDeactivation, http.StatusBadRequest, false},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, false},
	{domain.ErrIncorrectPassword, http.StatusUnauthorized, false},
	{domain.ErrUnauthorized, http.StatusUnauthorized, false},
	{domain.ErrAccountDeactivated, http.StatusForbidden, false},
	{domain.ErrPasswordChangeRequired, http.StatusForbidden, false},
	{domain.ErrForbidden, http.StatusForbidden, true},
	{domain.ErrAccountNotFound, http.StatusNotFound, false},
	{domain.ErrAccountExists, http.StatusConflict, true},
	{domain.ErrRateLimited, http.StatusTooManyRequests, false},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.target.Error()
		if m.detailed {
			msg = detail(err, m.target)
		}
		return m.status, errorResponse{
			Error:              msg,
			MustChangePassword: errors.Is(err, domain.ErrPasswordChangeRequired),
		}
	}

	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			logUnhandled(log, c, err)
		}
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	logUnhandled(log, c, err)
	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

// detail returns the text wrapped after target's own message, falling back
// to the sentinel text when the error carries none.
func detail(err, target error) string {
	full := err.Error()
	prefix := target.Error() + ": "
	i := strings.Index(full, prefix)
	if i < 0 {
		return target.Error()
	}
	d := full[i+len(prefix):]
	if d == "" {
		return target.Error()
	}
	return strings.ToUpper(d[:1]) + d[1:]
}

func logUnhandled(log zerolog.Logger, c echo.Context, err error) {
	if reqLog, ok := logger.FromContext(c.Request().Context()); ok {
		log = reqLog
	}
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")
}
