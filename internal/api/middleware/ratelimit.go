package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/structo/structo-api/internal/api/metrics"
	"github.com/structo/structo-api/internal/core/domain"
)

// RateLimit throttles requests per client IP using store. policy names the
// limit in metrics; window is advertised through Retry-After on denial.
func RateLimit(policy string, store echomiddleware.RateLimiterStore, window time.Duration) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			metrics.RateLimitedTotal.WithLabelValues(policy).Inc()
			c.Response().Header().Set("Retry-After", retryAfter)
			return domain.ErrRateLimited
		},
	})
}
