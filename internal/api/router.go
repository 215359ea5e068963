package api

import (
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/structo/structo-api/docs"
	"github.com/structo/structo-api/internal/api/handler"
	"github.com/structo/structo-api/internal/api/middleware"
	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
	"github.com/structo/structo-api/pkg/logger"
)

// Rate-limit policy names, used as metric labels.
const (
	PolicyLogin          = "login"
	PolicyForgotPassword = "forgot_password"
)

// Deps carries everything the router wires into handlers and middleware.
type Deps struct {
	Auth      ports.AuthService
	Users     ports.UserService
	Dashboard ports.DashboardService

	Verifier ports.SessionVerifier
	// Refresher is optional; nil trusts token claims until expiry.
	Refresher ports.SessionRefresher

	LoginLimiter  echomiddleware.RateLimiterStore
	ForgotLimiter echomiddleware.RateLimiterStore
	RateWindow    time.Duration

	// Health lists the dependencies checked by the readiness probe.
	Health map[string]handler.Pinger

	// TrustedProxies lists the proxy ranges whose X-Forwarded-For is
	// believed. Empty means the client IP is the connection peer.
	TrustedProxies []*net.IPNet

	FrontendURL string
	Log         zerolog.Logger

	// Registry receives the HTTP metrics. Nil uses the Prometheus default
	// registry, which also holds the domain metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(deps.TrustedProxies)
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestContext(deps.Log))
	e.Use(requestLogger(deps.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{deps.FrontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	registerMetrics(e, deps.Registry)

	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Users)
	dashboardHandler := handler.NewDashboardHandler(deps.Dashboard)
	healthHandler := handler.NewHealthHandler(deps.Health)

	authenticated := middleware.Auth(deps.Verifier, deps.Refresher)
	passwordGate := middleware.RequirePasswordChanged()

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login, middleware.RateLimit(PolicyLogin, deps.LoginLimiter, deps.RateWindow))
	auth.POST("/forgot-password", authHandler.ForgotPassword, middleware.RateLimit(PolicyForgotPassword, deps.ForgotLimiter, deps.RateWindow))
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.POST("/change-password", authHandler.ChangePassword, authenticated)
	auth.GET("/me", authHandler.Me, authenticated, passwordGate)

	// --- User administration ---
	users := e.Group("/users", authenticated, passwordGate, middleware.RBAC(domain.RoleSuperAdmin, domain.RoleAdmin))
	users.GET("", userHandler.List)
	users.GET("/roles", userHandler.AssignableRoles)
	users.POST("/create", userHandler.Create)
	users.PATCH("/:id/deactivate", userHandler.Deactivate)
	users.PATCH("/:id/activate", userHandler.Activate)

	e.GET("/dashboard/stats", dashboardHandler.Stats, authenticated, passwordGate)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// ipExtractor resolves the client IP used for rate limiting and logs.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func registerMetrics(e *echo.Echo, registry *prometheus.Registry) {
	if registry == nil {
		e.Use(echoprometheus.NewMiddleware("structo"))
		e.GET("/metrics", echoprometheus.NewHandler())
		return
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "structo",
		Registerer: registry,
	}))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

// requestContext puts a logger tagged with the request ID into the request context.
func requestContext(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequest(req.Context(), log, id)))
			return next(c)
		}
	}
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
