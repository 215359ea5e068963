// @title                       Structo API
// @version                     1.0
// @description                 Account, session and role administration for Structo.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the session token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	echomiddleware "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/api"
	"github.com/structo/structo-api/internal/api/handler"
	"github.com/structo/structo-api/internal/api/metrics"
	"github.com/structo/structo-api/internal/core/ports"
	"github.com/structo/structo-api/internal/core/service"
	"github.com/structo/structo-api/internal/infrastructure/config"
	"github.com/structo/structo-api/internal/infrastructure/db/memory"
	"github.com/structo/structo-api/internal/infrastructure/db/mongo"
	"github.com/structo/structo-api/internal/infrastructure/db/redis"
	"github.com/structo/structo-api/internal/infrastructure/mail"
	"github.com/structo/structo-api/internal/infrastructure/queue"
	"github.com/structo/structo-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "structo-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "structo-api",
	})

	health := make(map[string]handler.Pinger)

	repo, closeStore, err := openAccountStore(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeStore()

	limits, err := openLimiters(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer limits.close()

	// --- Mail ---
	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, sender, logger.Component("mail"))
	dispatcher.Start(ctx)
	defer dispatcher.Close()
	notifier := mail.NewNotifier(dispatcher, log)

	// --- Core services ---
	hasher, err := service.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	sessions := service.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	resolver := service.NewCredentialResolver(repo, hasher, cfg.Auth.SuperAdminAlias)
	authService := service.NewAuthService(repo, resolver, sessions, hasher, notifier, service.AuthOptions{
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
		FrontendURL:   cfg.FrontendURL,
		Cooldown:      limits.cooldown,
	}, logger.Component("auth"))
	userService := service.NewUserService(repo, hasher, notifier, cfg.FrontendURL, logger.Component("users"))

	if cfg.Bootstrap.SuperAdminEmail != "" {
		created, err := userService.EnsureSuperAdmin(ctx, cfg.Bootstrap.SuperAdminEmail, cfg.Bootstrap.SuperAdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap super admin: %w", err)
		}
		if created {
			log.Info().Str("email", cfg.Bootstrap.SuperAdminEmail).Msg("super admin account created")
		}
	}

	trusted, err := cfg.RateLimit.TrustedProxyNets()
	if err != nil {
		return err
	}

	var refresher ports.SessionRefresher
	if cfg.Auth.RevalidateSession {
		refresher = authService
	}

	e := api.NewRouter(api.Deps{
		Auth:           authService,
		Users:          userService,
		Dashboard:      service.NewDashboardService(repo),
		Verifier:       sessions,
		Refresher:      refresher,
		LoginLimiter:   limits.login,
		ForgotLimiter:  limits.forgot,
		RateWindow:     cfg.RateLimit.Window,
		Health:         health,
		TrustedProxies: trusted,
		FrontendURL:    cfg.FrontendURL,
		Log:            log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

func openAccountStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, health map[string]handler.Pinger) (ports.AccountRepository, func(), error) {
	if cfg.Store == "memory" {
		log.Warn().Msg("using in-memory account store, data is lost on restart")
		return memory.NewAccountRepository(), func() {}, nil
	}

	store, err := mongo.Open(ctx, mongo.Config{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(5 * time.Second); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}

	repo := mongo.NewAccountRepository(store.DB)
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}

	health["mongodb"] = handler.PingerFunc(store.Ping)
	return repo, closeFn, nil
}

// limiters groups the abuse controls that share one backend.
type limiters struct {
	login    echomiddleware.RateLimiterStore
	forgot   echomiddleware.RateLimiterStore
	cooldown ports.ResetCooldown
	close    func()
}

func openLimiters(ctx context.Context, cfg *config.Config, log zerolog.Logger, health map[string]handler.Pinger) (*limiters, error) {
	rl := cfg.RateLimit
	if rl.Backend == "memory" {
		loginStore := memory.NewRateLimitStore(rl.LoginAttempts, rl.Window)
		forgotStore := memory.NewRateLimitStore(rl.ForgotAttempts, rl.Window)
		sweepers := []sweeper{loginStore, forgotStore}

		l := &limiters{login: loginStore, forgot: forgotStore}
		if cfg.Auth.ResetCooldown > 0 {
			cd := memory.NewResetCooldown(cfg.Auth.ResetCooldown)
			l.cooldown = cd
			sweepers = append(sweepers, cd)
		}

		sweepCtx, cancel := context.WithCancel(ctx)
		go sweepLoop(sweepCtx, rl.Window, sweepers...)
		l.close = cancel
		return l, nil
	}

	client, err := redis.Open(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, err
	}
	health["redis"] = handler.PingerFunc(func(ctx context.Context) error {
		return redis.Ping(ctx, client)
	})

	l := &limiters{
		login:  newRedisLimiter(client, api.PolicyLogin, rl.LoginAttempts, rl.Window, log),
		forgot: newRedisLimiter(client, api.PolicyForgotPassword, rl.ForgotAttempts, rl.Window, log),
		close:  func() { _ = client.Close() },
	}
	if cfg.Auth.ResetCooldown > 0 {
		l.cooldown = redis.NewResetCooldown(client, cfg.Auth.ResetCooldown)
	}
	return l, nil
}

func newRedisLimiter(client *goredis.Client, policy string, limit int, window time.Duration, log zerolog.Logger) *redis.RateLimitStore {
	store := redis.NewRateLimitStore(client, policy, limit, window, log.With().Str("policy", policy).Logger())
	store.OnError = func(error) {
		metrics.RateLimitStoreErrorsTotal.WithLabelValues(policy).Inc()
	}
	return store
}

type sweeper interface{ Sweep() }

func sweepLoop(ctx context.Context, every time.Duration, stores ...sweeper) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range stores {
				s.Sweep()
			}
		}
	}
}

func newSender(cfg *config.Config, log zerolog.Logger) (mail.Sender, error) {
	if cfg.Mail.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST not set, outgoing mail is logged instead of sent")
		return mail.NewLogSender(log), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.SMTPUsername,
		Password: cfg.Mail.SMTPPassword,
		From:     cfg.Mail.From,
	})
}
