package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port        string `env:"PORT,         default=8080"`
	Env         string `env:"ENV,          default=development"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	FrontendURL string `env:"FRONTEND_URL, default=http://localhost:3000"`

	// Store selects the account store: "mongo" or "memory".
	Store string `env:"STORE, default=mongo"`

	Auth      AuthConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Mail      MailConfig
}

type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET"`
	TokenTTL          time.Duration `env:"AUTH_TOKEN_TTL,          default=168h"`
	SuperAdminAlias   string        `env:"AUTH_SUPERADMIN_ALIAS,   default=SADMIN"`
	ResetTokenTTL     time.Duration `env:"AUTH_RESET_TOKEN_TTL,    default=1h"`
	ResetCooldown     time.Duration `env:"AUTH_RESET_COOLDOWN,     default=1m"`
	RevalidateSession bool          `env:"AUTH_REVALIDATE_SESSION, default=true"`
	BcryptCost        int           `env:"AUTH_BCRYPT_COST,        default=10"`
}

type RateLimitConfig struct {
	Window         time.Duration `env:"RATE_LIMIT_WINDOW,          default=15m"`
	LoginAttempts  int           `env:"RATE_LIMIT_LOGIN_ATTEMPTS,  default=5"`
	ForgotAttempts int           `env:"RATE_LIMIT_FORGOT_ATTEMPTS, default=3"`
	// Backend is "redis" or "memory".
	Backend string `env:"RATE_LIMIT_BACKEND, default=redis"`
	// TrustedProxies are CIDRs whose X-Forwarded-For header is honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

type BootstrapConfig struct {
	SuperAdminEmail    string `env:"BOOTSTRAP_SUPERADMIN_EMAIL"`
	SuperAdminPassword string `env:"BOOTSTRAP_SUPERADMIN_PASSWORD"`
}

type MongoConfig struct {
	URI            string        `env:"MONGO_URI,             default=mongodb://localhost:27017"`
	Database       string        `env:"MONGO_DB,              default=structo"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT, default=10s"`
	MaxPoolSize    uint64        `env:"MONGO_MAX_POOL_SIZE,   default=20"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,        default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=10"`
}

type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,     default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	From         string `env:"MAIL_FROM,     default=STRUCTO <no-reply@structo.local>"`
	Workers      int    `env:"MAIL_WORKERS,  default=2"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}
	if c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_RESET_TOKEN_TTL must be positive"))
	}
	if c.Auth.ResetCooldown < 0 {
		errs = append(errs, errors.New("AUTH_RESET_COOLDOWN must not be negative"))
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.LoginAttempts <= 0 || c.RateLimit.ForgotAttempts <= 0 {
		errs = append(errs, errors.New("rate limit window and attempts must be positive"))
	}
	switch c.Store {
	case "mongo", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE must be mongo or memory, got %q", c.Store))
	}
	switch c.RateLimit.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be redis or memory, got %q", c.RateLimit.Backend))
	}
	if _, err := c.RateLimit.TrustedProxyNets(); err != nil {
		errs = append(errs, err)
	}
	if (c.Bootstrap.SuperAdminEmail == "") != (c.Bootstrap.SuperAdminPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_SUPERADMIN_EMAIL and BOOTSTRAP_SUPERADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

// TrustedProxyNets parses TRUSTED_PROXIES. A bare IP is taken as a single host.
func (r RateLimitConfig) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(r.TrustedProxies))
	for _, raw := range r.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
