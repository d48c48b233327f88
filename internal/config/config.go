package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Password hashing algorithms.
const (
	PasswordBcrypt   = "bcrypt"
	PasswordArgon2id = "argon2id"
)

// DevJWTSecret is the fallback signing secret; rejected outside development.
const DevJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Throttle     ThrottleConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"user-profile-service"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"memory"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path          string `env:"SQLITE_PATH" envDefault:"profile-service.db"`
	RunMigrations bool   `env:"SQLITE_RUN_MIGRATIONS" envDefault:"true"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string `env:"AUTH_JWT_SECRET" envDefault:"dev-secret"`
	JWTIssuer              string `env:"AUTH_JWT_ISSUER" envDefault:"user-profile-service"`
	AccessTokenTTLMinutes  int    `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES" envDefault:"60"`
	RefreshTokenTTLMinutes int    `env:"AUTH_REFRESH_TOKEN_TTL_MINUTES" envDefault:"10080"`
	PasswordAlgorithm      string `env:"AUTH_PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost             int    `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	Argon2MemoryKB         uint32 `env:"AUTH_ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2Time             uint32 `env:"AUTH_ARGON2_TIME" envDefault:"3"`
	Argon2Parallelism      uint8  `env:"AUTH_ARGON2_PARALLELISM" envDefault:"2"`
	MinPasswordLength      int    `env:"AUTH_MIN_PASSWORD_LENGTH" envDefault:"8"`
}

// ThrottleConfig bounds failed login attempts. Requires Redis.
//
// MaxAttempts applies per (email, client IP) pair, so failures from one address
// never lock the account for callers on another address. MaxAttemptsPerIP is a
// coarser budget across all emails tried from one address. A distributed attacker
// guessing one account is bounded only by the per-pair budget on each address.
type ThrottleConfig struct {
	Enabled          bool `env:"LOGIN_THROTTLE_ENABLED" envDefault:"true"`
	MaxAttempts      int  `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	MaxAttemptsPerIP int  `env:"LOGIN_MAX_ATTEMPTS_PER_IP" envDefault:"50"`
	CooldownSeconds  int  `env:"LOGIN_COOLDOWN_SECONDS" envDefault:"900"`
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string `env:"NOTIFY_EMAIL_FROM" envDefault:"noreply@example.com"`
	WebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

// Load reads configuration from the environment (and an optional .env file), applying defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Auth.PasswordAlgorithm = strings.ToLower(strings.TrimSpace(cfg.Auth.PasswordAlgorithm))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver))
	}

	switch c.Auth.PasswordAlgorithm {
	case PasswordBcrypt, PasswordArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_PASSWORD_ALGORITHM %q", c.Auth.PasswordAlgorithm))
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	} else if c.App.IsProduction() && c.Auth.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}

	if c.Auth.MinPasswordLength < 1 {
		errs = append(errs, errors.New("AUTH_MIN_PASSWORD_LENGTH must be positive"))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs in a production environment.
func (a AppConfig) IsProduction() bool {
	env := strings.ToLower(a.Env)
	return env == "production" || env == "prod"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLMinutes) * time.Minute
}

// Cooldown returns how long a locked key stays locked.
func (t ThrottleConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownSeconds) * time.Second
}
