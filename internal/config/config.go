package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Revocation policies for the authentication gate.
const (
	RevocationImmediate = "immediate"
	RevocationEventual  = "eventual"
)

// Password hashing algorithms.
const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

const maxStoreTimeout = 2 * time.Second

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Logger   LoggerConfig   `envPrefix:"LOG_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"NAME" envDefault:"session-service"`
	Env                   string `env:"ENV" envDefault:"development"`
	Host                  string `env:"HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"PORT" envDefault:"8080"`
	Version               string `env:"VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"DSN"`
	MaxConns       int32  `env:"MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	// JWTSecret is the base64 encoded HMAC key, at least 32 bytes once decoded.
	JWTSecret          string        `env:"JWT_SECRET,required"`
	Issuer             string        `env:"JWT_ISSUER" envDefault:"session-service"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"336h"`
	PasswordHasher     string        `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"12"`
	RevocationPolicy   string        `env:"REVOCATION_POLICY" envDefault:"immediate"`
	RotateRefreshToken bool          `env:"ROTATE_REFRESH_TOKEN" envDefault:"true"`
	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"500ms"`
	ReissueHeader      string        `env:"REISSUE_HEADER" envDefault:"Authorization"`
	PublicPaths        []string      `env:"PUBLIC_PATHS" envSeparator:"," envDefault:"/users,/users/login,/users/refresh,/users/check-username,/health/*,/docs/*"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse decodes the environment with opts and validates the result.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Auth.RevocationPolicy = strings.ToLower(strings.TrimSpace(cfg.Auth.RevocationPolicy))
	cfg.Auth.PasswordHasher = strings.ToLower(strings.TrimSpace(cfg.Auth.PasswordHasher))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the auth core cannot run with.
func (c *Config) Validate() error {
	var errs []error
	a := c.Auth
	switch a.RevocationPolicy {
	case RevocationImmediate, RevocationEventual:
	default:
		errs = append(errs, fmt.Errorf("AUTH_REVOCATION_POLICY must be %q or %q, got %q", RevocationImmediate, RevocationEventual, a.RevocationPolicy))
	}
	switch a.PasswordHasher {
	case HasherBcrypt, HasherArgon2id:
	default:
		errs = append(errs, fmt.Errorf("AUTH_PASSWORD_HASHER must be %q or %q, got %q", HasherBcrypt, HasherArgon2id, a.PasswordHasher))
	}
	if a.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL must be positive"))
	}
	if a.RefreshTokenTTL <= a.AccessTokenTTL {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_TTL must exceed AUTH_ACCESS_TOKEN_TTL"))
	}
	if a.StoreTimeout <= 0 || a.StoreTimeout > maxStoreTimeout {
		errs = append(errs, fmt.Errorf("AUTH_STORE_TIMEOUT must be within (0, %s]", maxStoreTimeout))
	}
	if strings.TrimSpace(a.ReissueHeader) == "" {
		errs = append(errs, errors.New("AUTH_REISSUE_HEADER must not be empty"))
	}
	return errors.Join(errs...)
}

// ImmediateRevocation reports whether the gate must consult the session
// store even for unexpired access tokens.
func (a AuthConfig) ImmediateRevocation() bool {
	return a.RevocationPolicy == RevocationImmediate
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}
