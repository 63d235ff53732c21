// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"workflow-tracker/backend/internal/security"
)

const (
	// EnvDevelopment and EnvProduction are the recognised APP_ENV values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	aggressiveRetentionDays = 1
	defaultRetentionDays    = 30
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health/auth server. Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment ("development" or "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTSecret is the HS256 signing key: raw text, "base64:<data>" or "file:<path>".
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim set on every token.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessExpMin is the access token lifetime in minutes.
	JWTAccessExpMin int `mapstructure:"JWT_ACCESS_EXP_MIN"`
	// JWTRefreshExpDays is the refresh token lifetime in days. It also bounds the
	// stored session expiry and the refresh cookie max-age.
	JWTRefreshExpDays int `mapstructure:"JWT_REFRESH_EXP_DAYS"`
	// TokenHashSecret is the HMAC key used to hash refresh tokens before storage.
	TokenHashSecret string `mapstructure:"TOKEN_HASH_SECRET"`
	// BcryptCost is the bcrypt cost factor (4 to 31) used when hashing new passwords.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// TokenCleanupEnabled turns the revoked-session sweeper on or off.
	TokenCleanupEnabled bool `mapstructure:"TOKEN_CLEANUP_ENABLED"`
	// TokenCleanupAggressive selects a 1 day retention instead of 30 days.
	TokenCleanupAggressive bool `mapstructure:"TOKEN_CLEANUP_AGGRESSIVE"`
	// TokenCleanupRetentionDays overrides the retention window when > 0.
	TokenCleanupRetentionDays int `mapstructure:"TOKEN_CLEANUP_RETENTION_DAYS"`
	// TokenCleanupInterval is the sweep period.
	TokenCleanupInterval time.Duration `mapstructure:"TOKEN_CLEANUP_INTERVAL"`
	// TokenCleanupBatchSize caps rows removed per DELETE statement.
	TokenCleanupBatchSize int `mapstructure:"TOKEN_CLEANUP_BATCH_SIZE"`

	// CookieSecure forces the Secure attribute on the refresh cookie ("true"/"false").
	// Empty means Secure only in production.
	CookieSecure string `mapstructure:"COOKIE_SECURE"`
	// CORSAllowedOrigins is a comma-separated list of allowed browser origins.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// LoginRateLimitPerMin is the per-IP login attempt budget.
	LoginRateLimitPerMin int `mapstructure:"LOGIN_RATE_LIMIT_PER_MIN"`
	// TrustedProxies is a comma-separated list of proxy CIDRs or addresses whose
	// X-Forwarded-For / X-Real-IP headers are believed. Empty trusts no one.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables exporters.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// ServiceName is the OpenTelemetry resource service.name.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables the event stream.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SessionEventsTopic is the Kafka topic for session lifecycle events.
	SessionEventsTopic string `mapstructure:"SESSION_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
// Secrets are not checked here; the API server calls ValidateAuth.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "workflow-tracker")
	v.SetDefault("JWT_ACCESS_EXP_MIN", 30)
	v.SetDefault("JWT_REFRESH_EXP_DAYS", 7)
	v.SetDefault("TOKEN_HASH_SECRET", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TOKEN_CLEANUP_ENABLED", true)
	v.SetDefault("TOKEN_CLEANUP_AGGRESSIVE", true)
	v.SetDefault("TOKEN_CLEANUP_RETENTION_DAYS", 0)
	v.SetDefault("TOKEN_CLEANUP_INTERVAL", "10m")
	v.SetDefault("TOKEN_CLEANUP_BATCH_SIZE", 500)
	v.SetDefault("COOKIE_SECURE", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("LOGIN_RATE_LIMIT_PER_MIN", 10)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "workflow-tracker")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SESSION_EVENTS_TOPIC", "session-events")
	v.SetDefault("KAFKA_GROUP_ID", "session-events-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return nil, fmt.Errorf("config: APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Env)
	}
	if cfg.JWTAccessExpMin <= 0 {
		return nil, errors.New("config: JWT_ACCESS_EXP_MIN must be positive")
	}
	if cfg.JWTRefreshExpDays <= 0 {
		return nil, errors.New("config: JWT_REFRESH_EXP_DAYS must be positive")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.TokenCleanupRetentionDays < 0 {
		return nil, errors.New("config: TOKEN_CLEANUP_RETENTION_DAYS must not be negative")
	}
	if cfg.TokenCleanupInterval <= 0 {
		return nil, errors.New("config: TOKEN_CLEANUP_INTERVAL must be positive")
	}
	if cfg.TokenCleanupBatchSize <= 0 {
		return nil, errors.New("config: TOKEN_CLEANUP_BATCH_SIZE must be positive")
	}
	if cfg.CookieSecure != "" {
		if _, err := strconv.ParseBool(cfg.CookieSecure); err != nil {
			return nil, fmt.Errorf("config: COOKIE_SECURE: %w", err)
		}
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return nil, fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}

	return &cfg, nil
}

// ValidateAuth checks what the API server needs beyond Load: a database and
// signing/hashing secrets of at least 256 bits each.
func (c *Config) ValidateAuth() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if _, err := security.LoadSecret(c.JWTSecret); err != nil {
		return fmt.Errorf("config: JWT_SECRET: %w", err)
	}
	if _, err := security.LoadSecret(c.TokenHashSecret); err != nil {
		return fmt.Errorf("config: TOKEN_HASH_SECRET: %w", err)
	}
	return nil
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessExpMin) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshExpDays) * 24 * time.Hour
}

// CleanupRetention is how long a revoked session is kept before the sweeper deletes it.
func (c *Config) CleanupRetention() time.Duration {
	days := c.TokenCleanupRetentionDays
	if days == 0 {
		days = defaultRetentionDays
		if c.TokenCleanupAggressive {
			days = aggressiveRetentionDays
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

// SecureCookies reports whether the refresh cookie carries the Secure attribute.
func (c *Config) SecureCookies() bool {
	if c.CookieSecure == "" {
		return c.Env == EnvProduction
	}
	b, _ := strconv.ParseBool(c.CookieSecure)
	return b
}

// CORSOrigins returns the allowed origins from the comma-separated config.
func (c *Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range splitList(c.TrustedProxies) {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// KafkaBrokerList returns Kafka broker addresses from the comma-separated config.
// An empty list means the session event stream is disabled.
func (c *Config) KafkaBrokerList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
