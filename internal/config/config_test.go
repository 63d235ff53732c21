package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %q, want %q", cfg.Env, EnvDevelopment)
	}
	if cfg.JWTIssuer != "workflow-tracker" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "workflow-tracker")
	}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if !cfg.TokenCleanupEnabled {
		t.Error("TokenCleanupEnabled should default to true")
	}
	if cfg.TokenCleanupInterval != 10*time.Minute {
		t.Errorf("TokenCleanupInterval = %v, want 10m", cfg.TokenCleanupInterval)
	}
	if cfg.CleanupRetention() != 24*time.Hour {
		t.Errorf("CleanupRetention = %v, want 24h", cfg.CleanupRetention())
	}
	if cfg.TokenCleanupBatchSize != 500 {
		t.Errorf("TokenCleanupBatchSize = %d, want 500", cfg.TokenCleanupBatchSize)
	}
	if cfg.SecureCookies() {
		t.Error("SecureCookies should be false in development")
	}
	if got := cfg.CORSOrigins(); len(got) != 1 || got[0] != "http://localhost:5173" {
		t.Errorf("CORSOrigins = %v", got)
	}
	if cfg.SessionEventsTopic != "session-events" {
		t.Errorf("SessionEventsTopic = %q", cfg.SessionEventsTopic)
	}
	if cfg.KafkaBrokerList() != nil {
		t.Errorf("KafkaBrokerList = %v, want nil", cfg.KafkaBrokerList())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("JWT_ACCESS_EXP_MIN", "5")
	t.Setenv("JWT_REFRESH_EXP_DAYS", "2")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("TOKEN_CLEANUP_ENABLED", "false")
	t.Setenv("TOKEN_CLEANUP_INTERVAL", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":7000")
	}
	if cfg.AccessTTL() != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 48*time.Hour {
		t.Errorf("RefreshTTL = %v, want 48h", cfg.RefreshTTL())
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.TokenCleanupEnabled {
		t.Error("TokenCleanupEnabled should be false")
	}
	if cfg.TokenCleanupInterval != 30*time.Second {
		t.Errorf("TokenCleanupInterval = %v, want 30s", cfg.TokenCleanupInterval)
	}
	brokers := cfg.KafkaBrokerList()
	if len(brokers) != 2 || brokers[0] != "k1:9092" || brokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokerList = %v", brokers)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bcrypt too low", "BCRYPT_COST", "3"},
		{"bcrypt too high", "BCRYPT_COST", "32"},
		{"zero access ttl", "JWT_ACCESS_EXP_MIN", "0"},
		{"negative refresh ttl", "JWT_REFRESH_EXP_DAYS", "-1"},
		{"unknown env", "APP_ENV", "staging"},
		{"negative retention", "TOKEN_CLEANUP_RETENTION_DAYS", "-3"},
		{"zero batch", "TOKEN_CLEANUP_BATCH_SIZE", "0"},
		{"bad cookie flag", "COOKIE_SECURE", "maybe"},
		{"bad trusted proxy", "TRUSTED_PROXIES", "10.0.0.0/8,not-an-ip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestCleanupRetention(t *testing.T) {
	tests := []struct {
		name       string
		aggressive bool
		days       int
		want       time.Duration
	}{
		{"aggressive", true, 0, 24 * time.Hour},
		{"relaxed", false, 0, 30 * 24 * time.Hour},
		{"explicit wins", true, 3, 72 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{TokenCleanupAggressive: tt.aggressive, TokenCleanupRetentionDays: tt.days}
			if got := c.CleanupRetention(); got != tt.want {
				t.Errorf("CleanupRetention = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSecureCookies(t *testing.T) {
	if !(&Config{Env: EnvProduction}).SecureCookies() {
		t.Error("production should default to secure cookies")
	}
	if (&Config{Env: EnvProduction, CookieSecure: "false"}).SecureCookies() {
		t.Error("explicit COOKIE_SECURE=false should win")
	}
	if !(&Config{Env: EnvDevelopment, CookieSecure: "true"}).SecureCookies() {
		t.Error("explicit COOKIE_SECURE=true should win")
	}
}

func TestValidateAuth(t *testing.T) {
	valid := Config{DatabaseURL: "postgres://localhost/db", JWTSecret: testSecret, TokenHashSecret: testSecret}
	if err := valid.ValidateAuth(); err != nil {
		t.Fatalf("ValidateAuth: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantKey string
	}{
		{"missing dsn", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"short hash secret", func(c *Config) { c.TokenHashSecret = "0123456789" }, "TOKEN_HASH_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.ValidateAuth()
			if err == nil {
				t.Fatal("ValidateAuth should fail")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error %q should mention %s", err, tt.wantKey)
			}
		})
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	c := &Config{TrustedProxies: " 10.0.0.0/8, 192.168.1.7 ,"}
	prefixes, err := c.TrustedProxyPrefixes()
	if err != nil {
		t.Fatalf("TrustedProxyPrefixes: %v", err)
	}
	if len(prefixes) != 2 {
		t.Fatalf("got %v, want 2 prefixes", prefixes)
	}
	if prefixes[0].String() != "10.0.0.0/8" || prefixes[1].String() != "192.168.1.7/32" {
		t.Errorf("prefixes = %v", prefixes)
	}
	if got, _ := (&Config{}).TrustedProxyPrefixes(); len(got) != 0 {
		t.Errorf("empty config should trust no proxy, got %v", got)
	}
}
