package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
)

// FailurePolicy controls behavior when the shared counter store is unreachable.
type FailurePolicy string

const (
	// FailOpen falls back to the in-process sliding window limiter.
	FailOpen FailurePolicy = "fail-open"
	// FailClosed rejects admission checks with a retryable error.
	FailClosed FailurePolicy = "fail-closed"
)

// TierLimit is a (limit, window) pair for one admission tier.
type TierLimit struct {
	Limit  int `yaml:"limit"`
	Window int `yaml:"window-seconds"`
}

// WindowDuration returns the tier window as a duration.
func (t TierLimit) WindowDuration() time.Duration {
	return time.Duration(t.Window) * time.Second
}

// RedisConfig holds counter store connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RateLimitConfig holds per-tier admission limits and the outage policy.
type RateLimitConfig struct {
	Anonymous     TierLimit     `yaml:"anonymous"`
	Authenticated TierLimit     `yaml:"authenticated"`
	Premium       TierLimit     `yaml:"premium"`
	AI            TierLimit     `yaml:"ai"`
	Booking       TierLimit     `yaml:"booking"`
	FailurePolicy FailurePolicy `yaml:"failure-policy"`
}

// Config holds resolved application configuration values.
type Config struct {
	DatabaseDSN string          `yaml:"database-dsn"`
	Redis       RedisConfig     `yaml:"redis"`
	RateLimit   RateLimitConfig `yaml:"rate-limit"`
	JWT         JWTConfig       `yaml:"jwt"`
}

const defaultJWTExpiry = 30 * 24 * time.Hour

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Anonymous:     TierLimit{Limit: 10, Window: 60},
			Authenticated: TierLimit{Limit: 100, Window: 60},
			Premium:       TierLimit{Limit: 500, Window: 60},
			AI:            TierLimit{Limit: 20, Window: 60},
			Booking:       TierLimit{Limit: 5, Window: 60},
			FailurePolicy: FailOpen,
		},
		Redis: RedisConfig{Prefix: "imutis"},
		JWT:   JWTConfig{Expiry: defaultJWTExpiry},
	}
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, then applies .env and environment overrides.
// A missing config file is not an error; defaults and env values apply.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}

	cfg.normalize()
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return Config{}, fmt.Errorf("missing database dsn (set `database-dsn` in config file or %s)", EnvDBConnection)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DatabaseDSN = strings.TrimSpace(c.DatabaseDSN)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Redis.Password = strings.TrimSpace(c.Redis.Password)
	c.Redis.Prefix = strings.TrimSpace(c.Redis.Prefix)
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "imutis"
	}
	if c.Redis.DB < 0 {
		c.Redis.DB = 0
	}
	switch c.RateLimit.FailurePolicy {
	case FailOpen, FailClosed:
	default:
		c.RateLimit.FailurePolicy = FailOpen
	}
	defaults := Defaults().RateLimit
	fillTier(&c.RateLimit.Anonymous, defaults.Anonymous)
	fillTier(&c.RateLimit.Authenticated, defaults.Authenticated)
	fillTier(&c.RateLimit.Premium, defaults.Premium)
	fillTier(&c.RateLimit.AI, defaults.AI)
	fillTier(&c.RateLimit.Booking, defaults.Booking)
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = defaultJWTExpiry
	}
}

func fillTier(t *TierLimit, fallback TierLimit) {
	if t.Limit <= 0 {
		t.Limit = fallback.Limit
	}
	if t.Window <= 0 {
		t.Window = fallback.Window
	}
}
