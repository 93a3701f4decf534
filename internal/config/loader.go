package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "classpad.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CLASSPAD_PORT")
	setString(&cfg.Server.CORSOrigin, "CLASSPAD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CLASSPAD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CLASSPAD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CLASSPAD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CLASSPAD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CLASSPAD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Key, "NATS_KEY")
	setString(&cfg.Auth.JWTSecret, "CLASSPAD_JWT_SECRET")
	setString(&cfg.Auth.CookieSecret, "CLASSPAD_COOKIE_SECRET")
	setDuration(&cfg.Auth.AccessTokenExpiry, "CLASSPAD_ACCESS_TOKEN_EXPIRY")
	setDuration(&cfg.Auth.RefreshTokenExpiry, "CLASSPAD_REFRESH_TOKEN_EXPIRY")
	setDuration(&cfg.Auth.CookieExpiry, "CLASSPAD_COOKIE_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "CLASSPAD_BCRYPT_COST")
	setString(&cfg.Auth.DefaultAdminEmail, "CLASSPAD_ADMIN_EMAIL")
	setString(&cfg.Auth.DefaultAdminPass, "CLASSPAD_ADMIN_PASS")
	setDuration(&cfg.Realtime.BroadcastTimeout, "CLASSPAD_BROADCAST_TIMEOUT")
	setString(&cfg.Logging.Level, "CLASSPAD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CLASSPAD_LOG_SERVICE")
	setFloat64(&cfg.Rate.RequestsPerSecond, "CLASSPAD_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CLASSPAD_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "CLASSPAD_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "CLASSPAD_RATE_MAX_IDLE_TIME")
	setInt64(&cfg.Cache.MaxSizeMB, "CLASSPAD_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "CLASSPAD_CACHE_TTL")
	setInt(&cfg.Breaker.MaxFailures, "CLASSPAD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CLASSPAD_BREAKER_TIMEOUT")
	setBool(&cfg.Telemetry.Enabled, "CLASSPAD_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "CLASSPAD_OTEL_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Auth.CookieSecret == "" {
		return errors.New("auth.cookie_secret is required")
	}
	if cfg.Auth.BcryptCost < 10 || cfg.Auth.BcryptCost > 31 {
		return errors.New("auth.bcrypt_cost must be between 10 and 31")
	}
	if cfg.Realtime.BroadcastTimeout <= 0 {
		return errors.New("realtime.broadcast_timeout must be positive")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
