package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/crewbase/crewbase/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig

	// Logging
	LogLevel observability.LogLevel

	// Debug disables the logout blacklist and routes OTP delivery to the log.
	Debug bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DBConfig holds PostgreSQL configuration
type DBConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the volatile-store configuration used by the logout
// blacklist and the rate limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token and credential lifecycle settings
type AuthConfig struct {
	// Secret signs session and reset-session tokens (HS256).
	Secret string

	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	OTPTTL         time.Duration

	// Rate limit ceilings for the password-reset flow, per (email, ip).
	ResetStartLimit  int
	ResetVerifyLimit int
	ResetLimitWindow time.Duration

	// TOTP issuer shown in authenticator apps.
	TOTPIssuer string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CREWBASE_HOST", "0.0.0.0"),
			Port:            getEnv("CREWBASE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CREWBASE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CREWBASE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CREWBASE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CREWBASE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CREWBASE_HEALTH_PORT", "9090"),
		},
		DB: DBConfig{
			URL:          getEnv("CREWBASE_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CREWBASE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("CREWBASE_POSTGRES_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CREWBASE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CREWBASE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CREWBASE_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Secret:           getEnv("CREWBASE_AUTH_SECRET", ""),
			AccessTokenTTL:   getEnvDuration("CREWBASE_ACCESS_TOKEN_TTL", 60*time.Minute),
			ResetTokenTTL:    getEnvDuration("CREWBASE_RESET_TOKEN_TTL", 15*time.Minute),
			OTPTTL:           getEnvDuration("CREWBASE_OTP_TTL", 10*time.Minute),
			ResetStartLimit:  getEnvInt("CREWBASE_RESET_START_LIMIT", 5),
			ResetVerifyLimit: getEnvInt("CREWBASE_RESET_VERIFY_LIMIT", 10),
			ResetLimitWindow: getEnvDuration("CREWBASE_RESET_LIMIT_WINDOW", 15*time.Minute),
			TOTPIssuer:       getEnv("CREWBASE_TOTP_ISSUER", "Crewbase"),
		},
		LogLevel: observability.ParseLogLevel(getEnv("CREWBASE_LOG_LEVEL", "info")),
		Debug:    getEnvBool("CREWBASE_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for common errors
func (c *Config) Validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("CREWBASE_POSTGRES_URL is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("CREWBASE_AUTH_SECRET is required")
	}
	if len(c.Auth.Secret) < 32 {
		return fmt.Errorf("CREWBASE_AUTH_SECRET must be at least 32 bytes")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("reset token TTL must be positive")
	}
	if c.Auth.ResetStartLimit <= 0 || c.Auth.ResetVerifyLimit <= 0 {
		return fmt.Errorf("rate limit ceilings must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
