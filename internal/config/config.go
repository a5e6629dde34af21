// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int           `toml:"port"`
	Host           string        `toml:"host"`
	MetricsEnabled bool          `toml:"metrics_enabled"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// SessionConfig controls how thread sessions are created and identified
type SessionConfig struct {
	FixturePath string        `toml:"fixture_path"` // empty selects the embedded fixture
	TokenSecret string        `toml:"token_secret"`
	TokenTTL    time.Duration `toml:"token_ttl"`
	MaxSessions int           `toml:"max_sessions"` // 0 means unlimited
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// Config holds the complete application configuration
type Config struct {
	Server         ServerConfig  `toml:"server"`
	Session        SessionConfig `toml:"session"`
	Log            LogConfig     `toml:"log"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	Debug          bool          `toml:"debug"`
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
		RequestTimeout: 5 * time.Second,
	}
}

// DefaultSessionConfig provides default session settings
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		TokenSecret: "comment_thread_dev_secret",
		TokenTTL:    24 * time.Hour,
		MaxSessions: 1000,
	}
}

// Default returns a complete configuration with defaults only.
func Default() *Config {
	return &Config{
		Server:         *DefaultConfig(),
		Session:        *DefaultSessionConfig(),
		Log:            LogConfig{Level: "info", Format: "text"},
		AllowedOrigins: []string{"*"},
	}
}

// LoadConfig loads configuration from an optional TOML file (CONFIG_FILE),
// then environment variables (including .env files) and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from the usual locations; a missing file is fine.
	for _, location := range []string{".env", "../../.env"} {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}

	config := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		config.Server.Port = port
	}

	if host := os.Getenv("HOST"); host != "" {
		config.Server.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		config.Server.MetricsEnabled = metricsEnabled == "true"
	}

	if err := durationFromEnv("REQUEST_TIMEOUT", &config.Server.RequestTimeout); err != nil {
		return err
	}

	config.Session.FixturePath = getEnvOrDefault("FIXTURE_PATH", config.Session.FixturePath)
	config.Session.TokenSecret = getEnvOrDefault("TOKEN_SECRET", config.Session.TokenSecret)

	if err := durationFromEnv("TOKEN_TTL", &config.Session.TokenTTL); err != nil {
		return err
	}

	if maxStr := os.Getenv("MAX_SESSIONS"); maxStr != "" {
		max, err := strconv.Atoi(maxStr)
		if err != nil {
			return fmt.Errorf("invalid MAX_SESSIONS %q: %w", maxStr, err)
		}
		config.Session.MaxSessions = max
	}

	config.Log.Level = getEnvOrDefault("LOG_LEVEL", config.Log.Level)
	config.Log.Format = getEnvOrDefault("LOG_FORMAT", config.Log.Format)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
		config.Log.Level = "debug"
	}

	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Session.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET must not be empty")
	}
	if c.Session.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative")
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationFromEnv(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = d
	return nil
}
