// Package config loads application configuration from command-line flags,
// environment variables, a .env file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend modes.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Backend   BackendConfig
	Data      DataConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// IsDevelopment reports whether the app runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TemplateDir, when set, serves templates from disk and reloads them on change.
	TemplateDir string
	CORSOrigins []string
}

// BackendConfig selects and configures the backend-as-a-service.
type BackendConfig struct {
	Mode    string // local or remote
	URL     string // remote only
	AnonKey string // remote only
	Timeout time.Duration
}

// DataConfig holds on-disk locations and local backend token lifetimes.
type DataConfig struct {
	Path                 string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// DatabasePath is the SQLite file used by the local backend.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.Path, "librarian.db")
}

// SessionsPath is the Badger directory holding visitor sessions.
func (d DataConfig) SessionsPath() string {
	return filepath.Join(d.Path, "sessions")
}

// KeyPath is the file holding the symmetric PASETO key.
func (d DataConfig) KeyPath() string {
	return filepath.Join(d.Path, "auth.key")
}

// SessionConfig controls browser visitor sessions.
type SessionConfig struct {
	CookieName    string
	SecureCookie  bool
	TTL           time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig limits sign-in attempts per client IP.
type RateLimitConfig struct {
	SignInPerMinute int
	SignInBurst     int
}

// Overrides carries command-line flag values. Empty fields fall through
// to the environment.
type Overrides struct {
	EnvFile     string
	Environment string
	LogLevel    string
	Port        string
	BackendMode string
	BackendURL  string
	DataPath    string
	TemplateDir string
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Environment, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(o.LogLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(o.Port, "SERVER_PORT", "8080"),
			TemplateDir: getConfigValue(o.TemplateDir, "TEMPLATE_DIR", ""),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "")),
		},
		Backend: BackendConfig{
			Mode:    strings.ToLower(getConfigValue(o.BackendMode, "BACKEND_MODE", BackendLocal)),
			URL:     strings.TrimRight(getConfigValue(o.BackendURL, "BACKEND_URL", ""), "/"),
			AnonKey: getConfigValue("", "BACKEND_ANON_KEY", ""),
		},
		Data: DataConfig{
			Path: getConfigValue(o.DataPath, "DATA_PATH", ""),
		},
		Session: SessionConfig{
			CookieName:   getConfigValue("", "SESSION_COOKIE", "librarian_visitor"),
			SecureCookie: getBoolConfigValue("", "SESSION_SECURE_COOKIE", false),
		},
		RateLimit: RateLimitConfig{
			SignInPerMinute: getIntConfigValue("", "SIGNIN_RATE_PER_MINUTE", 10),
			SignInBurst:     getIntConfigValue("", "SIGNIN_RATE_BURST", 5),
		},
	}

	durations := []struct {
		dst      *time.Duration
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Backend.Timeout, "BACKEND_TIMEOUT", "10s"},
		{&cfg.Data.AccessTokenDuration, "ACCESS_TOKEN_DURATION", "1h"},
		{&cfg.Data.RefreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h"},
		{&cfg.Session.TTL, "SESSION_TTL", "168h"},
		{&cfg.Session.SweepInterval, "SESSION_SWEEP_INTERVAL", "5m"},
	}
	for _, d := range durations {
		raw := getConfigValue("", d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Backend.Mode {
	case BackendLocal:
	case BackendRemote:
		if c.Backend.URL == "" {
			return errors.New("BACKEND_URL is required in remote mode")
		}
		if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
			return fmt.Errorf("invalid BACKEND_URL: %w", err)
		}
		if c.Backend.AnonKey == "" {
			return errors.New("BACKEND_ANON_KEY is required in remote mode")
		}
	default:
		return fmt.Errorf("invalid backend mode: %s (must be local or remote)", c.Backend.Mode)
	}

	if c.Data.Path == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	if c.RateLimit.SignInPerMinute <= 0 || c.RateLimit.SignInBurst <= 0 {
		return errors.New("sign-in rate limit and burst must be positive")
	}

	return nil
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataPath, err := expandPath(c.Data.Path, filepath.Join(homeDir, ".librarian"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.Data.Path = dataPath

	if c.Server.TemplateDir != "" {
		dir, err := expandPath(c.Server.TemplateDir, "")
		if err != nil {
			return fmt.Errorf("invalid template dir: %w", err)
		}
		c.Server.TemplateDir = dir
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
