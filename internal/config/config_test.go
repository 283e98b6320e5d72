package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Environment: "development"},
		Logger:    LoggerConfig{Level: "info"},
		Backend:   BackendConfig{Mode: BackendLocal},
		Data:      DataConfig{Path: "/var/lib/librarian"},
		Session:   SessionConfig{TTL: time.Hour},
		RateLimit: RateLimitConfig{SignInPerMinute: 10, SignInBurst: 5},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Environments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_RemoteBackendNeedsURLAndKey(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Mode = BackendRemote
	assert.ErrorContains(t, cfg.Validate(), "BACKEND_URL")

	cfg.Backend.URL = "https://example.supabase.co"
	assert.ErrorContains(t, cfg.Validate(), "BACKEND_ANON_KEY")

	cfg.Backend.AnonKey = "anon"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownBackendMode(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.Mode = "firebase"
	assert.ErrorContains(t, cfg.Validate(), "invalid backend mode")
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=7000\nLOG_LEVEL=warn\nSESSION_TTL=2h\n"), 0o600))

	t.Setenv("DATA_PATH", dir)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(Overrides{EnvFile: envFile, Port: "9090"})
	require.NoError(t, err)

	// Flag beats .env, environment beats .env, .env beats defaults.
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, BackendLocal, cfg.Backend.Mode)
	assert.Equal(t, filepath.Join(dir, "librarian.db"), cfg.Data.DatabasePath())
	assert.Equal(t, filepath.Join(dir, "sessions"), cfg.Data.SessionsPath())
}

func TestLoadConfig_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := LoadConfig(Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("BACKEND_TIMEOUT", "soon")

	_, err := LoadConfig(Overrides{EnvFile: filepath.Join(t.TempDir(), "none")})
	assert.ErrorContains(t, err, "BACKEND_TIMEOUT")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "catalog"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
