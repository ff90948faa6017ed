package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, 3*time.Second, cfg.Sync.PollInterval)
	require.True(t, cfg.History.Enabled)
	require.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(cfg *Config) { cfg.API.BaseURL = " " },
			wantErr: "api.base_url",
		},
		{
			name:    "timeout too small",
			mutate:  func(cfg *Config) { cfg.API.Timeout = 100 * time.Millisecond },
			wantErr: "api.timeout",
		},
		{
			name:    "poll interval below floor",
			mutate:  func(cfg *Config) { cfg.Sync.PollInterval = 100 * time.Millisecond },
			wantErr: "sync.poll_interval",
		},
		{
			name:    "negative busy timeout",
			mutate:  func(cfg *Config) { cfg.History.BusyTimeoutMs = -1 },
			wantErr: "history.busy_timeout_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/data"
	require.Equal(t, filepath.Join("/data", "history.db"), cfg.HistoryPath())

	cfg.History.Path = "/elsewhere/archive.db"
	require.Equal(t, "/elsewhere/archive.db", cfg.HistoryPath())
}

func TestBearerTokenPrecedence(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("file-token\n"), 0600))

	cfg := DefaultConfig()
	cfg.API.Token = "inline-token"
	cfg.API.TokenFile = tokenFile

	// Environment wins over everything.
	t.Setenv("MEDICHAT_API_TOKEN", "env-token")
	token, err := cfg.BearerToken()
	require.NoError(t, err)
	require.Equal(t, "env-token", token)

	// Then the token file, trimmed.
	t.Setenv("MEDICHAT_API_TOKEN", "")
	token, err = cfg.BearerToken()
	require.NoError(t, err)
	require.Equal(t, "file-token", token)

	// Then the inline value.
	cfg.API.TokenFile = ""
	token, err = cfg.BearerToken()
	require.NoError(t, err)
	require.Equal(t, "inline-token", token)

	// Nothing configured is an error.
	cfg.API.Token = ""
	_, err = cfg.BearerToken()
	require.Error(t, err)
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("MEDICHAT_API_BASE_URL", "https://portal.example.org/api")
	t.Setenv("MEDICHAT_SYNC_POLL_INTERVAL", "5s")

	cfg, err := LoadDefault()
	require.NoError(t, err)
	require.Equal(t, "https://portal.example.org/api", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
}
