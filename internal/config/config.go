// Package config handles medichat configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for medichat.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// API settings for the portal messaging endpoints
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Sync settings for the polling loop
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// History settings for the local message history store
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global medichat settings.
type GlobalConfig struct {
	// DataDir is where medichat stores its data (default: ~/.local/share/medichat).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/medichat).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// APIConfig contains portal API settings.
type APIConfig struct {
	// BaseURL is the portal API root, e.g. https://portal.example.org/api.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Token is the bearer credential. Prefer TokenFile or the
	// MEDICHAT_API_TOKEN environment variable over this field.
	Token string `yaml:"token" mapstructure:"token"`

	// TokenFile is a file containing the bearer credential.
	TokenFile string `yaml:"token_file" mapstructure:"token_file"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SyncConfig contains polling loop settings.
type SyncConfig struct {
	// PollInterval is how often the conversation list and the open
	// thread are refreshed.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// HistoryConfig contains local history store settings.
type HistoryConfig struct {
	// Enabled toggles the sqlite history store.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Path is the sqlite database file path (default: DataDir/history.db).
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows timestamps next to messages.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "medichat"),
			ConfigDir: filepath.Join(homeDir, ".config", "medichat"),
		},
		API: APIConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval: 3 * time.Second,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "", // Will be set to DataDir/history.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}

	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1s")
	}

	if c.Sync.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 500ms")
	}

	if c.History.Enabled && c.History.BusyTimeoutMs < 0 {
		return fmt.Errorf("history.busy_timeout_ms must not be negative")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// HistoryPath returns the full history database path.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Global.DataDir, "history.db")
}

// BearerToken resolves the bearer credential with precedence:
// MEDICHAT_API_TOKEN env var > token file > inline token.
func (c *Config) BearerToken() (string, error) {
	if env := strings.TrimSpace(os.Getenv("MEDICHAT_API_TOKEN")); env != "" {
		return env, nil
	}

	if c.API.TokenFile != "" {
		raw, err := os.ReadFile(c.API.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return "", fmt.Errorf("token file %s is empty", c.API.TokenFile)
		}
		return token, nil
	}

	if token := strings.TrimSpace(c.API.Token); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no bearer credential configured (set api.token, api.token_file, or MEDICHAT_API_TOKEN)")
}
