package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Set up Viper
	l.setupViper(cfg)

	// Load config file
	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply env var overrides (Viper's Unmarshal doesn't properly merge env vars for nested structs)
	l.applyEnvOverrides(cfg)

	// Expand ~ in paths
	expandPaths(cfg)

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.API.TokenFile = expandTilde(cfg.API.TokenFile)
	cfg.History.Path = expandTilde(cfg.History.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "medichat"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "medichat"))
	}

	// Current directory
	v.AddConfigPath(".")

	// Environment variables - MEDICHAT_ prefix
	v.SetEnvPrefix("MEDICHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults from config struct
	l.setDefaults(cfg)

	// Explicitly bind environment variables (Viper's Unmarshal has issues without this)
	bindEnvVars(v)

	// AutomaticEnv for any keys not explicitly bound
	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Global
	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	// API
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.token", cfg.API.Token)
	v.SetDefault("api.token_file", cfg.API.TokenFile)
	v.SetDefault("api.timeout", cfg.API.Timeout)

	// Sync
	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)

	// History
	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("history.busy_timeout_ms", cfg.History.BusyTimeoutMs)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// TUI
	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("tui.show_timestamps", cfg.TUI.ShowTimestamps)
	v.SetDefault("tui.compact_mode", cfg.TUI.CompactMode)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless
// explicitly bound. This ensures MEDICHAT_* env vars work correctly.
func bindEnvVars(v *viper.Viper) {
	envBindings := []string{
		// Global
		"global.data_dir",
		"global.config_dir",
		// API
		"api.base_url",
		"api.token",
		"api.token_file",
		"api.timeout",
		// Sync
		"sync.poll_interval",
		// History
		"history.enabled",
		"history.path",
		"history.busy_timeout_ms",
		// Logging
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.enable_caller",
		// TUI
		"tui.theme",
		"tui.show_timestamps",
		"tui.compact_mode",
	}

	for _, key := range envBindings {
		// Convert key to env var format: api.base_url -> MEDICHAT_API_BASE_URL
		envSuffix := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, "MEDICHAT_"+envSuffix)
	}
}

// applyEnvOverrides manually applies env var overrides to the config struct.
// This is needed because Viper's Unmarshal doesn't properly merge env vars
// for nested struct fields when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	// Global
	if dataDir := v.GetString("global.data_dir"); dataDir != "" {
		cfg.Global.DataDir = dataDir
	}
	if configDir := v.GetString("global.config_dir"); configDir != "" {
		cfg.Global.ConfigDir = configDir
	}

	// API
	if baseURL := v.GetString("api.base_url"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if token := v.GetString("api.token"); token != "" {
		cfg.API.Token = token
	}
	if tokenFile := v.GetString("api.token_file"); tokenFile != "" {
		cfg.API.TokenFile = tokenFile
	}

	// History
	if path := v.GetString("history.path"); path != "" {
		cfg.History.Path = path
	}

	// Logging
	if level := v.GetString("logging.level"); level != "" && level != "info" { // "info" is default
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" && format != "console" { // "console" is default
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}
}
