// Package config provides configuration management for vpnswitch.
// It handles loading, saving, and validating application settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vpnswitch/common"
)

// EnvConfigPath overrides the settings file location when set.
const EnvConfigPath = "VPNSWITCH_CONFIG"

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "VPNSWITCH_LOG_LEVEL"

// Settings represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
// Connection supervision knobs are deliberately configurable rather than
// hard-coded; the defaults mirror the constants in package common.
type Settings struct {
	// ConnectAttempts is how many times a connect is retried end to end.
	ConnectAttempts int `yaml:"connect_attempts"`
	// PollIntervalSeconds is the pause between status queries while
	// confirming a transition.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// PollAttempts bounds connect confirmation polling.
	PollAttempts int `yaml:"poll_attempts"`
	// DisconnectPollAttempts bounds disconnect confirmation polling.
	DisconnectPollAttempts int `yaml:"disconnect_poll_attempts"`
	// RetryDelaySeconds is the pause between connect attempts.
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
	// BackendTimeoutSeconds bounds every backend subprocess call.
	BackendTimeoutSeconds int `yaml:"backend_timeout_seconds"`
	// StatusCheckIntervalSeconds is the established-connection drop
	// check cadence.
	StatusCheckIntervalSeconds int `yaml:"status_check_interval_seconds"`
	// QueueCapacity is the supervisor request queue size.
	QueueCapacity int `yaml:"queue_capacity"`
	// SwitchAbortOnDisconnectFailure stops a smart switch when the
	// implicit disconnect of the previous profile cannot be confirmed.
	SwitchAbortOnDisconnectFailure bool `yaml:"switch_abort_on_disconnect_failure"`
	// AdoptActiveOnStart recognizes an externally-established VPN as the
	// active connection at startup.
	AdoptActiveOnStart bool `yaml:"adopt_active_on_start"`
	// AutoImport scans the imports directory at startup.
	AutoImport bool `yaml:"auto_import"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// Theme sets the color theme: "light", "dark", or "auto".
	Theme string `yaml:"theme"`
	// LogLevel sets the diagnostics level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// DefaultSort orders profile listings: name, category, or last-used.
	DefaultSort string `yaml:"default_sort"`
}

// DefaultSettings returns the default configuration.
func DefaultSettings() *Settings {
	return &Settings{
		ConnectAttempts:                common.DefaultConnectAttempts,
		PollIntervalSeconds:            int(common.DefaultPollInterval / time.Second),
		PollAttempts:                   common.DefaultPollAttempts,
		DisconnectPollAttempts:         common.DefaultDisconnectPollAttempts,
		RetryDelaySeconds:              int(common.DefaultRetryDelay / time.Second),
		BackendTimeoutSeconds:          int(common.DefaultBackendTimeout / time.Second),
		StatusCheckIntervalSeconds:     int(common.DefaultStatusCheckInterval / time.Second),
		QueueCapacity:                  common.DefaultQueueCapacity,
		SwitchAbortOnDisconnectFailure: true,
		AdoptActiveOnStart:             true,
		AutoImport:                     true,
		ShowNotifications:              true,
		Theme:                          common.ThemeAuto,
		LogLevel:                       "info",
		DefaultSort:                    "name",
	}
}

// Load loads the configuration from the config file.
// If the file doesn't exist, it creates one with default values.
// A .env file next to the working directory and VPNSWITCH_* variables
// override the file location and log level.
func Load() (*Settings, error) {
	// Missing .env files are the normal case.
	_ = godotenv.Load()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	// If it doesn't exist, persist and return the default configuration
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultSettings()
		cfg.applyEnv()
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, common.WrapError(err, "error opening configuration")
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	// Decode over the defaults so absent fields keep their default values.
	cfg := DefaultSettings()
	if err := decoder.Decode(cfg); err != nil {
		return nil, common.WrapError(err, "error parsing configuration")
	}

	cfg.validate()
	cfg.applyEnv()

	return cfg, nil
}

// applyEnv applies VPNSWITCH_* environment overrides.
func (s *Settings) applyEnv() {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		s.LogLevel = lvl
	}
}

// validate clamps nonsensical values back to their defaults. A bad
// settings file degrades to defaults instead of failing startup.
func (s *Settings) validate() {
	def := DefaultSettings()

	if s.ConnectAttempts < 1 {
		s.ConnectAttempts = def.ConnectAttempts
	}
	if s.PollIntervalSeconds < 1 {
		s.PollIntervalSeconds = def.PollIntervalSeconds
	}
	if s.PollAttempts < 1 {
		s.PollAttempts = def.PollAttempts
	}
	if s.DisconnectPollAttempts < 1 {
		s.DisconnectPollAttempts = def.DisconnectPollAttempts
	}
	if s.RetryDelaySeconds < 0 {
		s.RetryDelaySeconds = def.RetryDelaySeconds
	}
	if s.BackendTimeoutSeconds < 1 {
		s.BackendTimeoutSeconds = def.BackendTimeoutSeconds
	}
	if s.StatusCheckIntervalSeconds < 1 {
		s.StatusCheckIntervalSeconds = def.StatusCheckIntervalSeconds
	}
	if s.QueueCapacity < 1 {
		s.QueueCapacity = def.QueueCapacity
	}
	if !common.StringInSlice(s.Theme, []string{common.ThemeAuto, common.ThemeLight, common.ThemeDark}) {
		s.Theme = common.ThemeAuto
	}
	if !common.StringInSlice(s.DefaultSort, []string{"name", "category", "last-used"}) {
		s.DefaultSort = def.DefaultSort
	}
	// LogLevel is normalized by common.ParseLevel at use.
}

// Save saves the configuration to the file
func (s *Settings) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return common.WrapError(err, "error creating config directory")
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return common.WrapError(err, "error serializing configuration")
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return common.WrapError(err, "error saving configuration")
	}

	return nil
}

// Duration accessors used when wiring the supervisor.

// PollInterval returns the status poll interval.
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// RetryDelay returns the pause between connect attempts.
func (s *Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

// BackendTimeout returns the subprocess deadline.
func (s *Settings) BackendTimeout() time.Duration {
	return time.Duration(s.BackendTimeoutSeconds) * time.Second
}

// StatusCheckInterval returns the drop check cadence.
func (s *Settings) StatusCheckInterval() time.Duration {
	return time.Duration(s.StatusCheckIntervalSeconds) * time.Second
}

func getConfigPath() (string, error) {
	if override := os.Getenv(EnvConfigPath); override != "" {
		return override, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}
