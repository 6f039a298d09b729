package config

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// Config represents the main tagbot configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Editing sessions
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory, holds the PID file, lock and default log file
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
	// Allowlist restricts the bot to these user IDs when non-empty.
	Allowlist []int64 `json:"allowlist" mapstructure:"allowlist"`
	// APIEndpoint and FileEndpoint override the Bot API URL templates, e.g.
	// for a local Bot API server. Both take the token and a method or path.
	APIEndpoint  string `json:"api_endpoint" mapstructure:"api_endpoint"`
	FileEndpoint string `json:"file_endpoint" mapstructure:"file_endpoint"`
	// MaxFileSizeMB caps accepted uploads. The public Bot API cannot serve files above 20 MB.
	MaxFileSizeMB    int `json:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	PollTimeout      int `json:"poll_timeout" mapstructure:"poll_timeout"` // seconds
	DedupeTTLSeconds int `json:"dedupe_ttl_seconds" mapstructure:"dedupe_ttl_seconds"`
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	IdleTimeoutMinutes     int    `json:"idle_timeout_minutes" mapstructure:"idle_timeout_minutes"`
	SweepSchedule          string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	TempDir                string `json:"temp_dir" mapstructure:"temp_dir"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Allowlist:        []int64{},
			MaxFileSizeMB:    20,
			PollTimeout:      60,
			DedupeTTLSeconds: 300,
		},
		Session: SessionConfig{
			IdleTimeoutMinutes:     30,
			SweepSchedule:          "@every 5m",
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}

// MaxFileSize returns the upload limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Telegram.MaxFileSizeMB) * 1024 * 1024
}

// IdleTimeout returns how long a session may sit untouched before eviction.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

// ShutdownTimeout bounds how long shutdown waits for in-flight work.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Session.ShutdownTimeoutSeconds) * time.Second
}

// DedupeTTL returns how long update IDs are remembered.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.Telegram.DedupeTTLSeconds) * time.Second
}

// IsAllowed reports whether userID may use the bot. An empty allowlist
// admits everyone.
func (c *Config) IsAllowed(userID int64) bool {
	if len(c.Telegram.Allowlist) == 0 {
		return true
	}
	return slices.Contains(c.Telegram.Allowlist, userID)
}

// String returns a JSON representation of the config with the token masked
func (c *Config) String() string {
	masked := *c
	if masked.Telegram.BotToken != "" {
		masked.Telegram.BotToken = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
