package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	appDirName     = ".tagbot"
	configFileName = "tagbot.json"
	envPrefix      = "TAGBOT"
)

// ErrNoConfigFile is returned by Watch when Load found no file to watch.
var ErrNoConfigFile = errors.New("no config file loaded")

// Loader handles configuration loading. Precedence, lowest first: defaults,
// JSON config file, TAGBOT_* environment variables.
type Loader struct {
	configPath string
	v          *viper.Viper
	fileUsed   bool
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	// Determine config path
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to get home directory")
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	setDefaults(v, DefaultConfig())

	// Read environment variables
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("telegram.bot_token", envPrefix+"_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind token env: %w", err)
	}

	// Read config file if there is one
	fileUsed := false
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		fileUsed = true
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	l.v = v
	l.fileUsed = fileUsed

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set data directory if not specified
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, appDirName)
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "tagbot.log")
	}

	return cfg, nil
}

// Watch reloads the config whenever the file changes and hands the result
// to onChange. Load must have found a config file.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) error {
	if l.v == nil || !l.fileUsed {
		return ErrNoConfigFile
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(l.decode())
	})
	l.v.WatchConfig()
	return nil
}

// Save writes cfg to the config file
func (l *Loader) Save(cfg *Config) error {
	// Determine config path
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// Set all config values
	v.Set("telegram", cfg.Telegram)
	v.Set("session", cfg.Session)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("data_dir", cfg.DataDir)

	// Write config file
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, appDirName, configFileName)
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("telegram.bot_token", cfg.Telegram.BotToken)
	v.SetDefault("telegram.allowlist", cfg.Telegram.Allowlist)
	v.SetDefault("telegram.api_endpoint", cfg.Telegram.APIEndpoint)
	v.SetDefault("telegram.file_endpoint", cfg.Telegram.FileEndpoint)
	v.SetDefault("telegram.max_file_size_mb", cfg.Telegram.MaxFileSizeMB)
	v.SetDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	v.SetDefault("telegram.dedupe_ttl_seconds", cfg.Telegram.DedupeTTLSeconds)

	v.SetDefault("session.idle_timeout_minutes", cfg.Session.IdleTimeoutMinutes)
	v.SetDefault("session.sweep_schedule", cfg.Session.SweepSchedule)
	v.SetDefault("session.temp_dir", cfg.Session.TempDir)
	v.SetDefault("session.shutdown_timeout_seconds", cfg.Session.ShutdownTimeoutSeconds)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)

	v.SetDefault("data_dir", cfg.DataDir)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
