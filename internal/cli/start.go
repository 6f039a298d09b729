package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/tagbot/internal/config"
	"github.com/harun/tagbot/internal/daemon"
	"github.com/harun/tagbot/internal/logger"
)

var consoleLog bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tagbot daemon",
	Long: `Start the tagbot daemon in the foreground.
The daemon polls Telegram for updates until it receives SIGINT or SIGTERM.
Allowlist and idle timeout changes in the config file apply without a restart.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&consoleLog, "console", true, "also log to the console")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loadConfig(loader)
	if err != nil {
		return err
	}

	if pid := daemon.RunningPID(cfg.DataDir); pid != 0 {
		return fmt.Errorf("daemon is already running (PID %d)", pid)
	}

	log, err := logger.New(loggerConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	log.Info().
		Str("version", version).
		Str("config", loader.GetConfigPath()).
		Msg("Starting tagbot")

	d, err := daemon.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create daemon")
		return err
	}

	if err := d.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start daemon")
		return err
	}

	if err := d.WatchConfig(loader); err != nil {
		if !errors.Is(err, config.ErrNoConfigFile) {
			log.Warn().Err(err).Msg("Failed to watch config file")
		}
	}

	d.Wait()
	return nil
}

// loadConfig loads and validates the configuration, applying the
// --log-level override.
func loadConfig(loader *config.Loader) (*config.Config, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:     cfg.Logging.Level,
		Console:   consoleLog,
		Pretty:    consoleLog,
		File:      cfg.Logging.File,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Redaction: cfg.Logging.Redaction,
	}
}
