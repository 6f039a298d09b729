package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/tagbot/internal/config"
)

var (
	configureToken     string
	configureAllowlist []int64
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the bot token and allowlist to the config file",
	Long: `Write the bot token and allowlist to the config file.
Settings already in the file are kept. The file is created when missing.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureToken, "token", "", "Telegram bot token from @BotFather")
	configureCmd.Flags().Int64SliceVar(&configureAllowlist, "allow", nil, "user IDs allowed to use the bot (empty allows everyone)")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	// Start from what is on disk so unrelated settings survive
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configureToken != "" {
		cfg.Telegram.BotToken = configureToken
	}
	if cmd.Flags().Changed("allow") {
		cfg.Telegram.Allowlist = configureAllowlist
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Save configuration
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(out, "You can now start the bot with: tagbot start")
	return nil
}
