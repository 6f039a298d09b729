package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harun/tagbot/internal/config"
	"github.com/harun/tagbot/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show whether the tagbot daemon is running, its PID and uptime.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	pid := daemon.RunningPID(dataDir)
	if pid == 0 {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "PID: %d\n", pid)

	if info, err := os.Stat(daemon.PIDFilePath(dataDir)); err == nil {
		fmt.Fprintf(out, "Uptime: %s (since %s)\n",
			formatDuration(time.Since(info.ModTime())), humanize.Time(info.ModTime()))
	}

	return nil
}

// resolveDataDir loads the config only to find the data directory, so
// status and stop work without a bot token.
func resolveDataDir() (string, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg.DataDir, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
