// Package cli implements the flowrun command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/flowrun/internal/config"
	"github.com/me/flowrun/internal/logging"
)

var (
	flagDB        string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the flowrun CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowrun",
		Short: "flowrun: pipeline task dispatch engine",
		Long:  "flowrun submits pipeline tasks to pluggable executors and tracks their lifecycle.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.Options{Level: flagLogLevel, Format: flagLogFormat})
		},
		SilenceUsage: true,
	}

	cfg := config.Default()
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default ~/.flowrun/flowrun.db)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newServeCmd(),
	)
	return root
}

// resolveDBPath returns the database path, creating the default data
// directory when needed.
func resolveDBPath() (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".flowrun")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "flowrun.db"), nil
}
