package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/ingestgate/internal/config"
	"github.com/vvka-141/ingestgate/internal/logging"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ingestgate",
	Short: "Resilient broker and configuration store access",
	Long: `ingestgate publishes messages to Kafka or Redis Streams and talks to the
MySQL or PostgreSQL configuration store, surviving transient outages with
classified retries and reporting publish and store metrics.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Configuration store unavailable
  15 - Messaging unavailable`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.ConfigFileName, "Configuration file or directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for all commands")
}

// loadConfig reads the configuration. A missing file at the default path
// falls back to defaults; a missing file that was asked for is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, config.ErrConfigNotFound) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfgPath, err)
	}
	return cfg, nil
}

// newLogger builds the console logger from --verbose and logging.level.
func newLogger(cfg *config.Config) *logging.ConsoleLogger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	return logging.NewConsoleLogger(verbose, logging.WithWriter(os.Stderr), logging.WithLevel(level))
}
