package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/imagebatch/internal/config"
	"github.com/dbsmedya/imagebatch/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile          string
	logLevel         string
	logFormat        string
	storePath        string
	imageRoot        string
	progressInterval int
)

var rootCmd = &cobra.Command{
	Use:   "imagebatch",
	Short: "Batch corrections for image collections",
	Long: `imagebatch scans an image collection's file table, proposes a set of
corrections, and applies the selected ones in a single cancellable run.

Operations:
  - dates     swap day and month of ambiguous dates
  - dark      classify dark images
  - guid      populate missing GUIDs
  - episodes  number capture episodes
  - delete    delete flagged files and records

Every operation previews its candidates first. Press Ctrl+C during a run to
cancel; what gets committed depends on the operation.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to configuration file (built-in defaults when empty)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().StringVar(&storePath, "db", "",
		"Override SQLite database path")
	rootCmd.PersistentFlags().StringVar(&imageRoot, "root", "",
		"Override image root folder")
	rootCmd.PersistentFlags().IntVar(&progressInterval, "progress-interval", 0,
		"Override minimum milliseconds between progress updates")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:           logLevel,
		LogFormat:          logFormat,
		StorePath:          storePath,
		ImageRoot:          imageRoot,
		ProgressIntervalMs: progressInterval,
	}
}

// loadConfig reads the config file (or the defaults), applies the CLI
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := GetConfigFile(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	cfg.ApplyOverrides(GetCLIOverrides())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
