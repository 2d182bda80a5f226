package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskrunner/internal/config"
	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/version"
)

const defaultConfigPath = "./config.toml"

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskrunner",
	Short: "taskrunner - scheduled cleanup, backup and alert tasks",
	Long: `taskrunner keeps a persistent set of named tasks and runs them on
interval or daily schedules. Tasks can be managed from the command line
or through the HTTP API served by "taskrunner serve".`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
}

// loadConfig reads the configuration selected by --config. Without the flag
// a missing ./config.toml falls back to the defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errs[0])
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
