package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskrunner/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate taskrunner configuration.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file and report every error found.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := defaultConfigPath
	if configPath != "" {
		path = configPath
	}
	if len(args) > 0 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintf(out, "Configuration %s is invalid:\n", path)
		for _, e := range errs {
			fmt.Fprintf(out, "  - %v\n", e)
		}
		return fmt.Errorf("%d validation errors", len(errs))
	}

	fmt.Fprintf(out, "Configuration %s is valid\n", path)
	return nil
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
