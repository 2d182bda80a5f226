package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskrunner/internal/app"
	"github.com/aatumaykin/taskrunner/internal/config"
	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/version"
)

const envFile = "./.env"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP API",
	Long: `Start taskrunner with the given configuration. The scheduler starts
when scheduler.autostart is set, and the HTTP API and dashboard are served
when server.enabled is set. SIGINT or SIGTERM shuts everything down.`,
	RunE: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvOptional(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	log.Info(version.FormatStartupMessage(),
		logger.Field{Key: "git_commit", Value: version.GitCommit},
		logger.Field{Key: "storage", Value: cfg.Storage.Path},
		logger.Field{Key: "bind", Value: cfg.Server.Bind})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.New(cfg, log).Run(ctx)
}
