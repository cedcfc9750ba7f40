package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/app"
	"github.com/mbazhenov/scoutbot/internal/config"
	"github.com/mbazhenov/scoutbot/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the bot core and its HTTP API",
		Long: `Loads configuration, assembles the configured store, blob storage, scan
engine and message sender, and serves the command API until interrupted.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting scoutbot", zap.String("version", version))

	a, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}

	return a.Run(ctx)
}
