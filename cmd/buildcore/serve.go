package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"buildcore/internal/app"
	"buildcore/internal/config"
	"buildcore/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM, then drain in-flight requests.

Configuration comes from --config and BUILDCORE_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()
	return a.Run(ctx)
}

// load reads configuration and builds the logger.
func load(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.NewConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.With(zap.String("app", cfg.App.Name)), nil
}
