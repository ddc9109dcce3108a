package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mbd888/fraudscore/internal/config"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/server"
	"github.com/mbd888/fraudscore/internal/traces"
)

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest published model over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default $PORT)")
	return cmd
}

func runServe(ctx context.Context, port string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	logger.Info("starting fraudscore",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
	)

	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return srv.Run(ctx)
}
