package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bourkey/revalidate-webhook/pkg/auth"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/bourkey/revalidate-webhook/pkg/dispatch"
	"github.com/bourkey/revalidate-webhook/pkg/invalidation"
	"github.com/bourkey/revalidate-webhook/pkg/logging"
	"github.com/bourkey/revalidate-webhook/pkg/shutdown"
	"github.com/bourkey/revalidate-webhook/pkg/webhook"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the revalidation webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is normal outside local development
			_ = godotenv.Load()

			if configFile != "" {
				if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
					return fmt.Errorf("failed to set config file: %w", err)
				}
			}

			return serve(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to the YAML config file (overrides CONFIG_FILE)")

	return cmd
}

func serve(ctx context.Context) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))
	logging.LogStartup(logger, version, cfg.Server.Port)
	logging.LogConfigurationLoaded(logger, os.Getenv("CONFIG_FILE"), string(cfg.Auth.Mode), string(cfg.Invalidation.Backend), cfg.Invalidation.Strict)

	authenticator, err := auth.NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	backend, err := invalidation.NewBackend(ctx, cfg.Invalidation, logger)
	if err != nil {
		return fmt.Errorf("failed to create invalidation backend: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(backend, cfg.Invalidation.Strict, logger)
	webhookServer := webhook.NewServer(cfg, authenticator, dispatcher, logger)

	// Setup graceful shutdown. The server drains before the backend closes.
	shutdownTimeout, err := cfg.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 30 * time.Second
	}
	shutdownManager := shutdown.NewManager(shutdownTimeout, logger)
	shutdownManager.RegisterHandler("webhook-server", webhookServer.Shutdown)
	shutdownManager.RegisterHandler("invalidation-backend", func(ctx context.Context) error {
		return backend.Close()
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start HTTP server in goroutine. A server failure cancels ctx, which
	// triggers the same shutdown path as a signal.
	serverErr := make(chan error, 1)
	go func() {
		err := webhookServer.Start()
		if err != nil {
			logger.WithError(err).Error("Server error occurred")
		}
		serverErr <- err
		cancel()
	}()

	shutdownErr := shutdownManager.WaitForShutdown(ctx)
	if shutdownErr != nil {
		logger.WithError(shutdownErr).Error("Graceful shutdown failed")
	}

	if err := <-serverErr; err != nil {
		return err
	}
	return shutdownErr
}
