// Package cli provides process bootstrap helpers shared by cmd/finanzas and
// cmd/finanzas-worker, plus terminal rendering for the CLI.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzas/internal/backend"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
)

// SetupLogger initializes structured logging on stderr and sets it as the
// default logger.
func SetupLogger(component string, level slog.Level) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	cfg.Level = level
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and the preferences file.
// Exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) (*config.Config, config.Preferences) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	prefs, err := config.LoadPreferences(cfg.PreferencesPath)
	if err != nil {
		logger.Error("Failed to load preferences", "error", err, "path", cfg.PreferencesPath)
		os.Exit(1)
	}
	return cfg, prefs
}

// InitApp builds the application container.
// Returns the app or exits the process on failure.
func InitApp(ctx context.Context, logger *applog.Logger, cfg *config.Config, prefs config.Preferences) *backend.App {
	bcfg, err := backend.FromAppConfig(cfg, prefs)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	app, err := backend.NewFactory(logger.Logger).CreateApp(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return app
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
