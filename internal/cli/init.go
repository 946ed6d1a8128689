// Package cli holds the bootstrap steps shared by cmd/budgets,
// cmd/budgets-worker and cmd/budgets-admin.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgets/internal/backend"
	"budgets/internal/config"
	"budgets/internal/log"
	"budgets/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func NewLogger(level, format, component string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	cfg.Format = format
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		return logger, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return logger, nil
}

// Bootstrap loads .env and the environment, sets up logging and validates
// the configuration. It exits the process when the configuration is invalid.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat, component)
	if err != nil {
		logger.Warn("Falling back to info level", log.FieldError, err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend opens the configured store and, when AMQP_URL is set, the
// broker client. It exits the process on failure.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			"backend", cfg.DataBackend,
			log.FieldError, err)
		os.Exit(1)
	}
	return res
}

// Publisher returns the backend's broker client as a services.Publisher, or
// nil when propagation is disabled.
func Publisher(res *backend.BackendResult) services.Publisher {
	if res.Publisher == nil {
		return nil
	}
	return res.Publisher
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
