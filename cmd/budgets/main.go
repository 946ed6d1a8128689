package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgets/internal/auth"
	"budgets/internal/cache"
	"budgets/internal/cli"
	apphttp "budgets/internal/http"
	"budgets/internal/log"
	"budgets/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	res := cli.OpenBackend(ctx, cfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	authSvc, err := auth.NewService(res.Store, res.Store, auth.Config{
		Secret:     cfg.SessionSecret,
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	})
	if err != nil {
		logger.Error("Failed to initialize auth", log.FieldErrorType, log.ErrorTypeConfiguration, log.FieldError, err)
		os.Exit(1)
	}
	budgets := services.NewBudgetService(res.Store, cli.Publisher(res))

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(authSvc.SessionCache())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		SecureCookie:       cfg.SessionCookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Budgets: budgets,
		Auth:    authSvc,
		Store:   res.Store,
		Caches:  map[string]apphttp.Sizer{"sessions": authSvc.SessionCache()},
		Logger:  logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	// The worker prunes too, but a memory backend is only visible here.
	go pruneSessions(ctx, authSvc, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting budgets server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp_enabled", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}

func pruneSessions(ctx context.Context, svc *auth.Service, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PruneSessions(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Session pruning failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "Expired sessions pruned", "count", n)
			}
		}
	}
}
