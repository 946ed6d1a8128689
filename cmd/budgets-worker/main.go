package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgets/internal/cache"
	"budgets/internal/cli"
	"budgets/internal/log"
	"budgets/internal/sheets"
	gsheet "budgets/internal/sheets/google"
	sheetsmem "budgets/internal/sheets/memory"
	"budgets/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting budgets-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext()
	defer stop()

	res := cli.OpenBackend(ctx, cfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	defer caches.Stop()

	var writer sheets.SummaryWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		caches.Register(client.IndexCache())
		writer = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		// Keeps the reconcile loop and synced versions moving without a
		// spreadsheet, which is handy in development.
		writer = sheetsmem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}
	caches.StartCleanup(time.Minute)

	w := worker.NewSyncWorker(res.Store, writer, cfg.SyncBatchSize)

	// Catch up on anything saved while the worker was down.
	if n, err := w.ReconcilePending(ctx); err != nil {
		logger.Error("Startup reconciliation failed", log.FieldError, err)
	} else if n > 0 {
		logger.Info("Startup reconciliation complete", "users", n)
	}

	sched, err := worker.NewScheduler(ctx, w, res.Store, cfg.SyncInterval, logger.Logger)
	if err != nil {
		logger.Error("Failed to schedule jobs", log.FieldError, err)
		os.Exit(1)
	}

	var consumer worker.Consumer
	if res.Publisher != nil {
		consumer = res.Publisher
	} else {
		logger.Info("AMQP disabled - relying on periodic reconciliation", "interval", cfg.SyncInterval)
	}

	if err := worker.Run(ctx, w, consumer, sched); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
