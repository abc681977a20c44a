package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	sheetsmemory "finanzas/internal/sheets/memory"
	"finanzas/internal/worker"
)

const (
	pruneSchedule = "@daily"
	janitorPeriod = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, config.Load().SlogLevel())
	logger.Info("Starting finanzas-worker")

	cfg, prefs := cli.LoadAndValidateConfig(logger)
	if !cfg.SyncEnabled() {
		logger.Error("AMQP_URL is required to run the worker")
		os.Exit(1)
	}

	bootCtx := context.Background()
	app := cli.InitApp(bootCtx, logger, cfg, prefs)
	if app.Publisher == nil {
		logger.Error("AMQP client unavailable, cannot consume sync messages")
		app.Close()
		os.Exit(1)
	}

	janitor := cache.NewJanitor()
	janitor.Register("persons", app.PersonCache)

	var mirror sheets.Mirror
	if cfg.MirrorEnabled() {
		credFile := cfg.GoogleServiceAccountFile
		if credFile == "" {
			credFile = cfg.GoogleApplicationCredPath
		}
		client, err := gsheet.New(bootCtx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: credFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			app.Close()
			os.Exit(1)
		}
		janitor.Register("sheet-rows", client.RowCache())
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		// Keeps sync state moving in local setups without a spreadsheet.
		mirror = sheetsmemory.New()
		logger.Warn("Google Sheets disabled - mirroring to memory only")
	}

	processor := services.NewSyncProcessor(app.Store, mirror, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		UserID:       cfg.UserID,
	})
	syncWorker := worker.NewSyncWorker(processor, cfg.UserID)

	scheduler := worker.NewScheduler()
	if err := scheduler.AddReconcile(cfg.ReconcileSchedule, app.Goals); err != nil {
		logger.Error("Failed to schedule restart reconciliation", "error", err)
		app.Close()
		os.Exit(1)
	}
	if err := scheduler.AddPrune(pruneSchedule, app.History); err != nil {
		logger.Error("Failed to schedule history pruning", "error", err)
		app.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...")
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler stop interrupted", "error", err)
		}
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Warn("Sync processor stop interrupted", "error", err)
		}
		janitor.Stop()
		if err := app.Close(); err != nil {
			logger.Error("Failed to close application", "error", err)
		}
	})

	// Catch up on anything missed while the worker was down.
	if _, err := app.Goals.ResolveScheduledRestarts(ctx); err != nil {
		logger.Error("Startup restart reconciliation failed", "error", err)
	}
	logger.Info("Performing startup sync check...")
	syncWorker.StartupSyncCheck(ctx)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
	}
	scheduler.Start(ctx)
	janitor.Start(ctx, janitorPeriod)

	go func() {
		err := app.Publisher.ConsumeRecordSync(ctx, syncWorker.HandleMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
