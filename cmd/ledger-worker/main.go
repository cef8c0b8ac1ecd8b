package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/events"
	"ledger/internal/log"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	mem "ledger/internal/sheets/memory"
	"ledger/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("ledger-worker requires AMQP_URL", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var sink sheets.ActivityWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return err
		}
		sink = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		sink = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, logging activity in memory")
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewEventWorker(sink, logger)

	manager := cache.NewManager(logger)
	manager.Register(w.SeenCache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		manager.Run(gctx, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		return client.ConsumeEvents(gctx, w.Handle)
	})

	err = g.Wait()
	stats := w.Stats()
	logger.Info("Event worker stopped",
		"processed", stats.Processed,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
