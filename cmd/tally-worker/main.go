package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/log"
	"tally/internal/sheets/google"
	"tally/internal/worker"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentWorker)
	cli.MustValidate(logger, cfg.ValidateWorker)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	logger.Info("Starting tally-worker", log.FieldOperation, log.OpStartup)

	sheetsClient, err := google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to write sheet header", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	broker, err := amqp.NewClient(ctx, amqp.Config{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer broker.Close()

	caches := cache.NewManager(logger)
	mirror := worker.NewMirrorWorker(sheetsClient, 0, logger)
	mirror.Register(caches)
	caches.StartCleanup(time.Hour)
	defer caches.Stop()

	err = broker.ConsumeExpenseEvents(ctx, mirror.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
