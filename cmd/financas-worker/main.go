package main

import (
	"context"
	"os"
	"time"

	"financas/internal/amqp"
	"financas/internal/cli"
	"financas/internal/config"
	applog "financas/internal/log"
	gsheet "financas/internal/sheets/google"
	"financas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting financas-worker")

	mirror, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		TabBase:         cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(consumer, mirror, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Warn("Sync worker stop failed", applog.FieldError, err)
		}
		if err := consumer.Close(); err != nil {
			logger.Warn("AMQP close failed", applog.FieldError, err)
		}
	})

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", applog.FieldError, err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-syncWorker.Done():
		if err := syncWorker.Err(); err != nil {
			logger.Error("Sync worker exited", applog.FieldError, err)
			_ = consumer.Close()
			os.Exit(1)
		}
	}

	cli.WaitForShutdown(ctx, done)
	processed, failed := syncWorker.Stats()
	logger.Info("Worker stopped", "processed", processed, "failed", failed)
}
