package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"verbrauch/internal/amqp"
	"verbrauch/internal/config"
	"verbrauch/internal/export/sheets"
	applog "verbrauch/internal/log"
	"verbrauch/internal/report"
	"verbrauch/internal/storage"
	"verbrauch/internal/veeam"
	"verbrauch/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := veeam.NewClient(nil, cfg.FetchTimeout, applog.New(applog.DefaultConfig()).WithComponent("veeam"))
	generator := report.NewGenerator(client, repo, repo, applog.New(applog.DefaultConfig()).WithComponent("report"))

	var exporter worker.ReportExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets export", "error", err)
			os.Exit(1)
		}
		exporter = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	reportWorker := worker.NewReportWorker(generator, exporter)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer amqpClient.Close()

	go func() {
		logger.Info("Starting report job consumer", "queue", cfg.AMQPQueue)
		if err := amqpClient.ConsumeReportJobs(ctx, func(msg *amqp.ReportJobMessage) error {
			return reportWorker.HandleReportJob(ctx, msg)
		}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Report job consumer failed", "error", err)
			cancel()
		}
	}()

	go func() {
		logger.Info("Starting scheduled report check", "interval", cfg.ScheduleInterval.String())
		if err := reportWorker.RunScheduledCheck(ctx, cfg.ScheduleInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Scheduled report check failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		logger.Info("Worker context cancelled")
	}

	logger.Info("Worker stopped")
}
