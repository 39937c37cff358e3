package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	"bilancio/internal/export"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting bilancio-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the reminder worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Weekly sheets export is optional.
	var exporter export.ReviewAppender
	if cfg.SheetsExportEnabled() {
		exporter, err = export.NewSheetsExporter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsName, cfg.SheetsCredentialsFile)
		if err != nil {
			logger.Error("Failed to initialize sheets exporter", "error", err)
			os.Exit(1)
		}
		logger.Info("Sheets export enabled", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	} else {
		logger.Info("Sheets export disabled - no SHEETS_SPREADSHEET_ID provided")
	}

	habitSvc := services.NewHabitService(repo, repo, nil)
	financeSvc := services.NewFinanceService(repo, repo, nil)

	w := worker.NewReminderWorker(habitSvc, amqpClient, financeSvc, exporter)
	if err := w.Start(ctx, cfg.ReminderCron, cfg.ExportCron); err != nil {
		logger.Error("Failed to start reminder worker", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Log reminders locally as well, so the worker is useful without
	// any downstream consumer attached.
	g.Go(func() error {
		err := amqpClient.ConsumeHabitReminders(gctx, func(msg *amqp.HabitReminderMessage) error {
			logger.Info("Habit reminder",
				"habit_id", msg.HabitID,
				"name", msg.Name,
				"date", msg.Date)
			return nil
		})
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		w.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.DataBackend {
	case "postgres":
		return storage.NewPostgresRepository(ctx, cfg.PostgresURL)
	default:
		return storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	}
}
