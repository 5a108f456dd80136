package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/extraction"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting tally-worker")

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

	// Gemini extraction is optional: without it receipts are queued for
	// fully manual review.
	var scanner extraction.Scanner
	if cfg.GeminiAPIKey != "" {
		gemini, err := extraction.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini scanner", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		scanner = gemini
		logger.Info("Gemini scanner initialized", "model", cfg.GeminiModel)
	} else {
		logger.Info("Gemini disabled - no GEMINI_API_KEY provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingestWorker := worker.NewIngestWorker(services.NewReviewService(repo), scanner, cfg.IngestTimeout)

	go func() {
		err := amqpClient.ConsumeReceiptIngest(ctx, func(msg *amqp.ReceiptIngestMessage) error {
			return ingestWorker.HandleIngestMessage(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give the in-flight delivery a moment to settle
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
