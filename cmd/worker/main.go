package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mailcast/core/internal/ai"
	"github.com/mailcast/core/internal/config"
	"github.com/mailcast/core/internal/database"
	"github.com/mailcast/core/internal/events"
	"github.com/mailcast/core/internal/logging"
	"github.com/mailcast/core/internal/worker"
)

// Standalone worker mode: runs the enrichment queue and the reap scheduler
// without the HTTP server, for deployments that scale workers separately.
func main() {
	// Load .env for local development; absence is fine
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer database.Close(db)

	var summarizer worker.Summarizer
	var narrator worker.Narrator
	aiClient, err := ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, logger)
	if err != nil {
		logger.Warn("Content enrichment disabled", "error", err.Error())
	} else {
		summarizer = aiClient
		narrator = aiClient
	}

	publisher, err := events.NewPublisher(cfg.RedisURL)
	if err != nil {
		logger.Warn("Content event publishing disabled", "error", err.Error())
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// The reaper re-enqueues through the task client
	if err := worker.InitClient(cfg.RedisURL); err != nil {
		logger.Error("Failed to initialize task client", "error", err.Error())
		os.Exit(1)
	}
	defer worker.CloseClient()

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		logger.Error("Failed to start scheduler", "error", err.Error())
		os.Exit(1)
	}
	defer stopScheduler()

	// Blocks until SIGTERM/SIGINT; Asynq handles the signals itself
	if err := worker.Run(cfg, db, summarizer, narrator, publisher); err != nil {
		logger.Error("Worker exited with error", "error", err.Error())
		os.Exit(1)
	}
}
