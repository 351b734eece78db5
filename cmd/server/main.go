package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mailcast/core/internal/ai"
	"github.com/mailcast/core/internal/api"
	"github.com/mailcast/core/internal/config"
	"github.com/mailcast/core/internal/database"
	"github.com/mailcast/core/internal/events"
	"github.com/mailcast/core/internal/ingest"
	"github.com/mailcast/core/internal/logging"
	"github.com/mailcast/core/internal/mailroute"
	"github.com/mailcast/core/internal/worker"
)

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

	if err := database.RunMigrations(db); err != nil {
		logger.Error("Failed to run migrations", "error", err.Error())
		os.Exit(1)
	}

	if cfg.SeedDevData {
		if err := database.SeedDevData(db, cfg.MailgunDomain); err != nil {
			logger.Error("Failed to seed dev data", "error", err.Error())
			os.Exit(1)
		}
	}

	// Mail routing setup runs in the background: a slow or misconfigured
	// provider must not delay serving.
	mailClient := mailroute.NewClient(cfg.MailgunAPIKey, cfg.MailgunDomain, cfg.MailgunSigningKey, cfg.PublicWebhookURL, logger)
	if mailClient.IsConfigured() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := mailClient.Setup(ctx); err != nil {
				logger.Error("Mail routing setup failed", "error", err.Error())
			}
		}()
	} else {
		logger.Warn("Mail routing disabled: provider credentials not configured")
	}

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

	if err := worker.InitClient(cfg.RedisURL); err != nil {
		logger.Error("Failed to initialize task client", "error", err.Error())
		os.Exit(1)
	}
	defer worker.CloseClient()

	stopWorker, err := worker.Start(cfg, db, summarizer, narrator, publisher)
	if err != nil {
		logger.Error("Failed to start worker", "error", err.Error())
		os.Exit(1)
	}
	defer stopWorker()

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		logger.Error("Failed to start scheduler", "error", err.Error())
		os.Exit(1)
	}
	defer stopScheduler()

	router := api.NewRouter(api.Deps{
		DB:         db,
		Cfg:        cfg,
		Normalizer: ingest.NewNormalizer(cfg.PreferHTMLMarkdown, logger),
		Detector:   ingest.NewLinkDetector(logger),
		MailRoute:  mailClient,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err.Error())
	}
}
