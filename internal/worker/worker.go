// Package worker runs the asynchronous enrichment pipeline. Each content
// record is processed by a persisted queue task with retries and dead-letter
// logging, so a failure is an observable state rather than a lost goroutine.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mailcast/core/internal/ai"
	"github.com/mailcast/core/internal/config"
	"github.com/mailcast/core/internal/events"
	"github.com/mailcast/core/internal/logging"
	"github.com/mailcast/core/internal/models"
	"gorm.io/gorm"
)

// Summarizer produces a structured summary from email text.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (*ai.Summary, error)
}

// Narrator turns narration text into an audio URL.
type Narrator interface {
	Narrate(ctx context.Context, text string) (string, error)
}

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, db *gorm.DB, summarizer Summarizer, narrator Narrator, publisher *events.Publisher) error {
	srv, mux, err := newServer(cfg, db, summarizer, narrator, publisher)
	if err != nil {
		return err
	}

	// Run blocks and handles its own signal interception
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop
// function. Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, db *gorm.DB, summarizer Summarizer, narrator Narrator, publisher *events.Publisher) (stop func(), err error) {
	srv, mux, err := newServer(cfg, db, summarizer, narrator, publisher)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, db *gorm.DB, summarizer Summarizer, narrator Narrator, publisher *events.Publisher) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessContent, HandleProcessContent(logger, db, summarizer, narrator, publisher))
	mux.HandleFunc(TaskReapStuck, HandleReapStuck(logger, db, EnqueueProcessContent))

	logger.Info("Worker starting", "concurrency", 5, "redis", cfg.RedisURL)
	return srv, mux, nil
}

// HandleProcessContent enriches one content record: summarize the original
// text, narrate the summary, then commit both in a single update. Any
// failure marks the record failed and surfaces to Asynq for retry.
func HandleProcessContent(logger *slog.Logger, db *gorm.DB, summarizer Summarizer, narrator Narrator, publisher *events.Publisher) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload struct {
			ContentID uint `json:"content_id"`
		}
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		var content models.Content
		if err := db.WithContext(ctx).First(&content, payload.ContentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Error("Content not found", "content_id", payload.ContentID)
				return fmt.Errorf("content not found: %w", asynq.SkipRetry)
			}
			// Database error - retryable
			return fmt.Errorf("failed to fetch content: %w", err)
		}

		// Re-enqueued duplicates for an already enriched record are no-ops.
		if content.Status == models.ContentStatusCompleted {
			logger.Info("Content already processed, skipping", "content_id", content.ID)
			return nil
		}

		logger.Info(
			"Processing content:process task",
			"content_id", content.ID,
			"user_id", content.UserID,
			"title", content.Title,
		)

		if summarizer == nil || narrator == nil {
			markFailed(db, &content, "AI provider not configured")
			return fmt.Errorf("%v: %w", ai.ErrNotConfigured, asynq.SkipRetry)
		}

		db.Model(&content).Update("status", models.ContentStatusProcessing)

		// Step 1 - summarization
		publishEvent(ctx, logger, publisher, content.ID, events.StageSummarize, events.StatusStarted, "")
		summary, err := summarizer.Summarize(ctx, content.OriginalContent)
		if err != nil {
			markFailed(db, &content, err.Error())
			publishEvent(ctx, logger, publisher, content.ID, events.StageSummarize, events.StatusFailed, err.Error())
			logger.Error("Summarization failed", "content_id", content.ID, "error", err.Error())
			return fmt.Errorf("summarization failed: %w", err)
		}
		publishEvent(ctx, logger, publisher, content.ID, events.StageSummarize, events.StatusCompleted, "")

		summaryJSON, err := json.Marshal(summary)
		if err != nil {
			markFailed(db, &content, "failed to marshal summary")
			return fmt.Errorf("failed to marshal summary: %w", asynq.SkipRetry)
		}

		// Step 2 - narration
		publishEvent(ctx, logger, publisher, content.ID, events.StageNarrate, events.StatusStarted, "")
		audioURL, err := narrator.Narrate(ctx, summary.NarrationText())
		if err != nil {
			markFailed(db, &content, err.Error())
			publishEvent(ctx, logger, publisher, content.ID, events.StageNarrate, events.StatusFailed, err.Error())
			logger.Error("Narration failed", "content_id", content.ID, "error", err.Error())
			return fmt.Errorf("narration failed: %w", err)
		}
		publishEvent(ctx, logger, publisher, content.ID, events.StageNarrate, events.StatusCompleted, "")

		// Step 3 - commit. The only mutation point after creation: summary,
		// audio and the processed flag land together or not at all.
		now := time.Now()
		if err := db.Model(&content).Updates(map[string]interface{}{
			"summary":       summaryJSON,
			"audio_url":     audioURL,
			"status":        models.ContentStatusCompleted,
			"is_processed":  true,
			"processed_at":  now,
			"updated_at":    now,
			"error_message": "",
		}).Error; err != nil {
			return fmt.Errorf("failed to update content: %w", err)
		}
		publishEvent(ctx, logger, publisher, content.ID, events.StageCommit, events.StatusCompleted, "")

		logger.Info("Content enrichment completed", "content_id", content.ID)
		return nil
	}
}

// HandleReapStuck requeues records that have sat in pending or processing
// past the threshold: enqueue losses and crashes mid-enrichment would
// otherwise strand them unprocessed forever.
func HandleReapStuck(logger *slog.Logger, db *gorm.DB, enqueue func(contentID uint) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		cutoff := time.Now().Add(-15 * time.Minute)

		var stuck []models.Content
		err := db.WithContext(ctx).
			Where("status IN ? AND updated_at < ?",
				[]string{models.ContentStatusPending, models.ContentStatusProcessing}, cutoff).
			Find(&stuck).Error
		if err != nil {
			return fmt.Errorf("failed to query stuck content: %w", err)
		}

		if len(stuck) == 0 {
			logger.Debug("No stuck content records found")
			return nil
		}

		requeued := 0
		for _, content := range stuck {
			if err := enqueue(content.ID); err != nil {
				logger.Error("Failed to requeue stuck content", "content_id", content.ID, "error", err.Error())
				continue
			}
			requeued++
		}

		logger.Info("Requeued stuck content records", "found", len(stuck), "requeued", requeued)
		return nil
	}
}

func markFailed(db *gorm.DB, content *models.Content, message string) {
	db.Model(content).Updates(map[string]interface{}{
		"status":        models.ContentStatusFailed,
		"error_message": message,
	})
}

func publishEvent(ctx context.Context, logger *slog.Logger, publisher *events.Publisher, contentID uint, stage, status, errMsg string) {
	if publisher == nil {
		return
	}
	_, err := publisher.PublishContentEvent(ctx, events.ContentEvent{
		ContentID: contentID,
		Stage:     stage,
		Status:    status,
		Error:     errMsg,
	})
	if err != nil {
		logger.Warn("Failed to publish content event", "content_id", contentID, "stage", stage, "error", err.Error())
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		// Check if this is the final failure (task will move to dead letter queue)
		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
