package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mailcast/core/internal/config"
	"github.com/mailcast/core/internal/logging"
)

// StartScheduler creates and starts an Asynq Scheduler that periodically
// enqueues the stuck-record reaper. Returns a stop function for graceful
// shutdown.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskReapStuck,
		nil, // empty payload - handler queries all stuck records
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(5*time.Minute), // prevent duplicate if scheduler runs twice
	)

	entryID, err := scheduler.Register(cfg.ReapSchedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register reap schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info(
		"Scheduler started",
		"schedule", cfg.ReapSchedule,
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
