package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskProcessContent = "content:process"
	TaskReapStuck      = "content:reap-stuck"
)

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before any EnqueueX functions.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// EnqueueProcessContent enqueues an enrichment task for the given content
// record. The task runs with a 5-minute timeout, retries up to 3 times, and
// is retained for 24 hours after completion for inspection.
func EnqueueProcessContent(contentID uint) error {
	if client == nil {
		return fmt.Errorf("task client not initialized")
	}

	payload, err := json.Marshal(map[string]uint{
		"content_id": contentID,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskProcessContent,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	)

	_, err = client.Enqueue(task)
	return err
}
