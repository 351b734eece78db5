// Package events publishes enrichment lifecycle events to a Redis Stream so
// pipeline failures are observable instead of silently swallowed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream name constant
const StreamContentEvents = "content:events"

// Schema version constant
const SchemaVersionV1 = "v1"

// Enrichment stages
const (
	StageSummarize = "summarize"
	StageNarrate   = "narrate"
	StageCommit    = "commit"
)

// Event statuses
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ContentEvent is one enrichment lifecycle event for a content record.
type ContentEvent struct {
	ContentID uint   `json:"content_id"`
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Publisher publishes content lifecycle events to Redis Streams
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Publisher{rdb: redis.NewClient(opts)}, nil
}

// PublishContentEvent appends an event to the content events stream.
// The stream is capped so it never grows unbounded.
func (p *Publisher) PublishContentEvent(ctx context.Context, ev ContentEvent) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamContentEvents,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload":        string(payload),
			"published_at":   time.Now().Unix(),
			"schema_version": SchemaVersionV1,
		},
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", result.Err())
	}

	return result.Val(), nil
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
