// Package ai wraps the hosted AI provider used for content enrichment:
// text summarization and text-to-speech narration.
package ai

import (
	"errors"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNotConfigured indicates the provider API key is missing
	ErrNotConfigured = errors.New("AI client not configured")
	// ErrSummarization indicates the summarization call failed or returned
	// malformed output
	ErrSummarization = errors.New("summarization failed")
	// ErrNarration indicates the text-to-speech call failed
	ErrNarration = errors.New("narration failed")
)

// Client talks to the AI provider for summarization and narration.
type Client struct {
	api    *openai.Client
	logger *slog.Logger
}

// NewClient creates a Client. baseURL overrides the provider endpoint so
// tests can point at a local server; empty means the provider default.
// A missing apiKey returns ErrNotConfigured so the caller can disable
// enrichment with a logged warning instead of crashing.
func NewClient(apiKey, baseURL string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Client{
		api:    openai.NewClientWithConfig(cfg),
		logger: logger,
	}, nil
}
