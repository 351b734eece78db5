package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DatabaseURL string
	RedisURL    string

	// Mail-routing provider (Mailgun). Missing values disable route setup
	// and forwarding-address generation, they never crash the process.
	MailgunAPIKey     string
	MailgunDomain     string
	MailgunSigningKey string

	// AI provider. BaseURL is overridable so tests can point at a local server.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Public base URL the mail provider forwards webhooks to.
	PublicWebhookURL string

	// Cron expression for the stuck-record reaper.
	ReapSchedule string

	PreferHTMLMarkdown bool
	// Reject webhook deliveries whose sender fails the provider's address
	// validation API. Off by default: validation costs an API call per email.
	ValidateSenders bool
	SeedDevData     bool

	Env       string
	Port      string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		MailgunAPIKey:      os.Getenv("MAILGUN_API_KEY"),
		MailgunDomain:      os.Getenv("MAILGUN_DOMAIN"),
		MailgunSigningKey:  os.Getenv("MAILGUN_SIGNING_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		PublicWebhookURL:   os.Getenv("PUBLIC_WEBHOOK_URL"),
		ReapSchedule:       getEnvWithDefault("REAP_SCHEDULE", "*/10 * * * *"),
		PreferHTMLMarkdown: getEnvBool("PREFER_HTML_MARKDOWN", false),
		ValidateSenders:    getEnvBool("VALIDATE_SENDERS", false),
		SeedDevData:        getEnvBool("SEED_DEV_DATA", false),
		Env:                getEnvWithDefault("ENV", "development"),
		Port:               getEnvWithDefault("PORT", "5000"),
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvWithDefault("LOG_FORMAT", "text"),
	}

	if cfg.MailgunAPIKey == "" || cfg.MailgunDomain == "" {
		log.Println("WARNING: MAILGUN_API_KEY or MAILGUN_DOMAIN not set. Email routing setup is disabled.")
	}
	if cfg.MailgunSigningKey == "" {
		log.Println("WARNING: MAILGUN_SIGNING_KEY not set. Webhook signature verification is disabled.")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("WARNING: OPENAI_API_KEY not set. Content enrichment is disabled.")
	}

	return cfg
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
