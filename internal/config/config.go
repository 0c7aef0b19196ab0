package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the application.
type Config struct {
	GeminiAPIKey string

	// Optional dedicated grouping service; when both are set it is used
	// instead of Gemini for grouping refreshes.
	GroupingServiceURL string
	GroupingServiceKey string

	DatabasePath string
	CacheSlot    string

	// Realtime feed of the shared trip (optional; the local database is
	// used when unset).
	TripFeedURL string
	TripID      string

	HTTPListenAddr string

	// Telegram Config (optional for the CLI, required for the bot)
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	databasePath := os.Getenv("CHALET_DB_PATH")
	if databasePath == "" {
		databasePath = "data/chalet-planner.db"
	}

	cacheSlot := os.Getenv("CHALET_CACHE_SLOT")
	if cacheSlot == "" {
		cacheSlot = "default"
	}

	httpAddr := os.Getenv("HTTP_LISTEN_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	var allowedIDs []int64
	if raw := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
			}
			allowedIDs = append(allowedIDs, id)
		}
	}

	return &Config{
		GeminiAPIKey:           geminiAPIKey,
		GroupingServiceURL:     os.Getenv("GROUPING_SERVICE_URL"),
		GroupingServiceKey:     os.Getenv("GROUPING_SERVICE_KEY"),
		DatabasePath:           databasePath,
		CacheSlot:              cacheSlot,
		TripFeedURL:            os.Getenv("TRIP_FEED_URL"),
		TripID:                 os.Getenv("TRIP_ID"),
		HTTPListenAddr:         httpAddr,
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowedIDs,
	}, nil
}
