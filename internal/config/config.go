package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the client.
type Config struct {
	APIBaseURL  string
	DataDir     string
	DBPath      string
	HTTPTimeout time.Duration

	// Telegram Config (optional for the CLI, required for the bot)
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first if present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	apiBaseURL := os.Getenv("NUTRIETARY_API_URL")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("NUTRIETARY_API_URL environment variable not set")
	}
	apiBaseURL = strings.TrimRight(apiBaseURL, "/")

	dataDir := os.Getenv("NUTRIETARY_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	dbPath := os.Getenv("NUTRIETARY_DB_PATH")
	if dbPath == "" {
		dbPath = dataDir + "/nutrietary-client.db"
	}

	httpTimeout := 30 * time.Second
	if v := os.Getenv("NUTRIETARY_HTTP_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid NUTRIETARY_HTTP_TIMEOUT_SECONDS value %q", v)
		}
		httpTimeout = time.Duration(secs) * time.Second
	}

	var allowedIDs []int64
	if v := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q", part)
			}
			allowedIDs = append(allowedIDs, id)
		}
	}

	var adminID int64
	if v := os.Getenv("TELEGRAM_ADMIN_ID"); v != "" {
		fmt.Sscanf(v, "%d", &adminID)
	}

	return &Config{
		APIBaseURL:             apiBaseURL,
		DataDir:                dataDir,
		DBPath:                 dbPath,
		HTTPTimeout:            httpTimeout,
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowedIDs,
		AdminTelegramID:        adminID,
	}, nil
}
