package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	StaffChatID     int64 // Group chat that receives ticket notifications

	LogLevel    string
	Environment string

	OpenRouterAPIKey string // Empty disables summarization
	LLMModelName     string

	CronSpecDailyStats string
	CronSpecFAQRefresh string

	MetricsAddr string // Empty disables the metrics endpoint

	SupportTimezone    string
	SupportHoursStart  int
	SupportHoursEnd    int
	EnableWorkingHours bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	staffChatIDStr := os.Getenv("STAFF_CHAT_ID")
	if staffChatIDStr == "" {
		return nil, fmt.Errorf("STAFF_CHAT_ID is not set")
	}
	cfg.StaffChatID, err = strconv.ParseInt(staffChatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STAFF_CHAT_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.LLMModelName = os.Getenv("LLM_MODEL_NAME")
	if cfg.LLMModelName == "" {
		cfg.LLMModelName = "deepseek/deepseek-chat"
	}

	cfg.CronSpecDailyStats = os.Getenv("CRON_SPEC_DAILY_STATS")
	if cfg.CronSpecDailyStats == "" {
		cfg.CronSpecDailyStats = "0 20 * * *" // Default: 20:00 daily digest
	}
	cfg.CronSpecFAQRefresh = os.Getenv("CRON_SPEC_FAQ_REFRESH")
	if cfg.CronSpecFAQRefresh == "" {
		cfg.CronSpecFAQRefresh = "*/30 * * * *" // Default: every 30 minutes
	}

	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.SupportTimezone = os.Getenv("SUPPORT_TIMEZONE")
	if cfg.SupportTimezone == "" {
		cfg.SupportTimezone = "Europe/Moscow"
	}

	cfg.SupportHoursStart, err = intEnv("SUPPORT_HOURS_START", 9)
	if err != nil {
		return nil, err
	}
	cfg.SupportHoursEnd, err = intEnv("SUPPORT_HOURS_END", 18)
	if err != nil {
		return nil, err
	}

	cfg.EnableWorkingHours = strings.ToLower(os.Getenv("ENABLE_WORKING_HOURS")) == "true"

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
