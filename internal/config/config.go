package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Clash of Clans API
	CocAPIToken string

	// Storage
	ConfigPath  string
	StatsDBPath string

	// War alert polling
	AlertIntervalSeconds int

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken: os.Getenv("DISCORD_BOT_TOKEN"),
		CocAPIToken:  os.Getenv("COC_API_TOKEN"),
		ConfigPath:   getEnvOrDefault("CONFIG_PATH", "./data/clan_configs.json"),
		StatsDBPath:  getEnvOrDefault("STATS_DB_PATH", "./data/bot_stats.db"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:      os.Getenv("LOG_FILE"),
	}

	// Parse alert poll interval
	intervalStr := getEnvOrDefault("ALERT_INTERVAL_SECONDS", "300")
	interval, err := strconv.Atoi(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_INTERVAL_SECONDS: %w", err)
	}
	cfg.AlertIntervalSeconds = interval

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.CocAPIToken == "" {
		return nil, fmt.Errorf("COC_API_TOKEN is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
