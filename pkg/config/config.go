package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	RedisURL       string
	Port           string
	IsProduction   bool
	IdempotencyTTL time.Duration
	NotifierURL    string
	NotifierBuffer int
	RateLimit      string // ulule/limiter formatted rate, e.g. "100-M"
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("IDEMPOTENCY_TTL", "1h")
	viper.SetDefault("NOTIFIER_URL", "")
	viper.SetDefault("NOTIFIER_BUFFER", 64)
	viper.SetDefault("RATE_LIMIT", "100-M")

	viper.AutomaticEnv()

	cfg := &Config{}
	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	cfg.RedisURL = viper.GetString("REDIS_URL")
	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.IdempotencyTTL = viper.GetDuration("IDEMPOTENCY_TTL")
	cfg.NotifierURL = viper.GetString("NOTIFIER_URL")
	cfg.NotifierBuffer = viper.GetInt("NOTIFIER_BUFFER")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	return cfg, nil
}
