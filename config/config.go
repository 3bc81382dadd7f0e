package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Alpaca market data provider
	Alpaca AlpacaConfig

	// Redis configuration (optional shared cache tier)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// HTTP API
	APIPort int

	// Screening defaults and processing knobs
	Screening ScreeningConfig

	// Webhook notifications
	Webhooks WebhookConfig
}

// AlpacaConfig holds provider credentials and endpoints
type AlpacaConfig struct {
	KeyID         string
	SecretKey     string
	TradingURL    string
	DataURL       string
	StreamURL     string
	StreamEnabled bool
}

// ScreeningConfig holds screening filter defaults and worker limits
type ScreeningConfig struct {
	DefaultSymbols []string

	// Filter defaults
	MaxDTE          int
	MaxPITM         float64
	MinOpenInterest int
	MinVolume       int

	// Processing
	ParallelDefault    bool
	MaxParallelWorkers int

	// Model inputs
	RiskFreeRate float64
}

// WebhookConfig holds webhook delivery settings
type WebhookConfig struct {
	URLs            []string
	MinScore        float64
	CooldownMinutes int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Alpaca: AlpacaConfig{
			KeyID:         os.Getenv("ALPACA_KEY_ID"),
			SecretKey:     os.Getenv("ALPACA_SECRET_KEY"),
			TradingURL:    getEnvOrDefault("ALPACA_TRADING_URL", "https://paper-api.alpaca.markets"),
			DataURL:       getEnvOrDefault("ALPACA_DATA_URL", "https://data.alpaca.markets"),
			StreamURL:     getEnvOrDefault("ALPACA_STREAM_URL", "wss://stream.data.alpaca.markets/v2/iex"),
			StreamEnabled: getEnvOrDefault("ALPACA_STREAM_ENABLED", "false") == "true",
		},

		// Redis configuration (empty host disables the shared tier)
		RedisHost:     getEnvOrDefault("REDIS_HOST", ""),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort: getEnvInt("API_PORT", 8080),

		Screening: ScreeningConfig{
			DefaultSymbols: splitSymbols(getEnvOrDefault("SCREEN_DEFAULT_SYMBOLS", "AAPL,MSFT,GOOGL,TSLA,NVDA")),

			MaxDTE:          getEnvInt("SCREEN_MAX_DTE", 20),
			MaxPITM:         getEnvFloat("SCREEN_MAX_PITM", 20.0),
			MinOpenInterest: getEnvInt("SCREEN_MIN_OPEN_INTEREST", 10),
			MinVolume:       getEnvInt("SCREEN_MIN_VOLUME", 0),

			ParallelDefault:    getEnvOrDefault("SCREEN_PARALLEL_DEFAULT", "true") == "true",
			MaxParallelWorkers: getEnvInt("SCREEN_MAX_PARALLEL_WORKERS", 4),

			RiskFreeRate: getEnvFloat("SCREEN_RISK_FREE_RATE", 0.05),
		},

		Webhooks: WebhookConfig{
			URLs:            splitList(getEnvOrDefault("WEBHOOK_URLS", "")),
			MinScore:        getEnvFloat("WEBHOOK_MIN_SCORE", 60.0),
			CooldownMinutes: getEnvInt("WEBHOOK_COOLDOWN_MINUTES", 60),
		},
	}
}

// splitSymbols splits a comma separated ticker list, trimming and uppercasing
func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// splitList splits a comma separated list, trimming blanks
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
