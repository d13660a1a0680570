package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the exchange
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Exchange core
	Exchange ExchangeConfig

	// Reference price feed (market maker)
	Feed FeedConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ExchangeConfig holds trading core parameters
type ExchangeConfig struct {
	// MarginEnabled gates margin-mode order submission globally
	MarginEnabled bool

	// MarketBuyBuffer multiplies the best-ask reservation for market buys
	// to tolerate slippage, e.g. 1.05 reserves 5% extra
	MarketBuyBuffer decimal.Decimal

	// DepthLimit caps the number of price levels returned by the order
	// book endpoint
	DepthLimit int

	// BotMemberID is the liquidity bot's account, created at bootstrap
	BotMemberID int

	// BotInterval is how often the bot re-quotes
	BotInterval time.Duration

	// BotQuoteBudget tops up the bot's quote wallet when it drops below
	// half of this amount
	BotQuoteBudget decimal.Decimal

	// BotBaseBudget does the same for base coins
	BotBaseBudget decimal.Decimal
}

// FeedConfig holds the external reference price source
type FeedConfig struct {
	BaseURL string
	// RateLimit is requests per second against the feed
	RateLimit int
	Timeout   time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Exchange: ExchangeConfig{
			MarginEnabled:   getEnvAsBool("MARGIN_ENABLED", false),
			MarketBuyBuffer: getEnvAsDecimal("MARKET_BUY_BUFFER", "1.05"),
			DepthLimit:      getEnvAsInt("DEPTH_LIMIT", 10),
			BotMemberID:     getEnvAsInt("BOT_MEMBER_ID", 1),
			BotInterval:     getEnvAsDuration("BOT_INTERVAL", "5s"),
			BotQuoteBudget:  getEnvAsDecimal("BOT_QUOTE_BUDGET", "1000000"),
			BotBaseBudget:   getEnvAsDecimal("BOT_BASE_BUDGET", "10000"),
		},

		Feed: FeedConfig{
			BaseURL:   getEnv("FEED_BASE_URL", "https://api.binance.com"),
			RateLimit: getEnvAsInt("FEED_RATE_LIMIT", 5),
			Timeout:   getEnvAsDuration("FEED_TIMEOUT", "5s"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Exchange.MarketBuyBuffer.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MARKET_BUY_BUFFER must be >= 1")
	}

	if c.Exchange.BotMemberID <= 0 {
		return fmt.Errorf("BOT_MEMBER_ID must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	d, err := decimal.NewFromString(valueStr)
	if err != nil {
		d, _ = decimal.NewFromString(defaultValue)
	}

	return d
}
