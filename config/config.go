package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Storage
	SQLitePath  string
	DatabaseURL string // postgres:// URL; empty = sqlite

	// Cache
	RedisAddr     string // empty = no cache
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Telemetry and outputs
	MetricsAddr      string // empty disables the metrics server
	KafkaBrokers     string // comma-separated; empty = no publish
	KafkaTopic       string
	AlertWebhookURL  string
	TelegramBotToken string
	TelegramChatID   string
	LogLevel         string

	// Engine
	BatchSize int
	Workers   int // 0 = min(NumCPU, 16)

	// Refresh pipeline
	RefreshWorkers   int
	RefreshQueueSize int
}

// Load reads a .env file when present, then environment variables with
// sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file found, using environment variables")
	}

	return &Config{
		SQLitePath:  getEnv("SQLITE_PATH", "data/market.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_SEC", 3600)) * time.Second,

		MetricsAddr:      getEnv("METRICS_ADDR", ":9090"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "backtest.trades"),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),

		BatchSize: getEnvInt("BACKTEST_BATCH_SIZE", 150),
		Workers:   getEnvInt("BACKTEST_WORKERS", 0),

		RefreshWorkers:   getEnvInt("REFRESH_WORKERS", 4),
		RefreshQueueSize: getEnvInt("REFRESH_QUEUE_SIZE", 256),
	}
}

// Brokers splits KafkaBrokers into addresses.
func (c *Config) Brokers() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UsePostgres reports whether DatabaseURL selects the Postgres reader.
func (c *Config) UsePostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
