package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnv               = "development"
	defaultHTTPHost          = "0.0.0.0"
	defaultHTTPPort          = 8080
	defaultRedisAddr         = "localhost:6379"
	defaultRedisDB           = 0
	defaultCacheTTLSeconds   = 5
	defaultLockTimeoutMillis = 5000
	defaultMarketMakerMarker = "bank"
	defaultTradesExchange    = "exchange.trades"
	defaultBatchSize         = 100
	defaultBatchTimeoutMS    = 500
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Env      string
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Cache    CacheConfig
	Matching MatchingConfig
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig stores trade feed publisher settings. An empty URL
// disables publishing.
type RabbitMQConfig struct {
	URL            string
	TradesExchange string
	BatchSize      int
	BatchTimeout   time.Duration
}

// CacheConfig stores statistics response cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

// MatchingConfig stores matching engine settings.
type MatchingConfig struct {
	// LockTimeout bounds lock acquisition for one matching pass; zero
	// means wait indefinitely.
	LockTimeout time.Duration
	// MarketMakerMarker is the email substring designating market-maker
	// accounts for the inventory statistic.
	MarketMakerMarker string
}

// Load builds Config from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	lockTimeoutMS, err := getInt("MATCH_LOCK_TIMEOUT_MS", defaultLockTimeoutMillis)
	if err != nil {
		return nil, fmt.Errorf("parse MATCH_LOCK_TIMEOUT_MS: %w", err)
	}

	batchSize, err := getInt("RABBITMQ_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		return nil, fmt.Errorf("parse RABBITMQ_BATCH_SIZE: %w", err)
	}
	batchTimeoutMS, err := getInt("RABBITMQ_BATCH_TIMEOUT_MS", defaultBatchTimeoutMS)
	if err != nil {
		return nil, fmt.Errorf("parse RABBITMQ_BATCH_TIMEOUT_MS: %w", err)
	}

	return &Config{
		Env:  getString("APP_ENV", defaultEnv),
		HTTP: HTTPConfig{Host: host, Port: port},
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		RabbitMQ: RabbitMQConfig{
			URL:            os.Getenv("RABBITMQ_URL"),
			TradesExchange: getString("RABBITMQ_TRADES_EXCHANGE", defaultTradesExchange),
			BatchSize:      batchSize,
			BatchTimeout:   time.Duration(batchTimeoutMS) * time.Millisecond,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		Matching: MatchingConfig{
			LockTimeout:       time.Duration(lockTimeoutMS) * time.Millisecond,
			MarketMakerMarker: getString("MARKET_MAKER_MARKER", defaultMarketMakerMarker),
		},
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}
