package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Reviews  ReviewsConfig
	Rating   RatingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL     string
	Subject string
}

// CacheConfig holds caching TTL configuration
type CacheConfig struct {
	ProductRatingTTL time.Duration
	ReviewsListTTL   time.Duration
}

// AuthConfig holds the shared secret used to verify caller tokens
type AuthConfig struct {
	JWTSecret string
}

// ReviewsConfig holds review moderation policy
type ReviewsConfig struct {
	AutoApprove bool
}

// RatingConfig holds rating recomputation and reconciliation settings
type RatingConfig struct {
	MaxRetries           int
	InitialBackoff       time.Duration
	RetryDelay           time.Duration
	DebounceWindow       time.Duration
	ReconcileSchedule    string
	ReconcileBatchSize   int
	ReconcileConcurrency int
}

// Load reads configuration from environment variables and returns a Config struct.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "product_reviews")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_SUBJECT", "reviews.events")

	v.SetDefault("CACHE_TTL_PRODUCT_RATING", "300s")
	v.SetDefault("CACHE_TTL_REVIEWS_LIST", "120s")

	v.SetDefault("AUTH_JWT_SECRET", "")

	v.SetDefault("REVIEWS_AUTO_APPROVE", false)

	v.SetDefault("RATING_MAX_RETRIES", 3)
	v.SetDefault("RATING_INITIAL_BACKOFF", "100ms")
	v.SetDefault("RATING_RETRY_DELAY", "5s")
	v.SetDefault("RATING_DEBOUNCE_WINDOW", "1s")
	v.SetDefault("RATING_RECONCILE_SCHEDULE", "@every 5m")
	v.SetDefault("RATING_RECONCILE_BATCH_SIZE", 500)
	v.SetDefault("RATING_RECONCILE_CONCURRENCY", 4)

	durations := map[string]*time.Duration{}
	parse := func(key string) (time.Duration, error) {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}

	var (
		readTimeout, writeTimeout, shutdownTimeout, connMaxLifetime time.Duration
		productRatingTTL, reviewsListTTL                           time.Duration
		initialBackoff, retryDelay, debounceWindow                 time.Duration
	)
	durations["SERVER_READ_TIMEOUT"] = &readTimeout
	durations["SERVER_WRITE_TIMEOUT"] = &writeTimeout
	durations["SERVER_SHUTDOWN_TIMEOUT"] = &shutdownTimeout
	durations["DB_CONN_MAX_LIFETIME"] = &connMaxLifetime
	durations["CACHE_TTL_PRODUCT_RATING"] = &productRatingTTL
	durations["CACHE_TTL_REVIEWS_LIST"] = &reviewsListTTL
	durations["RATING_INITIAL_BACKOFF"] = &initialBackoff
	durations["RATING_RETRY_DELAY"] = &retryDelay
	durations["RATING_DEBOUNCE_WINDOW"] = &debounceWindow

	for key, dst := range durations {
		d, err := parse(key)
		if err != nil {
			return nil, err
		}
		*dst = d
	}

	allowedOriginsStr := v.GetString("CORS_ALLOWED_ORIGINS")
	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	config := &Config{
		Env: v.GetString("ENV"),
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AllowedOrigins:  allowedOrigins,
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NATS: NATSConfig{
			URL:     v.GetString("NATS_URL"),
			Subject: v.GetString("NATS_SUBJECT"),
		},
		Cache: CacheConfig{
			ProductRatingTTL: productRatingTTL,
			ReviewsListTTL:   reviewsListTTL,
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("AUTH_JWT_SECRET"),
		},
		Reviews: ReviewsConfig{
			AutoApprove: v.GetBool("REVIEWS_AUTO_APPROVE"),
		},
		Rating: RatingConfig{
			MaxRetries:           v.GetInt("RATING_MAX_RETRIES"),
			InitialBackoff:       initialBackoff,
			RetryDelay:           retryDelay,
			DebounceWindow:       debounceWindow,
			ReconcileSchedule:    v.GetString("RATING_RECONCILE_SCHEDULE"),
			ReconcileBatchSize:   v.GetInt("RATING_RECONCILE_BATCH_SIZE"),
			ReconcileConcurrency: v.GetInt("RATING_RECONCILE_CONCURRENCY"),
		},
	}

	if config.Rating.MaxRetries < 1 {
		return nil, fmt.Errorf("invalid RATING_MAX_RETRIES: must be at least 1")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
