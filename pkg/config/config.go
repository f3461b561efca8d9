// Package config provides environment-based configuration for the console.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the console backend.
type Config struct {
	// Database configuration
	DatabaseDSN string

	// Authentication
	JWTSecret    string
	JWTExpiry    time.Duration
	APIKeyHeader string

	// External engine endpoints
	Engines EnginesConfig

	// Server configuration
	APIPort int
	APIHost string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Log ingestion configuration
	Ingest IngestConfig

	// Log retention configuration
	Retention RetentionConfig

	// Worker configuration
	Worker WorkerConfig

	// Age secrets encryption configuration
	Secrets SecretsConfig
}

// EnginesConfig holds base URLs and the shared token for the backend engines.
type EnginesConfig struct {
	TransformURL string
	CDCURL       string
	SchedulerURL string
	MetadataURL  string
	Token        string
	Timeout      time.Duration
}

// IngestConfig holds log ingestion pipeline configuration.
type IngestConfig struct {
	BufferSize int
	Workers    int
	TailLines  int
}

// RetentionConfig holds log retention sweeper configuration.
type RetentionConfig struct {
	// MaxAge is how long logs of finished runs are kept.
	MaxAge time.Duration
	// Schedule is the cron expression for the sweep.
	Schedule string
}

// WorkerConfig holds sync-task worker configuration.
type WorkerConfig struct {
	PollInterval   time.Duration
	MaxAttempts    int
	MaxConcurrency int
	// TaskTimeout bounds a single sync attempt end to end.
	TaskTimeout time.Duration
}

// SecretsConfig holds age encryption configuration for data-source credentials.
type SecretsConfig struct {
	// AgePublicKey is the age recipient for encryption (required for the API server).
	AgePublicKey string
	// AgePrivateKey is the age identity for decryption (required for the worker).
	AgePrivateKey string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg := defaults()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret-key-min-32-chars"
	}
	return cfg
}

func defaults() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/flowdeck?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		APIKeyHeader:    getEnv("API_KEY_HEADER", "X-API-Key"),
		APIPort:         getIntEnv("API_PORT", 8080),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Engines: EnginesConfig{
			TransformURL: getEnv("TRANSFORM_ENGINE_URL", "http://localhost:9101"),
			CDCURL:       getEnv("CDC_ENGINE_URL", "http://localhost:9102"),
			SchedulerURL: getEnv("SCHEDULER_ENGINE_URL", "http://localhost:9103"),
			MetadataURL:  getEnv("METADATA_ENGINE_URL", "http://localhost:9104"),
			Token:        getEnv("ENGINE_TOKEN", ""),
			Timeout:      getDurationEnv("ENGINE_TIMEOUT", 30*time.Second),
		},
		Ingest: IngestConfig{
			BufferSize: getIntEnv("INGEST_BUFFER_SIZE", 4096),
			Workers:    getIntEnv("INGEST_WORKERS", 4),
			TailLines:  getIntEnv("INGEST_TAIL_LINES", 5000),
		},
		Retention: RetentionConfig{
			MaxAge:   getDurationEnv("LOG_RETENTION_MAX_AGE", 7*24*time.Hour),
			Schedule: getEnv("LOG_RETENTION_SCHEDULE", "0 * * * *"),
		},
		Worker: WorkerConfig{
			PollInterval:   getDurationEnv("WORKER_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:    getIntEnv("WORKER_MAX_ATTEMPTS", 3),
			MaxConcurrency: getIntEnv("WORKER_MAX_CONCURRENCY", 4),
			TaskTimeout:    getDurationEnv("WORKER_TASK_TIMEOUT", 30*time.Minute),
		},
		Secrets: SecretsConfig{
			AgePublicKey:  getEnv("AGE_PUBLIC_KEY", ""),
			AgePrivateKey: getEnv("AGE_PRIVATE_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
