package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"invoicehub/constants"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Extraction ExtractionConfig
	Pipeline   PipelineConfig
}

// DatabaseConfig holds storage-related configuration. Driver selects the
// backend: "postgres" (pgx pool) or "sqlite" (local file).
type DatabaseConfig struct {
	Driver          string
	DSN             string
	SQLitePath      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// ExtractionConfig holds the extraction service location and probe budgets.
// BaseURL unset means "not configured": callers must treat that as a fatal
// ErrConfiguration before doing any work, never as an empty-string URL.
type ExtractionConfig struct {
	BaseURL            string
	HealthTimeoutBatch time.Duration
	HealthTimeoutSolo  time.Duration
	HealthRetries      int
	HealthRetryDelay   time.Duration
	PerFileTimeout     time.Duration
}

// Configured reports whether the extraction service location is set.
func (c ExtractionConfig) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

// PipelineConfig holds batch orchestration parameters.
type PipelineConfig struct {
	BatchSize       int
	WaveConcurrency int
	MaxFileSize     int64
}

// LoadConfig loads configuration from environment variables (and .env when
// present).
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			DSN:             getEnv("DB_URL", ""),
			SQLitePath:      getEnv("SQLITE_PATH", "./data/invoicehub.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Extraction: ExtractionConfig{
			BaseURL:            getEnv("EXTRACTION_BASE_URL", ""),
			HealthTimeoutBatch: getEnvAsDuration("EXTRACTION_HEALTH_TIMEOUT", 10*time.Second),
			HealthTimeoutSolo:  getEnvAsDuration("EXTRACTION_HEALTH_TIMEOUT_SINGLE", 30*time.Second),
			HealthRetries:      getEnvAsInt("EXTRACTION_HEALTH_RETRIES", 3),
			HealthRetryDelay:   getEnvAsDuration("EXTRACTION_HEALTH_RETRY_DELAY", 5*time.Second),
			PerFileTimeout:     getEnvAsDuration("EXTRACTION_PER_FILE_TIMEOUT", 60*time.Second),
		},
		Pipeline: PipelineConfig{
			BatchSize:       getEnvAsInt("BATCH_SIZE", 3),
			WaveConcurrency: getEnvAsInt("WAVE_CONCURRENCY", 2),
			MaxFileSize:     getEnvAsInt64("MAX_FILE_SIZE", constants.DefaultMaxFileSize),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if !c.Extraction.Configured() {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_BASE_URL is required", ErrConfiguration)
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres driver", ErrConfiguration)
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return NewAppError("CONFIG_ERROR", "SQLITE_PATH is required for the sqlite driver", ErrConfiguration)
		}
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrConfiguration)
	}
	if c.Pipeline.BatchSize < 1 {
		return NewAppError("CONFIG_ERROR", "BATCH_SIZE must be at least 1", ErrConfiguration)
	}
	if c.Pipeline.WaveConcurrency < 1 {
		return NewAppError("CONFIG_ERROR", "WAVE_CONCURRENCY must be at least 1", ErrConfiguration)
	}
	return nil
}
