package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL disables publishing and the worker
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// data.gov.in open data API
	DataGovAPIKey     string
	DataGovBaseURL    string
	DataGovResourceID string

	// Sync
	SyncInterval    time.Duration
	SyncConcurrency int
	SyncDebounce    time.Duration

	// Seeding
	SeedOnStartup bool
	SeedFile      string

	CacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8000"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/mgnrega.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "mgnrega"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_states"),

		DataGovAPIKey:     getEnv("DATA_GOV_API_KEY", ""),
		DataGovBaseURL:    getEnv("DATA_GOV_BASE_URL", "https://api.data.gov.in/resource"),
		DataGovResourceID: getEnv("DATA_GOV_RESOURCE_ID", "ee03643a-ee4c-48c2-ac30-9f2ff26ab722"),

		SyncInterval:    getEnvDuration("SYNC_INTERVAL", 24*time.Hour),
		SyncConcurrency: getEnvInt("SYNC_CONCURRENCY", 2),
		SyncDebounce:    getEnvDuration("SYNC_DEBOUNCE", 5*time.Second),

		SeedOnStartup: getEnvBool("SEED_ON_STARTUP", true),
		SeedFile:      getEnv("SEED_FILE", ""),

		CacheTTL: getEnvDuration("CACHE_TTL", 24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// DataGovEnabled reports whether live sync against data.gov.in is possible.
func (c *Config) DataGovEnabled() bool {
	return c.DataGovAPIKey != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if parsedURL, err := url.Parse(c.DataGovBaseURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid data.gov.in base URL '%s': must be http or https", c.DataGovBaseURL))
	}
	if c.DataGovAPIKey != "" && c.DataGovResourceID == "" {
		errors = append(errors, "data.gov.in resource ID cannot be empty when an API key is provided")
	}

	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 7 days", c.SyncInterval))
	}

	if c.SyncConcurrency < 1 || c.SyncConcurrency > 16 {
		errors = append(errors, fmt.Sprintf("invalid sync concurrency %d: must be between 1 and 16", c.SyncConcurrency))
	}

	if c.SyncDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync debounce %v: cannot be negative", c.SyncDebounce))
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("seed file not readable: %s", c.SeedFile))
		}
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
