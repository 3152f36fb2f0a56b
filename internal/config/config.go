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

	// Remote giving API
	APIBaseURL string
	APIToken   string

	// Local cache database
	CacheDBPath string

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Payment verification
	VerifyPollInterval time.Duration
	VerifyMaxAttempts  int

	// Verification sweeper (worker)
	SweepInterval time.Duration
	SweepMinAge   time.Duration

	// Fallback church identifier used when no preference is stored
	DefaultChurchID int64

	// Dashboard response memoization
	DashboardCacheTTL time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8082"),
		APIBaseURL:  getEnv("GIVING_API_URL", "https://api.altarfunds.app"),
		APIToken:    getEnv("GIVING_API_TOKEN", ""),
		CacheDBPath: getEnv("CACHE_DB_PATH", "./data/altarfunds.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "altarfunds"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "payment_results"),

		VerifyPollInterval: getEnvDuration("VERIFY_POLL_INTERVAL", 3*time.Second),
		VerifyMaxAttempts:  getEnvInt("VERIFY_MAX_ATTEMPTS", 10),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepMinAge:   getEnvDuration("SWEEP_MIN_AGE", 30*time.Minute),

		DefaultChurchID: int64(getEnvInt("DEFAULT_CHURCH_ID", 1)),

		DashboardCacheTTL: getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIBaseURL == "" {
		errors = append(errors, "giving API base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid giving API URL '%s': %v", c.APIBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid giving API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.CacheDBPath == "" {
		errors = append(errors, "cache database path cannot be empty")
	} else {
		dir := filepath.Dir(c.CacheDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create cache database directory '%s': %v", dir, err))
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

	if c.VerifyPollInterval < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid verify poll interval %v: must be at least 100ms", c.VerifyPollInterval))
	} else if c.VerifyPollInterval > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid verify poll interval %v: must be at most 1 minute", c.VerifyPollInterval))
	}

	if c.VerifyMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid verify max attempts %d: must be at least 1", c.VerifyMaxAttempts))
	} else if c.VerifyMaxAttempts > 100 {
		errors = append(errors, fmt.Sprintf("invalid verify max attempts %d: must be at most 100", c.VerifyMaxAttempts))
	}

	if c.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 second", c.SweepInterval))
	}

	if c.DefaultChurchID < 1 {
		errors = append(errors, fmt.Sprintf("invalid default church id %d: must be positive", c.DefaultChurchID))
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
