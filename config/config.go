package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	DatabaseURL      string

	BaseURL        string
	UserAgent      string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration

	BatchSize        int
	BatchTimeout     time.Duration
	MaxPages         int
	MaxBatchFailures int

	TargetsFile     string
	Targets         *Targets
	SlackWebhookURL string

	LogLevel    string
	LogFile     string
	MetricsAddr string
}

// Load reads the .env file and returns a populated Config struct.
// Crawl targets come from TARGETS_FILE when set, otherwise the built-in defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "property_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),

		BaseURL:        strings.TrimRight(getEnv("BASE_URL", "https://www.zameen.com"), "/"),
		UserAgent:      getEnv("USER_AGENT", "property-scraper/1.0"),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 5),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 250),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		BatchSize:        getEnvInt("BATCH_SIZE", 50),
		BatchTimeout:     time.Duration(getEnvInt("BATCH_TIMEOUT_SEC", 300)) * time.Second,
		MaxPages:         getEnvInt("MAX_PAGES", 200),
		MaxBatchFailures: getEnvInt("MAX_BATCH_FAILURES", 3),

		TargetsFile:     getEnv("TARGETS_FILE", ""),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	targets := DefaultTargets()
	if cfg.TargetsFile != "" {
		t, err := LoadTargets(cfg.TargetsFile)
		if err != nil {
			return nil, err
		}
		targets = t
	}
	cfg.Targets = targets

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that numeric limits are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be >= 1, got %d", c.MaxConcurrency))
	}
	if c.RateLimitMs < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MS must be >= 0, got %d", c.RateLimitMs))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be >= 1, got %d", c.MaxRetries))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be >= 1, got %d", c.BatchSize))
	}
	if c.BatchTimeout < 0 {
		errs = append(errs, fmt.Errorf("BATCH_TIMEOUT_SEC must be >= 0, got %s", c.BatchTimeout))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be >= 1, got %d", c.MaxPages))
	}
	if c.MaxBatchFailures < 1 {
		errs = append(errs, fmt.Errorf("MAX_BATCH_FAILURES must be >= 1, got %d", c.MaxBatchFailures))
	}
	if c.Targets != nil {
		if err := c.Targets.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RateLimit returns the minimum spacing between outbound requests.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
