// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	DBPath         string
	PublishableKey string // public API key exposed to the browser via /api/config
	Debounce       time.Duration
	StatusTTL      time.Duration
	Retry          RetryConfig
	OpenAI         OpenAIConfig
}

// RetryConfig controls the save-path retry budget.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Exponential bool
}

// OpenAIConfig configures the chat-assist provider. APIKey is a server-wide
// default; participants may also supply a per-session credential at runtime.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/workshop.db"),
		PublishableKey: getEnv("PUBLISHABLE_KEY", ""),
		Debounce:       getEnvDuration("AUTOSAVE_DEBOUNCE", time.Second),
		StatusTTL:      getEnvDuration("SAVE_STATUS_TTL", 3*time.Second),
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("SAVE_RETRY_MAX_ATTEMPTS", 3),
			Delay:       getEnvDuration("SAVE_RETRY_DELAY", 500*time.Millisecond),
			Exponential: getEnvBool("SAVE_RETRY_EXPONENTIAL", false),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("AUTOSAVE_DEBOUNCE must be > 0")
	}
	if c.StatusTTL <= 0 {
		return fmt.Errorf("SAVE_STATUS_TTL must be > 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("SAVE_RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("SAVE_RETRY_DELAY cannot be negative")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
