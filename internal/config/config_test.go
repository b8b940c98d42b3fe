package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with defaults: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("expected default debounce 1s, got %v", cfg.Debounce)
	}
	if cfg.StatusTTL != 3*time.Second {
		t.Errorf("expected default status TTL 3s, got %v", cfg.StatusTTL)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Delay != 500*time.Millisecond {
		t.Errorf("expected 500ms retry delay, got %v", cfg.Retry.Delay)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %s", cfg.OpenAI.Model)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTOSAVE_DEBOUNCE", "250ms")
	t.Setenv("SAVE_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("SAVE_RETRY_EXPONENTIAL", "true")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Debounce)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if !cfg.Retry.Exponential {
		t.Error("expected exponential backoff enabled")
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cfg.OpenAI.Model)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("AUTOSAVE_DEBOUNCE", "soon")
	t.Setenv("SAVE_RETRY_MAX_ATTEMPTS", "many")
	t.Setenv("SAVE_RETRY_EXPONENTIAL", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("bad duration should fall back to default, got %v", cfg.Debounce)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("bad int should fall back to default, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Exponential {
		t.Error("bad bool should fall back to default")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:      "8080",
			DBPath:    "./data/test.db",
			Debounce:  time.Second,
			StatusTTL: time.Second,
			Retry:     RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
			OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero debounce", func(c *Config) { c.Debounce = 0 }},
		{"zero status ttl", func(c *Config) { c.StatusTTL = 0 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }},
		{"empty model", func(c *Config) { c.OpenAI.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		url string
		dev bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://workshop.example.com", false},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.url}
		if got := cfg.IsDevelopment(); got != tt.dev {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.url, got, tt.dev)
		}
	}
}
