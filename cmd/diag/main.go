// diag checks database connectivity and configuration for Workshop Labs.
//
// It opens the configured database, runs a write/read/delete round trip
// against a scratch session, and reports whether chat assist is configured.
// Exits non-zero on the first failure.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dkoval/workshop-labs/internal/config"
	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/store"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Diagnostics failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("all checks passed")
}

func run(ctx context.Context, cfg *config.Config) error {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Warn("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	slog.Info("Database reachable", "path", cfg.DBPath)

	if err := roundTrip(ctx, repo); err != nil {
		return fmt.Errorf("round trip: %w", err)
	}
	slog.Info("Write/read/delete round trip OK")

	if cfg.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY not set; AI assist will require per-session credentials")
	} else {
		slog.Info("Chat credential configured", "model", cfg.OpenAI.Model)
	}
	return nil
}

// roundTrip exercises the section-record path with a scratch session, then
// cleans up after itself.
func roundTrip(ctx context.Context, repo store.Repository) error {
	sessionID := "diag-" + uuid.NewString()
	section := domain.SectionIdentity
	now := time.Now()

	rec := &domain.SectionRecord{
		SessionID:   sessionID,
		SectionName: section,
		InputData:   map[string]string{"brand_name": "diagnostic probe"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.UpsertSectionRecord(ctx, rec); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	stored, err := repo.GetSectionRecord(ctx, sessionID, section)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("read back: record missing after upsert")
	}
	if stored.InputData["brand_name"] != "diagnostic probe" {
		return fmt.Errorf("read back: payload mismatch: %q", stored.InputData["brand_name"])
	}

	if err := repo.DeleteSectionRecord(ctx, sessionID, section); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}
