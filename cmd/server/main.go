// Workshop Labs - brand workshop data-entry server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkoval/workshop-labs/internal/api"
	"github.com/dkoval/workshop-labs/internal/autosave"
	"github.com/dkoval/workshop-labs/internal/chat"
	"github.com/dkoval/workshop-labs/internal/config"
	"github.com/dkoval/workshop-labs/internal/identity"
	"github.com/dkoval/workshop-labs/internal/middleware"
	"github.com/dkoval/workshop-labs/internal/realtime"
	"github.com/dkoval/workshop-labs/internal/retry"
	"github.com/dkoval/workshop-labs/internal/store"
	"github.com/dkoval/workshop-labs/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Realtime change feed.
	hub := realtime.NewHub()

	// Auto-save engine.
	saves := autosave.NewManager(repo, autosave.Config{
		Debounce:  cfg.Debounce,
		StatusTTL: cfg.StatusTTL,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
			Exponential: cfg.Retry.Exponential,
		},
	}, hub)
	defer saves.Close()
	slog.Info("Auto-save engine initialized", "debounce", cfg.Debounce)

	// Chat sequencer. Participants supply a per-session credential at
	// runtime; a server-wide key makes AI assist available immediately.
	seq := chat.NewSequencer(chat.Factory(cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil)
	aiEnabled := cfg.OpenAI.APIKey != ""
	if aiEnabled {
		if err := seq.SetDefaultCredential(cfg.OpenAI.APIKey); err != nil {
			slog.Error("Failed to set server chat credential", "error", err)
			os.Exit(1)
		}
		slog.Info("AI assist enabled with server credential", "model", cfg.OpenAI.Model)
	} else {
		slog.Info("AI assist requires per-session credentials (OPENAI_API_KEY not set)")
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, saves, cfg)
	sectionHandler := api.NewSectionHandler(baseHandler, aiEnabled)
	chatHandler := api.NewChatHandler(baseHandler, seq)
	extrasHandler := api.NewExtrasHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := realtime.NewWebSocketHandler(repo, hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	sectionHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	extrasHandler.RegisterRoutes(r)

	// WebSocket change feed.
	r.Get("/ws/changes", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket feeds stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
