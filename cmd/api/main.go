package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/civicatlas/stagedesk/docs" // This is for Swagger
	"github.com/civicatlas/stagedesk/internal/config"
	"github.com/civicatlas/stagedesk/internal/database"
	"github.com/civicatlas/stagedesk/internal/handlers"
	"github.com/civicatlas/stagedesk/internal/logger"
	"github.com/civicatlas/stagedesk/internal/middleware"
	"github.com/civicatlas/stagedesk/internal/scheduler"
	"github.com/civicatlas/stagedesk/internal/store"
	"github.com/civicatlas/stagedesk/internal/workflow"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title StageDesk API
// @version 1.0
// @description Moderation workflow API for collaboratively maintained civic data

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize store and workflow coordinator
	recordStore := store.NewPostgresStore(db.DB)
	coordinator := workflow.NewCoordinator(recordStore, workflow.Config{
		LockTTL:           cfg.Workflow.LockTTL,
		ApprovalThreshold: cfg.Workflow.ApprovalThreshold,
	})

	// Initialize handlers
	recordHandler := handlers.NewRecordHandler(coordinator)

	// Initialize middleware
	identityMw := middleware.NewIdentityMiddleware(cfg.JWT.Secret)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	// Start the optional lock sweep
	if cfg.Sweep.Enabled {
		sweep := scheduler.NewScheduler(recordStore, coordinator.LockTTL(), &cfg.Sweep)
		sweep.Start()
		defer sweep.Stop()
	}

	// Setup routes
	mux := http.NewServeMux()

	// Record endpoints
	mux.Handle("POST /api/v1/records",
		identityMw.Resolve(http.HandlerFunc(recordHandler.CreateDraft)))
	mux.Handle("GET /api/v1/records",
		identityMw.Resolve(http.HandlerFunc(recordHandler.ListRecords)))
	mux.Handle("GET /api/v1/records/reviewable",
		identityMw.Resolve(http.HandlerFunc(recordHandler.ListReviewable)))
	mux.Handle("GET /api/v1/records/{id}",
		identityMw.Resolve(http.HandlerFunc(recordHandler.GetRecord)))
	mux.Handle("POST /api/v1/records/{id}/submit",
		identityMw.Resolve(http.HandlerFunc(recordHandler.Submit)))

	// Lock endpoints
	mux.Handle("POST /api/v1/records/{id}/lock",
		identityMw.Resolve(http.HandlerFunc(recordHandler.AcquireLock)))
	mux.Handle("DELETE /api/v1/records/{id}/lock",
		identityMw.Resolve(http.HandlerFunc(recordHandler.ReleaseLock)))

	// Review endpoints
	mux.Handle("POST /api/v1/records/{id}/approve",
		identityMw.Resolve(http.HandlerFunc(recordHandler.Approve)))
	mux.Handle("POST /api/v1/records/{id}/reject",
		identityMw.Resolve(http.HandlerFunc(recordHandler.Reject)))
	mux.Handle("POST /api/v1/records/{id}/resubmit",
		identityMw.Resolve(http.HandlerFunc(recordHandler.Resubmit)))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`)); err != nil {
				slog.Error("Failed to write health check response", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`)); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
