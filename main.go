// Command gold-trader runs the signal generation and trading HTTP service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gold-trader/broker"
	"gold-trader/config"
	"gold-trader/forecast"
	"gold-trader/internal/api"
	"gold-trader/internal/app"
	"gold-trader/models"
	"gold-trader/observability"
	"gold-trader/pipeline"
	"gold-trader/repository"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		observability.InitLogger(true)
		observability.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(true)
		observability.Fatal("failed to load configuration", "error", err)
	}

	observability.InitLogger(cfg.Production)
	observability.InitMetrics()

	ctx := context.Background()

	// Initialize database
	repo, err := repository.NewRepository(ctx, cfg.Database.URL)
	if err != nil {
		observability.Fatal("failed to connect to database", "error", err)
	}
	defer repo.Close()
	observability.Info("connected to database")

	// Forecast engine with file-backed model artifacts
	artifactStore, err := forecast.NewFileStore(cfg.Forecast.ModelDir)
	if err != nil {
		observability.Fatal("failed to open model directory", "error", err, "dir", cfg.Forecast.ModelDir)
	}
	engine := forecast.NewEngine(cfg.Forecast, artifactStore)
	for _, tf := range models.AllTimeframes() {
		if model, err := engine.Reload(tf); err == nil {
			observability.Info("loaded forecast model", "timeframe", tf, "version", model.Version)
		}
	}

	// Brokerage gateway
	gateway := broker.NewKiteGateway(cfg.Kite)

	// Signal pipeline
	pl := pipeline.New(cfg, repo, engine, gateway)

	application := app.New(cfg, repo, pl, gateway)

	// Create HTTP router
	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		observability.Info("starting server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Fatal("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}
