package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weather-compare/internal/config"
	"weather-compare/internal/handlers"
	"weather-compare/internal/repository"
	"weather-compare/internal/scheduler"
	"weather-compare/internal/services"
	"weather-compare/internal/upstream"
	"weather-compare/pkg/clock"
	"weather-compare/pkg/database"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("weather-compare", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting weather compare server", logging.Fields{
		"version":        "1.0.0",
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"db_host":        cfg.Database.Host,
		"db_name":        cfg.Database.Database,
		"cities":         len(cfg.Ingestion.Cities),
		"fetch_interval": cfg.Ingestion.FetchInterval.String(),
		"retention_days": cfg.Ingestion.RetentionDays,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("weather_compare")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and upstream client
	sampleRepo := repository.NewSampleRepository(db, logger, metricsCollector)
	provider := upstream.NewOpenMeteoClient(cfg.Upstream, logger, metricsCollector)

	// Initialize services
	location := cfg.Upstream.Location()
	systemClock := clock.System{}

	ingestionService := services.NewIngestionService(
		sampleRepo, provider, cfg.Ingestion, location, systemClock, logger, metricsCollector)
	comparisonService := services.NewComparisonService(
		sampleRepo, cfg.Ingestion, location, systemClock, logger)
	statusService := services.NewStatusService(sampleRepo, cfg.Ingestion, logger)

	// Initialize handlers
	weatherHandler := handlers.NewWeatherHandler(
		comparisonService, ingestionService, statusService,
		cfg.Ingestion.CityNames(), logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestIDMiddleware)

	// Register routes
	weatherHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Start scheduled ingestion
	ingestScheduler := scheduler.New(ingestionService, cfg.Ingestion.FetchInterval, logger)
	if err := ingestScheduler.Start(); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start scheduler", logging.Fields{}, err)
	}
	defer ingestScheduler.Stop()

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
