package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"weather-compare/internal/config"
	"weather-compare/internal/repository"
	"weather-compare/internal/services"
	"weather-compare/internal/upstream"
	"weather-compare/pkg/clock"
	"weather-compare/pkg/database"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

func main() {
	// Parse command-line flags
	skipCleanup := flag.Bool("skip-cleanup", false, "Skip retention cleanup after ingestion")
	cleanupOnly := flag.Bool("cleanup-only", false, "Run retention cleanup without ingesting")
	flag.Parse()

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
	logger := logging.NewStructuredLogger("weather-fetcher", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[FETCHER_START] Starting one-shot ingestion", logging.Fields{
		"version":        "1.0.0",
		"cities":         len(cfg.Ingestion.Cities),
		"retention_days": cfg.Ingestion.RetentionDays,
		"cleanup_only":   *cleanupOnly,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("weather_fetcher")

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
		logger.Fatal(ctx, "[FETCHER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and services
	sampleRepo := repository.NewSampleRepository(db, logger, metricsCollector)
	provider := upstream.NewOpenMeteoClient(cfg.Upstream, logger, metricsCollector)

	ingestionService := services.NewIngestionService(
		sampleRepo, provider, cfg.Ingestion, cfg.Upstream.Location(), clock.System{}, logger, metricsCollector)

	if !*cleanupOnly {
		result, err := ingestionService.IngestAll(ctx)
		if err != nil {
			logger.Fatal(ctx, "[FETCHER_ERROR] Ingestion failed", logging.Fields{}, err)
		}

		fmt.Println(strings.Repeat("=", 60))
		fmt.Println("INGESTION COMPLETE")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("Cities Attempted:  %d\n", result.CitiesAttempted)
		fmt.Printf("Cities Succeeded:  %d\n", result.CitiesSucceeded)
		fmt.Printf("Cities Failed:     %d\n", result.CitiesFailed)
		fmt.Printf("Samples Upserted:  %d\n", result.SamplesUpserted)
		fmt.Printf("Duration:          %v\n", result.Duration)

		if len(result.Errors) > 0 {
			fmt.Printf("\nErrors (%d):\n", len(result.Errors))
			for _, errMsg := range result.Errors {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
	}

	if !*skipCleanup {
		deleted, err := ingestionService.Cleanup(ctx)
		if err != nil {
			logger.Fatal(ctx, "[FETCHER_ERROR] Cleanup failed", logging.Fields{}, err)
		}
		fmt.Printf("\nExpired samples deleted: %d\n", deleted)
	}

	logger.Info(ctx, "[FETCHER_COMPLETE] Run completed", logging.Fields{})
}
