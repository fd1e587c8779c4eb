package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"weather-compare/internal/config"
	"weather-compare/internal/models"
	"weather-compare/internal/repository"
	"weather-compare/internal/upstream"
	"weather-compare/pkg/clock"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

// ErrIngestionInFlight is returned when an ingestion run is started while
// another one (scheduled or manual) is still in progress.
var ErrIngestionInFlight = errors.New("ingestion run already in flight")

// IngestionService fetches hourly temperatures for every configured city
// and upserts them. Cities are processed sequentially, spaced out by a
// token-bucket limiter; per-city failures never abort the batch.
type IngestionService struct {
	repo     repository.SampleRepository
	provider upstream.Provider
	cfg      config.IngestionConfig
	location *time.Location
	limiter  *rate.Limiter
	clock    clock.Clock
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	inFlight atomic.Bool
}

// IngestionResult contains per-run ingestion statistics
type IngestionResult struct {
	CitiesAttempted int           `json:"cities_attempted"`
	CitiesSucceeded int           `json:"cities_succeeded"`
	CitiesFailed    int           `json:"cities_failed"`
	SamplesUpserted int           `json:"samples_upserted"`
	Duration        time.Duration `json:"duration"`
	Errors          []string      `json:"errors,omitempty"`
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	repo repository.SampleRepository,
	provider upstream.Provider,
	cfg config.IngestionConfig,
	location *time.Location,
	clk clock.Clock,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *IngestionService {
	limit := rate.Inf
	if cfg.CityDelay > 0 {
		limit = rate.Every(cfg.CityDelay)
	}

	return &IngestionService{
		repo:     repo,
		provider: provider,
		cfg:      cfg,
		location: location,
		limiter:  rate.NewLimiter(limit, 1),
		clock:    clk,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// IngestAll runs one ingestion pass over the configured city list. Only one
// run may be in flight at a time; overlapping invocations fail fast with
// ErrIngestionInFlight so the scheduled and manual triggers never race on
// upserts for the same city.
func (s *IngestionService) IngestAll(ctx context.Context) (*IngestionResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrIngestionInFlight
	}
	s.metrics.IngestionInFlight.Set(1)
	defer func() {
		s.inFlight.Store(false)
		s.metrics.IngestionInFlight.Set(0)
	}()

	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting ingestion run", logging.Fields{
		"cities": len(s.cfg.Cities),
	})

	result := &IngestionResult{
		CitiesAttempted: len(s.cfg.Cities),
	}

	for _, city := range s.cfg.Cities {
		// Sequential on purpose: the limiter spaces out upstream calls,
		// and serialized cities bound load on the provider and the pool.
		if err := s.limiter.Wait(ctx); err != nil {
			result.Duration = time.Since(startTime)
			return result, fmt.Errorf("ingestion interrupted: %w", err)
		}

		upserted, err := s.ingestCity(ctx, city)
		if err != nil {
			result.CitiesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", city.Name, err))
			s.logger.Error(ctx, "[INGEST_CITY_ERROR] City skipped", logging.Fields{
				"city": city.Name,
			}, err)
			continue
		}

		result.CitiesSucceeded++
		result.SamplesUpserted += upserted
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	outcome := "success"
	if result.CitiesFailed > 0 {
		outcome = "partial"
	}
	if result.CitiesSucceeded == 0 {
		outcome = "failure"
	}
	s.metrics.IngestionRunsTotal.WithLabelValues(outcome).Inc()

	s.logger.Info(ctx, "[INGEST_COMPLETE] Ingestion run completed", logging.Fields{
		"cities_attempted": result.CitiesAttempted,
		"cities_succeeded": result.CitiesSucceeded,
		"cities_failed":    result.CitiesFailed,
		"samples_upserted": result.SamplesUpserted,
		"duration_seconds": result.Duration.Seconds(),
		"outcome":          outcome,
	})

	return result, nil
}

// ingestCity fetches and upserts one city's hourly window.
func (s *IngestionService) ingestCity(ctx context.Context, city config.City) (int, error) {
	hourly, err := s.provider.FetchHourlyTemperatures(ctx, city)
	if err != nil {
		s.metrics.RecordIngestionError("upstream_error")
		return 0, err
	}

	// fetch_date is the local calendar date in the fixed-offset zone,
	// computed once per city. Wall-clock UTC would flip the date near
	// midnight for zones east of Greenwich.
	now := s.clock.Now()
	fetchDate := now.In(s.location)

	samples := models.SamplesFromHourly(city.Name, fetchDate, hourly.Timestamps, hourly.Temperatures, now)
	if len(samples) == 0 {
		s.metrics.RecordIngestionError("empty_response")
		return 0, fmt.Errorf("upstream returned no samples")
	}

	if err := s.repo.UpsertSamples(ctx, samples); err != nil {
		s.metrics.RecordIngestionError("storage_error")
		return 0, err
	}

	s.metrics.IngestionSamplesTotal.Add(float64(len(samples)))

	s.logger.Debug(ctx, "[INGEST_CITY] City ingested", logging.Fields{
		"city":       city.Name,
		"samples":    len(samples),
		"fetch_date": models.DateOf(fetchDate).Format(models.DateFormat),
	})

	return len(samples), nil
}

// Cleanup deletes samples whose fetch_date has aged out of the retention
// window. Idempotent; safe to run standalone.
func (s *IngestionService) Cleanup(ctx context.Context) (int64, error) {
	today := models.DateOf(s.clock.Now().In(s.location))
	cutoff := today.AddDate(0, 0, -s.cfg.RetentionDays)

	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.metrics.RecordIngestionError("cleanup_error")
		return 0, fmt.Errorf("retention cleanup failed: %w", err)
	}

	s.metrics.CleanupDeletedTotal.Add(float64(deleted))

	s.logger.Info(ctx, "[CLEANUP_COMPLETE] Retention cleanup completed", logging.Fields{
		"retention_days": s.cfg.RetentionDays,
		"cutoff":         cutoff.Format(models.DateFormat),
		"deleted":        deleted,
	})

	return deleted, nil
}
