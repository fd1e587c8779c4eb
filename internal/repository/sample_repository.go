package repository

import (
	"context"
	"fmt"
	"time"

	"weather-compare/internal/models"
	"weather-compare/pkg/database"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

// SampleRepository provides data access for temperature samples
type SampleRepository interface {
	// UpsertSamples writes a batch of samples in one transaction. Existing
	// (city, fetch_date, target_date, hour) tuples get their temperature
	// overwritten; the operation is idempotent and safe to replay.
	UpsertSamples(ctx context.Context, samples []*models.TemperatureSample) error

	// GetSamplesForTargetDate returns every sample describing targetDate
	// that was fetched on or before it, ordered by fetch_date then hour.
	GetSamplesForTargetDate(ctx context.Context, city string, targetDate time.Time) ([]*models.TemperatureSample, error)

	// DeleteOlderThan removes samples whose fetch_date precedes cutoff and
	// reports how many rows were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// GetStatus reports store-wide counters for introspection.
	GetStatus(ctx context.Context) (*models.StoreStatus, error)

	// GetCityBreakdown returns per-(fetch_date, target_date) aggregates.
	GetCityBreakdown(ctx context.Context, city string) ([]*models.CityAggregate, error)

	HealthCheck(ctx context.Context) error
}

// sampleRepository implements SampleRepository
type sampleRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSampleRepository creates a new sample repository
func NewSampleRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SampleRepository {
	return &sampleRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const upsertSampleQuery = `
	INSERT INTO temperature_samples (
		city, fetch_date, target_date, hour, temperature_c, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (city, fetch_date, target_date, hour) DO UPDATE SET
		temperature_c = EXCLUDED.temperature_c
`

// UpsertSamples writes samples in a single transaction
func (r *sampleRepository) UpsertSamples(ctx context.Context, samples []*models.TemperatureSample) error {
	if len(samples) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_UPSERT] Sample batch upserted", logging.Fields{
			"count":       len(samples),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSampleQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		_, err := stmt.ExecContext(ctx,
			sample.City,
			sample.FetchDate,
			sample.TargetDate,
			sample.Hour,
			sample.TemperatureC,
			sample.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert sample %s %s h%d: %w",
				sample.City, sample.TargetDate.Format(models.DateFormat), sample.Hour, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSamplesForTargetDate retrieves actual and forecast candidates for one day
func (r *sampleRepository) GetSamplesForTargetDate(ctx context.Context, city string, targetDate time.Time) ([]*models.TemperatureSample, error) {
	query := `
		SELECT id, city, fetch_date, target_date, hour, temperature_c, created_at
		FROM temperature_samples
		WHERE city = $1 AND target_date = $2 AND fetch_date <= $2
		ORDER BY fetch_date, hour
	`

	var samples []*models.TemperatureSample
	err := r.db.SelectContext(ctx, "get_samples_for_target_date", &samples, query, city, targetDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get samples: %w", err)
	}

	return samples, nil
}

// DeleteOlderThan purges samples past the retention window
func (r *sampleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM temperature_samples WHERE fetch_date < $1`

	result, err := r.db.ExecContext(ctx, "delete_older_than", query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired samples: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted samples: %w", err)
	}

	r.logger.Info(ctx, "[REPO_CLEANUP] Expired samples deleted", logging.Fields{
		"cutoff":  cutoff.Format(models.DateFormat),
		"deleted": deleted,
	})

	return deleted, nil
}

// GetStatus reports store-wide counters
func (r *sampleRepository) GetStatus(ctx context.Context) (*models.StoreStatus, error) {
	query := `
		SELECT
			MAX(created_at) AS last_ingested_at,
			COUNT(DISTINCT target_date) AS distinct_target_dates,
			COUNT(*) AS total_samples
		FROM temperature_samples
	`

	var status models.StoreStatus
	if err := r.db.GetContext(ctx, "get_status", &status, query); err != nil {
		return nil, fmt.Errorf("failed to get store status: %w", err)
	}

	return &status, nil
}

// GetCityBreakdown returns raw per-(fetch_date, target_date) aggregates
func (r *sampleRepository) GetCityBreakdown(ctx context.Context, city string) ([]*models.CityAggregate, error) {
	query := `
		SELECT
			fetch_date,
			target_date,
			COUNT(*) AS sample_count,
			MIN(temperature_c) AS min_temperature_c,
			MAX(temperature_c) AS max_temperature_c
		FROM temperature_samples
		WHERE city = $1
		GROUP BY fetch_date, target_date
		ORDER BY fetch_date, target_date
	`

	var aggregates []*models.CityAggregate
	err := r.db.SelectContext(ctx, "get_city_breakdown", &aggregates, query, city)
	if err != nil {
		return nil, fmt.Errorf("failed to get city breakdown: %w", err)
	}

	return aggregates, nil
}

// HealthCheck performs a repository health check
func (r *sampleRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
