package services

import (
	"context"
	"fmt"
	"time"

	"weather-compare/internal/config"
	"weather-compare/internal/models"
	"weather-compare/internal/repository"
	"weather-compare/pkg/logging"
)

// StatusService provides operational introspection over the sample store.
// Not correctness-bearing; used for debugging and dashboards.
type StatusService struct {
	repo   repository.SampleRepository
	cfg    config.IngestionConfig
	logger *logging.StructuredLogger
}

// StatusReport is the response shape of GET /api/status.
type StatusReport struct {
	LastIngestedAt      *time.Time `json:"last_ingested_at"`
	CityCount           int        `json:"city_count"`
	DistinctTargetDates int        `json:"distinct_target_dates"`
	TotalSamples        int        `json:"total_samples"`
}

// NewStatusService creates a new status service
func NewStatusService(repo repository.SampleRepository, cfg config.IngestionConfig, logger *logging.StructuredLogger) *StatusService {
	return &StatusService{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// GetStatus reports last ingestion time and store-wide counters.
func (s *StatusService) GetStatus(ctx context.Context) (*StatusReport, error) {
	status, err := s.repo.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading store status: %w", err)
	}

	return &StatusReport{
		LastIngestedAt:      status.LastIngestedAt,
		CityCount:           len(s.cfg.Cities),
		DistinctTargetDates: status.DistinctTargetDates,
		TotalSamples:        status.TotalSamples,
	}, nil
}

// GetCityDebug returns the raw per-(fetch_date, target_date) aggregate rows
// for one configured city.
func (s *StatusService) GetCityDebug(ctx context.Context, cityName string) ([]*models.CityAggregate, error) {
	if _, ok := s.cfg.FindCity(cityName); !ok {
		return nil, &repository.NotFoundError{Resource: "city", ID: cityName}
	}

	aggregates, err := s.repo.GetCityBreakdown(ctx, cityName)
	if err != nil {
		return nil, fmt.Errorf("loading city breakdown: %w", err)
	}

	if aggregates == nil {
		aggregates = []*models.CityAggregate{}
	}

	return aggregates, nil
}
