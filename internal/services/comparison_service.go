package services

import (
	"context"
	"fmt"
	"time"

	"weather-compare/internal/config"
	"weather-compare/internal/models"
	"weather-compare/internal/repository"
	"weather-compare/pkg/clock"
	"weather-compare/pkg/logging"
)

// ComparisonService splits stored samples into "actual" and "forecast"
// series per day and serves them side by side for today and yesterday.
type ComparisonService struct {
	repo     repository.SampleRepository
	cfg      config.IngestionConfig
	location *time.Location
	clock    clock.Clock
	logger   *logging.StructuredLogger
}

// NewComparisonService creates a new comparison service
func NewComparisonService(
	repo repository.SampleRepository,
	cfg config.IngestionConfig,
	location *time.Location,
	clk clock.Clock,
	logger *logging.StructuredLogger,
) *ComparisonService {
	return &ComparisonService{
		repo:     repo,
		cfg:      cfg,
		location: location,
		clock:    clk,
		logger:   logger,
	}
}

// Compare builds the actual-vs-forecast comparison for one city covering
// today and yesterday in the configured fixed-offset zone. A city outside
// the configured set is a NotFoundError; a city with no stored samples is
// a valid all-absent result.
func (s *ComparisonService) Compare(ctx context.Context, cityName string) (*models.ComparisonResult, error) {
	city, ok := s.cfg.FindCity(cityName)
	if !ok {
		return nil, &repository.NotFoundError{Resource: "city", ID: cityName}
	}

	today := models.DateOf(s.clock.Now().In(s.location))
	yesterday := today.AddDate(0, 0, -1)

	result := &models.ComparisonResult{
		City:      city.Name,
		Today:     today.Format(models.DateFormat),
		Yesterday: yesterday.Format(models.DateFormat),
	}

	todaySamples, err := s.repo.GetSamplesForTargetDate(ctx, city.Name, today)
	if err != nil {
		return nil, fmt.Errorf("loading samples for %s: %w", result.Today, err)
	}
	result.TodayActual, result.TodayForecast = reconcile(todaySamples, today)

	yesterdaySamples, err := s.repo.GetSamplesForTargetDate(ctx, city.Name, yesterday)
	if err != nil {
		return nil, fmt.Errorf("loading samples for %s: %w", result.Yesterday, err)
	}
	result.YesterdayActual, result.YesterdayForecast = reconcile(yesterdaySamples, yesterday)

	return result, nil
}

// reconcile splits one target date's samples into the actual series
// (fetch_date == target_date) and the forecast series (fetch_date before
// target_date, earliest fetch_date wins per hour). Earliest wins is a
// policy choice: the oldest prediction is the most comparable across days,
// not the most accurate one. Hours without data stay nil.
func reconcile(samples []*models.TemperatureSample, targetDate time.Time) (actual, forecast models.HourlySeries) {
	var chosenFetch [24]*time.Time

	for _, sample := range samples {
		if sample.Hour < 0 || sample.Hour > 23 {
			continue
		}

		fetchDate := models.DateOf(sample.FetchDate)
		switch {
		case fetchDate.Equal(targetDate):
			actual.Set(sample.Hour, sample.TemperatureC)
		case fetchDate.Before(targetDate):
			prev := chosenFetch[sample.Hour]
			if prev == nil || fetchDate.Before(*prev) {
				fd := fetchDate
				chosenFetch[sample.Hour] = &fd
				forecast.Set(sample.Hour, sample.TemperatureC)
			}
		}
		// fetch_date after target_date cannot happen for data ingested by
		// this system; such rows are ignored rather than trusted.
	}

	return actual, forecast
}
