package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"weather-compare/internal/config"
	"weather-compare/internal/models"
	"weather-compare/internal/upstream"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

// Shared across tests: promauto registers in the default registry, so the
// collector must be created once per test binary.
var testMetrics = metrics.NewCollector("services_test")

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func testCities() config.IngestionConfig {
	return config.IngestionConfig{
		Cities: []config.City{
			{Name: "Prague", Latitude: 50.0755, Longitude: 14.4378},
			{Name: "Berlin", Latitude: 52.5200, Longitude: 13.4050},
		},
		RetentionDays: 14,
	}
}

func testLocation() *time.Location {
	return time.FixedZone("local", 2*3600)
}

// fakeRepo is an in-memory SampleRepository keyed by the unique sample
// tuple, mirroring the database upsert contract.
type fakeRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.TemperatureSample
	upsertErr error
	readErr   error
	deleteErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*models.TemperatureSample)}
}

func sampleKey(s *models.TemperatureSample) string {
	return fmt.Sprintf("%s|%s|%s|%d",
		s.City,
		s.FetchDate.Format(models.DateFormat),
		s.TargetDate.Format(models.DateFormat),
		s.Hour,
	)
}

func (r *fakeRepo) UpsertSamples(ctx context.Context, samples []*models.TemperatureSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.upsertErr != nil {
		return r.upsertErr
	}
	for _, s := range samples {
		clone := *s
		r.rows[sampleKey(s)] = &clone
	}
	return nil
}

func (r *fakeRepo) GetSamplesForTargetDate(ctx context.Context, city string, targetDate time.Time) ([]*models.TemperatureSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readErr != nil {
		return nil, r.readErr
	}

	var out []*models.TemperatureSample
	for _, s := range r.rows {
		if s.City == city && s.TargetDate.Equal(targetDate) && !s.FetchDate.After(targetDate) {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FetchDate.Equal(out[j].FetchDate) {
			return out[i].FetchDate.Before(out[j].FetchDate)
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (r *fakeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteErr != nil {
		return 0, r.deleteErr
	}

	var deleted int64
	for key, s := range r.rows {
		if s.FetchDate.Before(cutoff) {
			delete(r.rows, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeRepo) GetStatus(ctx context.Context) (*models.StoreStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readErr != nil {
		return nil, r.readErr
	}

	status := &models.StoreStatus{}
	dates := make(map[string]bool)
	for _, s := range r.rows {
		status.TotalSamples++
		dates[s.TargetDate.Format(models.DateFormat)] = true
		if status.LastIngestedAt == nil || s.CreatedAt.After(*status.LastIngestedAt) {
			t := s.CreatedAt
			status.LastIngestedAt = &t
		}
	}
	status.DistinctTargetDates = len(dates)
	return status, nil
}

func (r *fakeRepo) GetCityBreakdown(ctx context.Context, city string) ([]*models.CityAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readErr != nil {
		return nil, r.readErr
	}

	groups := make(map[string]*models.CityAggregate)
	for _, s := range r.rows {
		if s.City != city {
			continue
		}
		key := s.FetchDate.Format(models.DateFormat) + "|" + s.TargetDate.Format(models.DateFormat)
		agg, ok := groups[key]
		if !ok {
			groups[key] = &models.CityAggregate{
				FetchDate:       s.FetchDate,
				TargetDate:      s.TargetDate,
				SampleCount:     1,
				MinTemperatureC: s.TemperatureC,
				MaxTemperatureC: s.TemperatureC,
			}
			continue
		}
		agg.SampleCount++
		if s.TemperatureC < agg.MinTemperatureC {
			agg.MinTemperatureC = s.TemperatureC
		}
		if s.TemperatureC > agg.MaxTemperatureC {
			agg.MaxTemperatureC = s.TemperatureC
		}
	}

	var out []*models.CityAggregate
	for _, agg := range groups {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FetchDate.Equal(out[j].FetchDate) {
			return out[i].FetchDate.Before(out[j].FetchDate)
		}
		return out[i].TargetDate.Before(out[j].TargetDate)
	})
	return out, nil
}

func (r *fakeRepo) HealthCheck(ctx context.Context) error { return nil }

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeRepo) add(city string, fetchDate, targetDate time.Time, hour int, temp float64) {
	s := &models.TemperatureSample{
		City:         city,
		FetchDate:    models.DateOf(fetchDate),
		TargetDate:   models.DateOf(targetDate),
		Hour:         hour,
		TemperatureC: temp,
		CreatedAt:    time.Now().UTC(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[sampleKey(s)] = s
}

// fakeProvider serves canned hourly windows per city.
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]*upstream.HourlyTemperatures
	errs      map[string]error
	calls     []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		responses: make(map[string]*upstream.HourlyTemperatures),
		errs:      make(map[string]error),
	}
}

func (p *fakeProvider) FetchHourlyTemperatures(ctx context.Context, city config.City) (*upstream.HourlyTemperatures, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, city.Name)
	if err := p.errs[city.Name]; err != nil {
		return nil, err
	}
	if resp := p.responses[city.Name]; resp != nil {
		return resp, nil
	}
	return nil, fmt.Errorf("no canned response for %s", city.Name)
}

func (p *fakeProvider) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// hourlyWindow builds a canned window of consecutive hours starting at
// start, one temperature per hour.
func hourlyWindow(start time.Time, temps ...float64) *upstream.HourlyTemperatures {
	window := &upstream.HourlyTemperatures{}
	for i, temp := range temps {
		window.Timestamps = append(window.Timestamps, start.Add(time.Duration(i)*time.Hour))
		window.Temperatures = append(window.Temperatures, temp)
	}
	return window
}
