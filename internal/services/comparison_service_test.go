package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"weather-compare/internal/models"
	"weather-compare/internal/repository"
	"weather-compare/pkg/clock"
)

func newTestComparisonService(repo *fakeRepo, clk clock.Clock) *ComparisonService {
	return NewComparisonService(repo, testCities(), testLocation(), clk, testLogger())
}

func TestCompare_UnknownCity(t *testing.T) {
	svc := newTestComparisonService(newFakeRepo(), clock.Fixed{T: time.Now()})

	_, err := svc.Compare(context.Background(), "Atlantis")

	var notFound *repository.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %T (%v), want *repository.NotFoundError", err, err)
	}
}

func TestCompare_NoSamplesIsAllAbsent(t *testing.T) {
	clk := clock.Fixed{T: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	svc := newTestComparisonService(newFakeRepo(), clk)

	result, err := svc.Compare(context.Background(), "Prague")
	if err != nil {
		t.Fatalf("Compare() error = %v, want all-absent result", err)
	}

	if result.Today != "2026-08-23" || result.Yesterday != "2026-08-22" {
		t.Errorf("dates = %s/%s, want 2026-08-23/2026-08-22", result.Today, result.Yesterday)
	}

	for h := 0; h < 24; h++ {
		if _, ok := result.TodayActual.At(h); ok {
			t.Fatalf("TodayActual hour %d set, want absent", h)
		}
		if _, ok := result.TodayForecast.At(h); ok {
			t.Fatalf("TodayForecast hour %d set, want absent", h)
		}
	}
}

func TestCompare_EarliestForecastWins(t *testing.T) {
	repo := newFakeRepo()
	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	// Three forecasts for today's 12:00, fetched 3, 2 and 1 days ahead.
	repo.add("Prague", today.AddDate(0, 0, -3), today, 12, 20.0)
	repo.add("Prague", today.AddDate(0, 0, -1), today, 12, 23.5)
	repo.add("Prague", today.AddDate(0, 0, -2), today, 12, 21.7)

	clk := clock.Fixed{T: time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)}
	svc := newTestComparisonService(repo, clk)

	result, err := svc.Compare(context.Background(), "Prague")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	got, ok := result.TodayForecast.At(12)
	if !ok {
		t.Fatal("TodayForecast hour 12 absent, want earliest fetch value")
	}
	if got != 20.0 {
		t.Errorf("TodayForecast[12] = %v, want 20.0 (earliest fetch)", got)
	}

	if _, ok := result.TodayActual.At(12); ok {
		t.Error("TodayActual[12] set, but no same-day sample exists")
	}
}

func TestCompare_ActualRequiresSameDayFetch(t *testing.T) {
	repo := newFakeRepo()
	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	// Yesterday's 09:00 as seen by yesterday's fetch (actual) and by a
	// forecast two days earlier.
	repo.add("Prague", yesterday, yesterday, 9, 16.3)
	repo.add("Prague", yesterday.AddDate(0, 0, -2), yesterday, 9, 18.0)

	// Today's 09:00 observed today.
	repo.add("Prague", today, today, 9, 19.1)

	clk := clock.Fixed{T: time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)}
	svc := newTestComparisonService(repo, clk)

	result, err := svc.Compare(context.Background(), "Prague")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if got, ok := result.YesterdayActual.At(9); !ok || got != 16.3 {
		t.Errorf("YesterdayActual[9] = %v (%v), want 16.3", got, ok)
	}
	if got, ok := result.YesterdayForecast.At(9); !ok || got != 18.0 {
		t.Errorf("YesterdayForecast[9] = %v (%v), want 18.0", got, ok)
	}
	if got, ok := result.TodayActual.At(9); !ok || got != 19.1 {
		t.Errorf("TodayActual[9] = %v (%v), want 19.1", got, ok)
	}
	if _, ok := result.TodayForecast.At(9); ok {
		t.Error("TodayForecast[9] set, but no earlier fetch covered it")
	}
}

func TestCompare_LaterFetchedRowsIgnored(t *testing.T) {
	repo := newFakeRepo()
	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	// Today's fetch also backfills yesterday's hours (past_days window).
	// Those rows are neither yesterday's actual nor its forecast.
	repo.add("Prague", today, yesterday, 15, 22.2)

	clk := clock.Fixed{T: time.Date(2026, 8, 23, 14, 0, 0, 0, time.UTC)}
	svc := newTestComparisonService(repo, clk)

	result, err := svc.Compare(context.Background(), "Prague")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if _, ok := result.YesterdayActual.At(15); ok {
		t.Error("backfilled row must not appear as yesterday's actual")
	}
	if _, ok := result.YesterdayForecast.At(15); ok {
		t.Error("backfilled row must not appear as yesterday's forecast")
	}
}

func TestCompare_DayBoundaryInLocalZone(t *testing.T) {
	repo := newFakeRepo()

	// 23:30 UTC on Aug 23 is 01:30 Aug 24 local: "today" must be Aug 24.
	clk := clock.Fixed{T: time.Date(2026, 8, 23, 23, 30, 0, 0, time.UTC)}
	svc := newTestComparisonService(repo, clk)

	result, err := svc.Compare(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if result.Today != "2026-08-24" || result.Yesterday != "2026-08-23" {
		t.Errorf("dates = %s/%s, want 2026-08-24/2026-08-23", result.Today, result.Yesterday)
	}
}

func TestCompare_StorageErrorPropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.readErr = errors.New("connection reset")

	clk := clock.Fixed{T: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	svc := newTestComparisonService(repo, clk)

	if _, err := svc.Compare(context.Background(), "Prague"); err == nil {
		t.Error("Compare() should surface storage errors")
	}
}

func TestReconcile_OrderIndependent(t *testing.T) {
	today := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	repo := newFakeRepo()
	repo.add("Prague", today.AddDate(0, 0, -1), today, 6, 14.0)
	repo.add("Prague", today.AddDate(0, 0, -3), today, 6, 12.5)
	repo.add("Prague", today, today, 6, 13.1)

	samples, err := repo.GetSamplesForTargetDate(context.Background(), "Prague", today)
	if err != nil {
		t.Fatalf("GetSamplesForTargetDate() error = %v", err)
	}

	for _, reverse := range []bool{false, true} {
		input := make([]*models.TemperatureSample, len(samples))
		copy(input, samples)
		if reverse {
			for i, j := 0, len(input)-1; i < j; i, j = i+1, j-1 {
				input[i], input[j] = input[j], input[i]
			}
		}

		actual, forecast := reconcile(input, today)

		if got, ok := actual.At(6); !ok || got != 13.1 {
			t.Errorf("reverse=%v: actual[6] = %v (%v), want 13.1", reverse, got, ok)
		}
		if got, ok := forecast.At(6); !ok || got != 12.5 {
			t.Errorf("reverse=%v: forecast[6] = %v (%v), want 12.5 (earliest fetch)", reverse, got, ok)
		}
	}
}
