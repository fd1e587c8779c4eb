package models

import (
	"time"
)

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"

// TemperatureSample is the only persistent entity: one hourly temperature
// value for a city, tagged with the date it describes (target_date) and the
// date it was retrieved on (fetch_date). The tuple
// (city, fetch_date, target_date, hour) is unique; re-ingesting overwrites
// the temperature.
type TemperatureSample struct {
	ID           int64     `json:"id" db:"id"`
	City         string    `json:"city" db:"city"`
	FetchDate    time.Time `json:"fetch_date" db:"fetch_date"`
	TargetDate   time.Time `json:"target_date" db:"target_date"`
	Hour         int       `json:"hour" db:"hour"`
	TemperatureC float64   `json:"temperature_c" db:"temperature_c"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsActual reports whether the sample is a same-day measurement for its
// target date.
func (s *TemperatureSample) IsActual() bool {
	return s.FetchDate.Equal(s.TargetDate)
}

// IsForecast reports whether the sample was fetched before its target date.
func (s *TemperatureSample) IsForecast() bool {
	return s.FetchDate.Before(s.TargetDate)
}

// HourlySeries is a fixed 24-slot temperature series indexed by hour of
// day. A nil slot means "no reading", which is distinct from 0°C; it
// marshals to JSON null.
type HourlySeries [24]*float64

// Set places a temperature at the given hour. Out-of-range hours are
// ignored rather than panicking: the upstream payload is untrusted.
func (h *HourlySeries) Set(hour int, temperature float64) {
	if hour < 0 || hour > 23 {
		return
	}
	t := temperature
	h[hour] = &t
}

// At returns the value at the given hour and whether it is set.
func (h *HourlySeries) At(hour int) (float64, bool) {
	if hour < 0 || hour > 23 || h[hour] == nil {
		return 0, false
	}
	return *h[hour], true
}

// ComparisonResult is the response shape of GET /api/weather/{city}:
// actual and forecast series for today and yesterday.
type ComparisonResult struct {
	City              string       `json:"city"`
	Today             string       `json:"today"`
	Yesterday         string       `json:"yesterday"`
	TodayActual       HourlySeries `json:"todayActual"`
	YesterdayActual   HourlySeries `json:"yesterdayActual"`
	TodayForecast     HourlySeries `json:"todayForecast"`
	YesterdayForecast HourlySeries `json:"yesterdayForecast"`
}

// StoreStatus summarizes stored state for operational introspection.
type StoreStatus struct {
	LastIngestedAt      *time.Time `json:"last_ingested_at" db:"last_ingested_at"`
	DistinctTargetDates int        `json:"distinct_target_dates" db:"distinct_target_dates"`
	TotalSamples        int        `json:"total_samples" db:"total_samples"`
}

// CityAggregate is one raw per-(fetch_date, target_date) debug row.
type CityAggregate struct {
	FetchDate       time.Time `json:"fetch_date" db:"fetch_date"`
	TargetDate      time.Time `json:"target_date" db:"target_date"`
	SampleCount     int       `json:"sample_count" db:"sample_count"`
	MinTemperatureC float64   `json:"min_temperature_c" db:"min_temperature_c"`
	MaxTemperatureC float64   `json:"max_temperature_c" db:"max_temperature_c"`
}

// DateOf truncates an instant to its calendar date, normalized to UTC
// midnight so date values compare and store consistently regardless of the
// zone the instant carried.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SamplesFromHourly converts parallel (timestamp, temperature) pairs from
// the upstream provider into samples tagged with fetchDate. target_date and
// hour are derived from each timestamp's own local representation.
func SamplesFromHourly(city string, fetchDate time.Time, timestamps []time.Time, temperatures []float64, now time.Time) []*TemperatureSample {
	n := len(timestamps)
	if len(temperatures) < n {
		n = len(temperatures)
	}

	samples := make([]*TemperatureSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, &TemperatureSample{
			City:         city,
			FetchDate:    DateOf(fetchDate),
			TargetDate:   DateOf(timestamps[i]),
			Hour:         timestamps[i].Hour(),
			TemperatureC: temperatures[i],
			CreatedAt:    now.UTC(),
		})
	}
	return samples
}
