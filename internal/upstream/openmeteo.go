package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"weather-compare/internal/config"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

// HourlyTemperatures is the normalized upstream result: parallel, equal
// length timestamp and temperature slices.
type HourlyTemperatures struct {
	Timestamps   []time.Time
	Temperatures []float64
}

// Provider abstracts the hourly temperature source.
type Provider interface {
	FetchHourlyTemperatures(ctx context.Context, city config.City) (*HourlyTemperatures, error)
}

// TransportError means the provider was unreachable, timed out, or
// answered with a non-2xx status. The affected city is skipped; the next
// scheduled run is the retry mechanism.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream transport error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream transport error: %s", e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) IsTransient() bool { return true }

// ParseError means the response body did not carry the expected shape.
// Treated exactly like a TransportError by callers.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) IsTransient() bool { return false }

// hourlyTimestampLayout matches Open-Meteo local timestamps, e.g.
// "2026-08-23T14:00".
const hourlyTimestampLayout = "2006-01-02T15:04"

// OpenMeteoClient fetches hourly temperatures from an Open-Meteo style
// forecast endpoint. A circuit breaker keeps a flapping upstream from being
// hammered across scheduled runs; there are no per-request retries.
type OpenMeteoClient struct {
	baseURL      string
	timezone     string
	location     *time.Location
	pastDays     int
	forecastDays int
	client       *http.Client
	circuit      *gobreaker.CircuitBreaker
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewOpenMeteoClient creates a client from upstream configuration.
func NewOpenMeteoClient(cfg config.UpstreamConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *OpenMeteoClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoClient{
		baseURL:      cfg.BaseURL,
		timezone:     cfg.Timezone,
		location:     cfg.Location(),
		pastDays:     cfg.PastDays,
		forecastDays: cfg.ForecastDays,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		circuit: cb,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// openMeteoResponse mirrors the subset of the provider payload we consume.
type openMeteoResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// FetchHourlyTemperatures requests the configured past/future window of
// hourly temperatures for one city.
func (c *OpenMeteoClient) FetchHourlyTemperatures(ctx context.Context, city config.City) (*HourlyTemperatures, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%.4f", city.Latitude))
	values.Set("longitude", fmt.Sprintf("%.4f", city.Longitude))
	values.Set("hourly", "temperature_2m")
	values.Set("timezone", c.timezone)
	values.Set("past_days", fmt.Sprintf("%d", c.pastDays))
	values.Set("forecast_days", fmt.Sprintf("%d", c.forecastDays))

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransportError{Reason: "building request", Err: err}
	}

	timer := time.Now()
	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp, nil
	})
	c.metrics.UpstreamRequestDuration.Observe(time.Since(timer).Seconds())

	if err != nil {
		c.metrics.RecordUpstreamRequest(city.Name, "error")
		c.metrics.RecordUpstreamError("transport")
		return nil, &TransportError{Reason: fmt.Sprintf("fetching %s", city.Name), Err: err}
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.RecordUpstreamRequest(city.Name, "error")
		c.metrics.RecordUpstreamError("parse")
		return nil, &ParseError{Reason: "decoding response body", Err: err}
	}

	hourly, err := c.normalize(payload)
	if err != nil {
		c.metrics.RecordUpstreamRequest(city.Name, "error")
		c.metrics.RecordUpstreamError("parse")
		return nil, err
	}

	c.metrics.RecordUpstreamRequest(city.Name, "success")
	c.logger.Debug(ctx, "[UPSTREAM_FETCH] Hourly temperatures fetched", logging.Fields{
		"city":  city.Name,
		"hours": len(hourly.Timestamps),
	})

	return hourly, nil
}

// normalize validates the parallel arrays and parses local timestamps.
// A length mismatch rejects the whole payload: ingesting a truncated prefix
// could silently misalign hour indexes.
func (c *OpenMeteoClient) normalize(payload openMeteoResponse) (*HourlyTemperatures, error) {
	times := payload.Hourly.Time
	temps := payload.Hourly.Temperature2m

	if len(times) == 0 {
		return nil, &ParseError{Reason: "response has no hourly data"}
	}
	if len(times) != len(temps) {
		return nil, &ParseError{
			Reason: fmt.Sprintf("parallel array length mismatch: %d timestamps, %d temperatures", len(times), len(temps)),
		}
	}

	hourly := &HourlyTemperatures{
		Timestamps:   make([]time.Time, 0, len(times)),
		Temperatures: make([]float64, 0, len(temps)),
	}

	for i, raw := range times {
		ts, err := time.ParseInLocation(hourlyTimestampLayout, raw, c.location)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("bad timestamp %q", raw), Err: err}
		}
		hourly.Timestamps = append(hourly.Timestamps, ts)
		hourly.Temperatures = append(hourly.Temperatures, temps[i])
	}

	return hourly, nil
}
