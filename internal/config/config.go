package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// City is one entry of the fixed configured city set. Coordinates are part
// of the configuration; the system never geocodes.
type City struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Config holds all externally supplied settings.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upstream  UpstreamConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type UpstreamConfig struct {
	// BaseURL of the Open-Meteo style forecast endpoint.
	BaseURL string
	// Timezone name passed to the provider so hourly timestamps come back
	// in local time (e.g. "Europe/Prague").
	Timezone string
	// TimezoneOffsetMinutes is the fixed UTC offset used for all local date
	// math (fetch_date, today/yesterday). Deliberately a fixed offset, not a
	// location lookup, so date boundaries are stable across DST changes.
	TimezoneOffsetMinutes int
	PastDays              int
	ForecastDays          int
	RequestTimeout        time.Duration
}

type IngestionConfig struct {
	Cities []City
	// FetchInterval is the scheduled ingestion cadence.
	FetchInterval time.Duration
	// CityDelay spaces out upstream calls between consecutive cities.
	CityDelay time.Duration
	// RetentionDays: samples with fetch_date older than this are purged.
	RetentionDays int
}

type LoggingConfig struct {
	Level string
}

// defaultCities is used when WEATHER_CITIES is not set.
var defaultCities = []City{
	{Name: "Prague", Latitude: 50.0755, Longitude: 14.4378},
	{Name: "Berlin", Latitude: 52.5200, Longitude: 13.4050},
	{Name: "Vienna", Latitude: 48.2082, Longitude: 16.3738},
	{Name: "Warsaw", Latitude: 52.2297, Longitude: 21.0122},
	{Name: "Munich", Latitude: 48.1351, Longitude: 11.5820},
}

// LoadConfig reads configuration from the environment, consulting a .env
// file when present.
func LoadConfig() (*Config, error) {
	// A missing .env is not an error; env vars may come from the runtime.
	_ = godotenv.Load()

	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	tzOffset, err := getIntEnv("TIMEZONE_OFFSET_MINUTES", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE_OFFSET_MINUTES: %w", err)
	}

	pastDays, err := getIntEnv("UPSTREAM_PAST_DAYS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_PAST_DAYS: %w", err)
	}

	forecastDays, err := getIntEnv("UPSTREAM_FORECAST_DAYS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_FORECAST_DAYS: %w", err)
	}

	retentionDays, err := getIntEnv("RETENTION_DAYS", 14)
	if err != nil {
		return nil, fmt.Errorf("invalid RETENTION_DAYS: %w", err)
	}

	fetchInterval, err := getDurationEnv("FETCH_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}

	cityDelay, err := getDurationEnv("CITY_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid CITY_DELAY: %w", err)
	}

	requestTimeout, err := getDurationEnv("UPSTREAM_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}

	cities, err := parseCities(os.Getenv("WEATHER_CITIES"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_CITIES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         serverPort,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "weather"),
			Password:        getEnv("DB_PASSWORD", "weather"),
			Database:        getEnv("DB_NAME", "weather_compare"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Upstream: UpstreamConfig{
			BaseURL:               getEnv("UPSTREAM_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
			Timezone:              getEnv("UPSTREAM_TIMEZONE", "Europe/Prague"),
			TimezoneOffsetMinutes: tzOffset,
			PastDays:              pastDays,
			ForecastDays:          forecastDays,
			RequestTimeout:        requestTimeout,
		},
		Ingestion: IngestionConfig{
			Cities:        cities,
			FetchInterval: fetchInterval,
			CityDelay:     cityDelay,
			RetentionDays: retentionDays,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks the configuration for values the rest of the system
// cannot work with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if len(c.Ingestion.Cities) == 0 {
		return fmt.Errorf("no cities configured")
	}
	seen := make(map[string]bool, len(c.Ingestion.Cities))
	for _, city := range c.Ingestion.Cities {
		if city.Name == "" {
			return fmt.Errorf("city with empty name")
		}
		if seen[city.Name] {
			return fmt.Errorf("duplicate city: %s", city.Name)
		}
		seen[city.Name] = true
		if city.Latitude < -90 || city.Latitude > 90 {
			return fmt.Errorf("city %s: latitude out of range: %f", city.Name, city.Latitude)
		}
		if city.Longitude < -180 || city.Longitude > 180 {
			return fmt.Errorf("city %s: longitude out of range: %f", city.Name, city.Longitude)
		}
	}
	if c.Ingestion.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive: %d", c.Ingestion.RetentionDays)
	}
	if c.Ingestion.FetchInterval < time.Minute {
		return fmt.Errorf("fetch interval too short: %s", c.Ingestion.FetchInterval)
	}
	if c.Upstream.PastDays < 0 || c.Upstream.PastDays > 92 {
		return fmt.Errorf("past days out of range: %d", c.Upstream.PastDays)
	}
	if c.Upstream.ForecastDays < 1 || c.Upstream.ForecastDays > 16 {
		return fmt.Errorf("forecast days out of range: %d", c.Upstream.ForecastDays)
	}
	if c.Upstream.TimezoneOffsetMinutes < -14*60 || c.Upstream.TimezoneOffsetMinutes > 14*60 {
		return fmt.Errorf("timezone offset out of range: %d", c.Upstream.TimezoneOffsetMinutes)
	}
	return nil
}

// Location returns the fixed-offset zone used for all local date math.
func (u UpstreamConfig) Location() *time.Location {
	return time.FixedZone("local", u.TimezoneOffsetMinutes*60)
}

// CityNames returns the configured names in configuration order.
func (i IngestionConfig) CityNames() []string {
	names := make([]string, len(i.Cities))
	for idx, c := range i.Cities {
		names[idx] = c.Name
	}
	return names
}

// FindCity looks a city up by exact name.
func (i IngestionConfig) FindCity(name string) (City, bool) {
	for _, c := range i.Cities {
		if c.Name == name {
			return c, true
		}
	}
	return City{}, false
}

// parseCities parses "Name:lat:lon,Name:lat:lon". An empty value yields the
// default city set.
func parseCities(raw string) ([]City, error) {
	if strings.TrimSpace(raw) == "" {
		cities := make([]City, len(defaultCities))
		copy(cities, defaultCities)
		return cities, nil
	}

	var cities []City
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("expected Name:lat:lon, got %q", part)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("city %s: bad latitude: %w", fields[0], err)
		}
		lon, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("city %s: bad longitude: %w", fields[0], err)
		}
		cities = append(cities, City{Name: fields[0], Latitude: lat, Longitude: lon})
	}
	return cities, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
