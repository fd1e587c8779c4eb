package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"SERVER_HOST", "SERVER_PORT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"UPSTREAM_BASE_URL", "UPSTREAM_TIMEZONE", "TIMEZONE_OFFSET_MINUTES",
		"UPSTREAM_PAST_DAYS", "UPSTREAM_FORECAST_DAYS", "UPSTREAM_TIMEOUT",
		"WEATHER_CITIES", "FETCH_INTERVAL", "CITY_DELAY", "RETENTION_DAYS",
		"LOG_LEVEL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Ingestion.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Ingestion.RetentionDays)
	}
	if cfg.Upstream.PastDays != 3 || cfg.Upstream.ForecastDays != 3 {
		t.Errorf("window = %d/%d, want 3/3", cfg.Upstream.PastDays, cfg.Upstream.ForecastDays)
	}
	if cfg.Ingestion.FetchInterval != 6*time.Hour {
		t.Errorf("FetchInterval = %v, want 6h", cfg.Ingestion.FetchInterval)
	}
	if len(cfg.Ingestion.Cities) == 0 {
		t.Fatal("default city list is empty")
	}
	if cfg.Ingestion.Cities[0].Name != "Prague" {
		t.Errorf("first default city = %q, want Prague", cfg.Ingestion.Cities[0].Name)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfig_CityList(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_CITIES", "Brno:49.1951:16.6068, Ostrava:49.8209:18.2625")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(cfg.Ingestion.Cities) != 2 {
		t.Fatalf("got %d cities, want 2", len(cfg.Ingestion.Cities))
	}
	if cfg.Ingestion.Cities[0].Name != "Brno" || cfg.Ingestion.Cities[0].Latitude != 49.1951 {
		t.Errorf("unexpected first city: %+v", cfg.Ingestion.Cities[0])
	}
	if cfg.Ingestion.Cities[1].Name != "Ostrava" {
		t.Errorf("unexpected second city: %+v", cfg.Ingestion.Cities[1])
	}
}

func TestLoadConfig_InvalidCityList(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "missing coordinates", value: "Brno"},
		{name: "bad latitude", value: "Brno:north:16.6"},
		{name: "bad longitude", value: "Brno:49.2:east"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WEATHER_CITIES", tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig() with WEATHER_CITIES=%q should fail", tt.value)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		clearEnv(t)
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "no cities", mutate: func(c *Config) { c.Ingestion.Cities = nil }, wantErr: true},
		{
			name: "duplicate city",
			mutate: func(c *Config) {
				c.Ingestion.Cities = append(c.Ingestion.Cities, c.Ingestion.Cities[0])
			},
			wantErr: true,
		},
		{
			name:    "latitude out of range",
			mutate:  func(c *Config) { c.Ingestion.Cities[0].Latitude = 123 },
			wantErr: true,
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Ingestion.RetentionDays = 0 },
			wantErr: true,
		},
		{
			name:    "fetch interval too short",
			mutate:  func(c *Config) { c.Ingestion.FetchInterval = time.Second },
			wantErr: true,
		},
		{
			name:    "forecast days out of range",
			mutate:  func(c *Config) { c.Upstream.ForecastDays = 20 },
			wantErr: true,
		},
		{
			name:    "bad server port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIngestionConfig_FindCity(t *testing.T) {
	cfg := IngestionConfig{Cities: []City{
		{Name: "Prague", Latitude: 50.07, Longitude: 14.43},
		{Name: "Berlin", Latitude: 52.52, Longitude: 13.40},
	}}

	if _, ok := cfg.FindCity("Berlin"); !ok {
		t.Error("FindCity(Berlin) should succeed")
	}
	if _, ok := cfg.FindCity("berlin"); ok {
		t.Error("FindCity is exact-match; lowercase lookup should fail")
	}
	if _, ok := cfg.FindCity("Paris"); ok {
		t.Error("FindCity(Paris) should fail")
	}

	names := cfg.CityNames()
	if len(names) != 2 || names[0] != "Prague" || names[1] != "Berlin" {
		t.Errorf("CityNames() = %v, want [Prague Berlin]", names)
	}
}

func TestUpstreamConfig_Location(t *testing.T) {
	cfg := UpstreamConfig{TimezoneOffsetMinutes: 120}

	instant := time.Date(2026, 8, 23, 22, 30, 0, 0, time.UTC)
	local := instant.In(cfg.Location())

	if local.Hour() != 0 || local.Day() != 24 {
		t.Errorf("local time = %v, want 2026-08-24 00:30", local)
	}
}
