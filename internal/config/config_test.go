package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("datasleuth-mcp", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Engine.DBPath != ":memory:" {
		t.Fatalf("Engine.DBPath = %q", cfg.Engine.DBPath)
	}
	if cfg.Query.DefaultRowLimit != 1000 {
		t.Fatalf("Query.DefaultRowLimit = %d", cfg.Query.DefaultRowLimit)
	}
	if cfg.Query.SampleRows != 10 {
		t.Fatalf("Query.SampleRows = %d", cfg.Query.SampleRows)
	}
	if cfg.Quality.NullRateThreshold != 0.05 {
		t.Fatalf("Quality.NullRateThreshold = %v", cfg.Quality.NullRateThreshold)
	}
	if cfg.Quality.ZThreshold != 3.0 {
		t.Fatalf("Quality.ZThreshold = %v", cfg.Quality.ZThreshold)
	}
	if len(cfg.Quality.PositiveKeywords) == 0 || cfg.Quality.PositiveKeywords[0] != "price" {
		t.Fatalf("Quality.PositiveKeywords = %v", cfg.Quality.PositiveKeywords)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"DATASLEUTH_PROFILE": "prod"})
	cfg, err := Load("datasleuth-mcp", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"DATASLEUTH_PROFILE":                     "test",
		"DATASLEUTH_SERVICE_NAME":                "sleuth-custom",
		"DATASLEUTH_HTTP_ADDR":                   ":9999",
		"DATASLEUTH_HTTP_SHUTDOWN_TIMEOUT":       "3s",
		"DATASLEUTH_ENGINE_DB_PATH":              "/tmp/sleuth.db",
		"DATASLEUTH_QUERY_DEFAULT_ROW_LIMIT":     "250",
		"DATASLEUTH_QUALITY_NULL_RATE_THRESHOLD": "0.1",
		"DATASLEUTH_QUALITY_Z_THRESHOLD":         "2.5",
		"DATASLEUTH_QUALITY_POSITIVE_KEYWORDS":   "price, weight",
		"DATASLEUTH_LOG_LEVEL":                   "error",
		"DATASLEUTH_AUTH_REQUIRED":               "true",
		"DATASLEUTH_AUTH_TOKENS":                 "tok-a,tok-b",
	})
	cfg, err := Load("datasleuth-mcp", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sleuth-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Fatalf("HTTP.ShutdownTimeout = %v", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.Engine.DBPath != "/tmp/sleuth.db" {
		t.Fatalf("Engine.DBPath = %q", cfg.Engine.DBPath)
	}
	if cfg.Query.DefaultRowLimit != 250 {
		t.Fatalf("Query.DefaultRowLimit = %d", cfg.Query.DefaultRowLimit)
	}
	if cfg.Quality.NullRateThreshold != 0.1 {
		t.Fatalf("Quality.NullRateThreshold = %v", cfg.Quality.NullRateThreshold)
	}
	if cfg.Quality.ZThreshold != 2.5 {
		t.Fatalf("Quality.ZThreshold = %v", cfg.Quality.ZThreshold)
	}
	if strings.Join(cfg.Quality.PositiveKeywords, "|") != "price|weight" {
		t.Fatalf("Quality.PositiveKeywords = %v", cfg.Quality.PositiveKeywords)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.Tokens != "tok-a,tok-b" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad profile", env: map[string]string{"DATASLEUTH_PROFILE": "staging"}},
		{name: "bad log level", env: map[string]string{"DATASLEUTH_LOG_LEVEL": "verbose"}},
		{name: "bad row limit", env: map[string]string{"DATASLEUTH_QUERY_DEFAULT_ROW_LIMIT": "0"}},
		{name: "bad null threshold", env: map[string]string{"DATASLEUTH_QUALITY_NULL_RATE_THRESHOLD": "1.5"}},
		{name: "bad z threshold", env: map[string]string{"DATASLEUTH_QUALITY_Z_THRESHOLD": "-1"}},
		{name: "empty keyword list", env: map[string]string{"DATASLEUTH_QUALITY_POSITIVE_KEYWORDS": " , "}},
		{name: "bad duration", env: map[string]string{"DATASLEUTH_HTTP_READ_TIMEOUT": "soon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load("datasleuth-mcp", mapLookup(tc.env)); err == nil {
				t.Fatal("Load() expected error")
			}
		})
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
