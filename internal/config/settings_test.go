package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.CacheTTL != 10*time.Minute {
		t.Fatalf("expected default cache ttl, got %v", settings.CacheTTL)
	}
	if settings.LogLevel != "warn" || settings.LogFormat != "text" {
		t.Fatalf("unexpected log defaults %+v", settings)
	}
	if settings.RedisAddr != "" || settings.PlacesAPIKey != "" {
		t.Fatalf("expected empty optional settings, got %+v", settings)
	}
}

func TestLoadSettingsReadsFileFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Join([]string{
		"places_api_key: file-key",
		"http_min_interval_ms: 250",
		"cache_ttl: 30s",
		"log_format: json",
		"settings_command: [open, x-apple.systempreferences:]",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "nearby.yaml"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, err := LoadSettings("", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.PlacesAPIKey != "file-key" {
		t.Fatalf("expected file key, got %q", settings.PlacesAPIKey)
	}
	if settings.HTTPMinInterval() != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %v", settings.HTTPMinInterval())
	}
	if settings.CacheTTL != 30*time.Second || settings.LogFormat != "json" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if len(settings.SettingsCommand) != 2 || settings.SettingsCommand[0] != "open" {
		t.Fatalf("unexpected settings command %v", settings.SettingsCommand)
	}
}

func TestLoadSettingsEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "nearby.yaml"), []byte("places_api_key: file-key\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	t.Setenv("NEARBY_PLACES_API_KEY", "env-key")
	t.Setenv("NEARBY_REDIS_ADDR", "localhost:6379")

	settings, err := LoadSettings("", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.PlacesAPIKey != "env-key" {
		t.Fatalf("expected env key, got %q", settings.PlacesAPIKey)
	}
	if settings.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis addr from env, got %q", settings.RedisAddr)
	}
}

func TestLoadSettingsExplicitFileMustExist(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit settings file")
	}
}

func TestLoadSettingsValidates(t *testing.T) {
	t.Setenv("NEARBY_HTTP_MIN_INTERVAL_MS", "-5")
	t.Setenv("NEARBY_LOG_FORMAT", "xml")
	_, err := LoadSettings("", t.TempDir())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "http_min_interval_ms") || !strings.Contains(err.Error(), "log_format") {
		t.Fatalf("expected both problems to be reported, got %v", err)
	}
}
