package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CITY_EVENTS_STORAGE_DRIVER", "CITY_EVENTS_STORAGE_DSN", "MONGODB_URI",
		"CITY_EVENTS_DATA_DIR", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"SMTP_PASSWORD", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.Driver != "file" {
		t.Errorf("Storage.Driver = %q, want file", cfg.Storage.Driver)
	}
	if cfg.HTTP.Timeout.Std() != 30*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 30s", cfg.HTTP.Timeout)
	}
	if cfg.Monitor.Threshold != 3 {
		t.Errorf("Monitor.Threshold = %d, want 3", cfg.Monitor.Threshold)
	}
	if diff := cmp.Diff([]string{"title", "venue.name", "date"}, cfg.Dedupe.KeyFields); diff != "" {
		t.Errorf("Dedupe.KeyFields mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.BlockedDomains) == 0 {
		t.Error("expected default blocked domains")
	}
	if cfg.DefaultSelectors.Container == "" || len(cfg.DefaultSelectors.Title) == 0 {
		t.Errorf("default selectors not filled: %+v", cfg.DefaultSelectors)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Listen != "127.0.0.1:8080" {
		t.Errorf("API.Listen = %q", cfg.API.Listen)
	}
	if len(cfg.Cities) != 0 {
		t.Errorf("expected no cities, got %d", len(cfg.Cities))
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
data_dir: /tmp/events
http:
  timeout: 10s
storage:
  driver: sqlite
  dsn: /tmp/events.db
cities:
  - name: Calgary
    timezone: America/Edmonton
    sources:
      - name: palace
        url: https://palace.example.com/events
        category: music
        year_policy: month-rollover
        selectors:
          container: .show
      - name: folk-fest
        kind: static
        enabled: false
        events:
          - title: Folk Night
            date: "2025-07-01"
            rrule: "FREQ=WEEKLY;COUNT=4"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "/tmp/events.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	city, err := cfg.City("calgary")
	if err != nil {
		t.Fatalf("City() error = %v", err)
	}
	if city.Location().String() != "America/Edmonton" {
		t.Errorf("Location() = %v", city.Location())
	}
	if len(city.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(city.Sources))
	}

	palace := city.Sources[0]
	if palace.Kind != "html" {
		t.Errorf("Kind = %q, want html default", palace.Kind)
	}
	if palace.Timeout.Std() != 10*time.Second {
		t.Errorf("source Timeout = %v, want inherited 10s", palace.Timeout)
	}
	if palace.Selectors.Container != ".show" {
		t.Errorf("Container = %q, want the configured selector", palace.Selectors.Container)
	}
	if len(palace.Selectors.Title) == 0 {
		t.Error("expected Title selectors filled from defaults")
	}
	if !palace.IsEnabled() {
		t.Error("palace should be enabled by default")
	}

	folk := city.Sources[1]
	if folk.IsEnabled() {
		t.Error("folk-fest should be disabled")
	}
	if len(folk.Events) != 1 || folk.Events[0].RRule != "FREQ=WEEKLY;COUNT=4" {
		t.Errorf("static events = %+v", folk.Events)
	}
}

func TestLoadJSON5WithLocalOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	writeFile(t, path, `{
  // comments are allowed
  storage: {driver: "postgres", dsn: "postgres://base"},
  api: {listen: ":9000"},
  cities: [{name: "Montreal"}],
}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{
  storage: {dsn: "postgres://local"},
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Driver = %q, want postgres", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN != "postgres://local" {
		t.Errorf("DSN = %q, want local override", cfg.Storage.DSN)
	}
	if cfg.API.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.API.Listen)
	}
	if diff := cmp.Diff([]string{"Montreal"}, cfg.CityNames()); diff != "" {
		t.Errorf("CityNames mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CITY_EVENTS_STORAGE_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("SMTP_PASSWORD", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != "mongo" || cfg.Storage.DSN != "mongodb://localhost:27017" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !cfg.Notify.Telegram.Enabled() {
		t.Error("telegram should be enabled from env")
	}
	if cfg.Monitor.Email.Password != "secret" {
		t.Errorf("email password not taken from env")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "cities: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestCityNotConfigured(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.City("Atlantis")
	if !errors.Is(err, ErrNoSuchCity) {
		t.Errorf("City() error = %v, want ErrNoSuchCity", err)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"45", 45 * time.Second, false},
		{"", 0, false},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := d.parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if d.Std() != tt.want {
				t.Errorf("parse(%q) = %v, want %v", tt.in, d.Std(), tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	cfg := DefaultConfig()
	cfg.Cities = []CityConfig{{Name: "Ottawa", Sources: []SourceConfig{{Name: "nac", URL: "https://nac.example.com"}}}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Ottawa"}, loaded.CityNames()); diff != "" {
		t.Errorf("CityNames mismatch (-want +got):\n%s", diff)
	}
	if loaded.Cities[0].Sources[0].URL != "https://nac.example.com" {
		t.Errorf("source URL lost: %+v", loaded.Cities[0].Sources[0])
	}
}
