// Package config loads the city-events configuration: the cities to scrape and
// their sources, storage and archive backends, notification channels and
// service settings.
//
// Configuration is read from a YAML file (or JSON5 when the file ends in .json
// or .json5). A sibling "<name>.local.<ext>" file is merged over it when present,
// then secrets and DSNs are taken from the environment, optionally seeded from
// a .env file. A missing config file is not an error; defaults apply.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// ErrNoSuchCity is returned when a city is not configured
var ErrNoSuchCity = errors.New("city not configured")

// Config is the top-level application configuration.
type Config struct {
	// DataDir holds file storage snapshots, monitor history and archived pages
	DataDir string `yaml:"data_dir" json:"data_dir"`

	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Archive   ArchiveConfig   `yaml:"archive" json:"archive"`
	Dedupe    DedupeConfig    `yaml:"dedupe" json:"dedupe"`
	Monitor   MonitorConfig   `yaml:"monitor" json:"monitor"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	API       APIConfig       `yaml:"api" json:"api"`

	// Schedule is the cron expression used by the schedule command
	Schedule string `yaml:"schedule" json:"schedule"`

	// BlockedDomains are aggregator and news sites that must never be used as sources
	BlockedDomains []string `yaml:"blocked_domains" json:"blocked_domains"`

	// DefaultSelectors fill in any selector a source leaves empty
	DefaultSelectors Selectors `yaml:"default_selectors" json:"default_selectors"`

	Cities []CityConfig `yaml:"cities" json:"cities"`
}

// HTTPConfig configures the page fetcher
type HTTPConfig struct {
	UserAgent        string   `yaml:"user_agent" json:"user_agent"`
	Timeout          Duration `yaml:"timeout" json:"timeout"`
	CloudflareBypass bool     `yaml:"cloudflare_bypass" json:"cloudflare_bypass"`
}

// StorageConfig selects the event store
type StorageConfig struct {
	// Driver is one of file, mongo, postgres, sqlite, dynamodb
	Driver   string `yaml:"driver" json:"driver"`
	DSN      string `yaml:"dsn" json:"dsn"`
	Database string `yaml:"database" json:"database"`
	Table    string `yaml:"table" json:"table"`
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// ArchiveConfig selects where raw fetched pages are kept
type ArchiveConfig struct {
	// Driver is one of none, file, s3
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
	Region string `yaml:"region" json:"region"`
}

// DedupeConfig holds the key fields of the batch deduplication pass
type DedupeConfig struct {
	KeyFields []string `yaml:"key_fields" json:"key_fields"`
}

// MonitorConfig configures source failure alerts
type MonitorConfig struct {
	Threshold int         `yaml:"threshold" json:"threshold"`
	History   int         `yaml:"history" json:"history"`
	Email     EmailConfig `yaml:"email" json:"email"`
}

// EmailConfig is the SMTP account alerts are sent from. The password comes
// from SMTP_PASSWORD.
type EmailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"-" json:"-"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
}

// Enabled reports whether enough is configured to send mail
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.From != "" && len(e.To) > 0
}

// NotifyConfig configures new-event notifications
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Twitter  TwitterConfig  `yaml:"twitter" json:"twitter"`
}

// TelegramConfig holds the bot credentials, normally from TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID
type TelegramConfig struct {
	Token  string `yaml:"-" json:"-"`
	ChatID string `yaml:"chat_id" json:"chat_id"`
	APIURL string `yaml:"api_url" json:"api_url"`
}

// Enabled reports whether the bot token and chat are set
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

// TwitterConfig holds OAuth1 credentials from the TWITTER_* variables
type TwitterConfig struct {
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	ConsumerKey       string `yaml:"-" json:"-"`
	ConsumerSecret    string `yaml:"-" json:"-"`
	AccessToken       string `yaml:"-" json:"-"`
	AccessTokenSecret string `yaml:"-" json:"-"`
}

// TelemetryConfig configures trace export
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	Insecure    bool   `yaml:"insecure" json:"insecure"`
}

// APIConfig configures the read API
type APIConfig struct {
	Listen       string `yaml:"listen" json:"listen"`
	DefaultLimit int    `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int    `yaml:"max_limit" json:"max_limit"`
}

// CityConfig lists the sources and known venues of one city
type CityConfig struct {
	Name     string         `yaml:"name" json:"name"`
	Timezone string         `yaml:"timezone" json:"timezone"`
	Venues   []VenueConfig  `yaml:"venues" json:"venues"`
	Sources  []SourceConfig `yaml:"sources" json:"sources"`
}

// Location returns the city's time zone, UTC when unset or unknown
func (c CityConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// VenueConfig describes a venue with its canonical name
type VenueConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Address string   `yaml:"address" json:"address"`
	Lat     *float64 `yaml:"lat" json:"lat"`
	Lng     *float64 `yaml:"lng" json:"lng"`
}

// SourceConfig describes one source of a city
type SourceConfig struct {
	Name     string `yaml:"name" json:"name"`
	Kind     string `yaml:"kind" json:"kind"` // html, jsonld, browser, crawl, static
	URL      string `yaml:"url" json:"url"`
	Category string `yaml:"category" json:"category"`
	Enabled  *bool  `yaml:"enabled" json:"enabled"`

	Venue VenueConfig `yaml:"venue" json:"venue"`

	// Date handling: year_policy is infer, require or month-rollover
	YearPolicy string `yaml:"year_policy" json:"year_policy"`
	AllowPast  bool   `yaml:"allow_past" json:"allow_past"`

	KeyByVenue bool `yaml:"key_by_venue" json:"key_by_venue"`
	KeyByURL   bool `yaml:"key_by_url" json:"key_by_url"`

	Timeout   Duration  `yaml:"timeout" json:"timeout"`
	Selectors Selectors `yaml:"selectors" json:"selectors"`

	// browser
	WaitFor string `yaml:"wait_for" json:"wait_for"`
	// crawl
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// static
	HorizonDays int                 `yaml:"horizon_days" json:"horizon_days"`
	Events      []StaticEventConfig `yaml:"events" json:"events"`
}

// IsEnabled reports whether the source should run; sources are enabled unless disabled explicitly
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Selectors are the CSS selectors used to read candidates off a page
type Selectors struct {
	Container string   `yaml:"container" json:"container"`
	Title     []string `yaml:"title" json:"title"`
	Date      []string `yaml:"date" json:"date"`
	Link      string   `yaml:"link" json:"link"`
	Image     string   `yaml:"image" json:"image"`
	Venue     string   `yaml:"venue" json:"venue"`
	Next      string   `yaml:"next" json:"next"`
}

// StaticEventConfig is a hand-maintained listing. RRule, when set, expands the
// entry into every occurrence within the source's horizon.
type StaticEventConfig struct {
	Title string `yaml:"title" json:"title"`
	Date  string `yaml:"date" json:"date"`
	RRule string `yaml:"rrule" json:"rrule"`
	URL   string `yaml:"url" json:"url"`
	Image string `yaml:"image" json:"image"`
	Venue string `yaml:"venue" json:"venue"`
}

// DefaultSelectors covers the markup most venue calendars use
func DefaultSelectors() Selectors {
	return Selectors{
		Container: ".event, .event-item, .events-list > li, article.event, .tribe-events-calendar-list__event, [class*=event-card]",
		Title:     []string{"h1", "h2", "h3", ".title", ".event-title", "[class*=title]"},
		Date:      []string{"time", ".date", ".event-date", "[class*=date]"},
		Link:      "a[href]",
		Image:     "img",
		Venue:     ".venue, .location, [class*=venue]",
	}
}

// DefaultBlockedDomains are listing aggregators whose pages repost other sites' events
var DefaultBlockedDomains = []string{
	"eventbrite.com",
	"allevents.in",
	"eventful.com",
	"timeout.com",
	"blogto.com",
	"facebook.com",
	"meetup.com",
	"todocanada.ca",
	"news.google.com",
	"cbc.ca",
	"ctvnews.ca",
	"globalnews.ca",
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = "~/.city-events"
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "Mozilla/5.0 (compatible; city-events/1.0; +https://github.com/pfrederiksen/city-events)"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = Duration(30 * time.Second)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "city_events"
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "events"
	}
	if c.Archive.Driver == "" {
		c.Archive.Driver = "none"
	}
	if len(c.Dedupe.KeyFields) == 0 {
		c.Dedupe.KeyFields = []string{"title", "venue.name", "date"}
	}
	if c.Monitor.Threshold <= 0 {
		c.Monitor.Threshold = 3
	}
	if c.Monitor.History <= 0 {
		c.Monitor.History = 10
	}
	if c.Monitor.Email.Port == 0 {
		c.Monitor.Email.Port = 587
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "city-events"
	}
	if c.API.Listen == "" {
		c.API.Listen = "127.0.0.1:8080"
	}
	if c.API.DefaultLimit <= 0 {
		c.API.DefaultLimit = 50
	}
	if c.API.MaxLimit <= 0 {
		c.API.MaxLimit = 500
	}
	if c.Schedule == "" {
		c.Schedule = "0 */6 * * *"
	}
	if c.BlockedDomains == nil {
		c.BlockedDomains = append([]string(nil), DefaultBlockedDomains...)
	}

	defaults := DefaultSelectors()
	// Merge never errors for two values of the same struct type
	_ = mergo.Merge(&c.DefaultSelectors, defaults)

	for i := range c.Cities {
		for j := range c.Cities[i].Sources {
			src := &c.Cities[i].Sources[j]
			if src.Kind == "" {
				src.Kind = "html"
			}
			if src.Timeout <= 0 {
				src.Timeout = c.HTTP.Timeout
			}
			if src.MaxPages <= 0 {
				src.MaxPages = 5
			}
			if src.HorizonDays <= 0 {
				src.HorizonDays = 90
			}
			_ = mergo.Merge(&src.Selectors, c.DefaultSelectors)
		}
	}
}

// City returns the configuration of the named city, matched case-insensitively
func (c *Config) City(name string) (*CityConfig, error) {
	for i := range c.Cities {
		if strings.EqualFold(c.Cities[i].Name, name) {
			return &c.Cities[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchCity, name)
}

// CityNames returns the configured city names in file order
func (c *Config) CityNames() []string {
	names := make([]string, 0, len(c.Cities))
	for _, city := range c.Cities {
		names = append(names, city.Name)
	}
	return names
}

// Load loads configuration from path.
//
// Behavior:
//   - a .env file in the working directory seeds the environment when present
//   - a missing config file yields the defaults
//   - "<name>.local.<ext>" next to the file overrides its values
//   - environment variables override secrets and DSNs
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if err := readInto(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}

		local := localPath(path)
		override := &Config{}
		err := readInto(local, override)
		switch {
		case err == nil:
			if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merging %s: %w", local, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("reading config %s: %w", local, err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

func readInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		return json5.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// localPath turns "config.yaml" into "config.local.yaml"
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Storage.Driver, "CITY_EVENTS_STORAGE_DRIVER")
	setFromEnv(&c.Storage.DSN, "CITY_EVENTS_STORAGE_DSN")
	if c.Storage.DSN == "" && strings.EqualFold(c.Storage.Driver, "mongo") {
		setFromEnv(&c.Storage.DSN, "MONGODB_URI")
	}
	setFromEnv(&c.DataDir, "CITY_EVENTS_DATA_DIR")
	setFromEnv(&c.Notify.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setFromEnv(&c.Notify.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setFromEnv(&c.Monitor.Email.Password, "SMTP_PASSWORD")
	setFromEnv(&c.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFromEnv(&c.Notify.Twitter.ConsumerKey, "TWITTER_CONSUMER_KEY")
	setFromEnv(&c.Notify.Twitter.ConsumerSecret, "TWITTER_CONSUMER_SECRET")
	setFromEnv(&c.Notify.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	setFromEnv(&c.Notify.Twitter.AccessTokenSecret, "TWITTER_ACCESS_SECRET")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Save writes cfg as YAML to path atomically with 0600 permissions.
// Secrets tagged "-" are never written.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming config: %w", err)
	}
	return nil
}
