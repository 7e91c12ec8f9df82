package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/logger"
)

// Entry pairs a source with the config it was built from
type Entry struct {
	Source Source
	Config config.SourceConfig
}

// Skipped records a configured source that could not be built
type Skipped struct {
	City   string
	Source string
	Err    error
}

// Registry holds the runnable sources of every city, in config order
type Registry struct {
	cities  map[string][]Entry
	order   []string
	Skipped []Skipped
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{cities: make(map[string][]Entry)}
}

// Register adds a source under its city
func (r *Registry) Register(src Source, cfg config.SourceConfig) {
	key := strings.ToLower(src.City())
	if _, ok := r.cities[key]; !ok {
		r.order = append(r.order, src.City())
	}
	r.cities[key] = append(r.cities[key], Entry{Source: src, Config: cfg})
}

// Sources returns the entries of city in registration order
func (r *Registry) Sources(city string) []Entry {
	return r.cities[strings.ToLower(city)]
}

// Cities returns the cities with at least one source
func (r *Registry) Cities() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered sources
func (r *Registry) Len() int {
	n := 0
	for _, entries := range r.cities {
		n += len(entries)
	}
	return n
}

// Deps are the shared collaborators sources are built with
type Deps struct {
	Fetcher   Fetcher
	UserAgent string
	Now       func() time.Time
}

// New builds the source described by sc
func New(city config.CityConfig, sc config.SourceConfig, blocked []string, deps Deps) (Source, error) {
	if sc.Kind != "static" {
		if err := CheckURL(sc.URL, blocked); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(sc.Kind) {
	case "", "html":
		return NewHTMLSource(sc.Name, city.Name, sc.URL, sc.Selectors, deps.Fetcher), nil
	case "jsonld":
		return NewJSONLDSource(sc.Name, city.Name, sc.URL, deps.Fetcher), nil
	case "browser":
		return NewBrowserSource(sc.Name, city.Name, sc.URL, sc.WaitFor, deps.UserAgent, sc.Selectors), nil
	case "crawl":
		return NewCrawlSource(sc.Name, city.Name, sc.URL, deps.UserAgent, sc.MaxPages, sc.Timeout.Std(), sc.Selectors), nil
	case "static":
		return NewStaticSource(sc.Name, city.Name, sc.Events, sc.HorizonDays, city.Location(), deps.Now), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

// Build creates the registry for every enabled source in cfg. Sources that
// cannot be built are logged and listed in Skipped; they never stop the build.
func Build(cfg *config.Config, deps Deps) *Registry {
	r := NewRegistry()
	for _, city := range cfg.Cities {
		for _, sc := range city.Sources {
			if !sc.IsEnabled() {
				continue
			}
			src, err := New(city, sc, cfg.BlockedDomains, deps)
			if err != nil {
				logger.Warn("Skipping source", logger.Fields{
					"city":   city.Name,
					"source": sc.Name,
					"error":  err.Error(),
				})
				r.Skipped = append(r.Skipped, Skipped{City: city.Name, Source: sc.Name, Err: err})
				continue
			}
			r.Register(src, sc)
		}
	}
	return r
}
