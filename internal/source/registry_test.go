package source

import (
	"errors"
	"testing"
	"time"

	"github.com/pfrederiksen/city-events/internal/config"
)

func TestBuild(t *testing.T) {
	disabled := false
	cfg := &config.Config{
		BlockedDomains: []string{"eventbrite.com"},
		Cities: []config.CityConfig{
			{
				Name: "Calgary",
				Sources: []config.SourceConfig{
					{Name: "palace", Kind: "html", URL: "https://palace.example.com/events"},
					{Name: "aggregator", Kind: "html", URL: "https://www.eventbrite.com/d/calgary"},
					{Name: "rendered", Kind: "browser", URL: "https://spa.example.com"},
					{Name: "off", Kind: "html", URL: "https://off.example.com", Enabled: &disabled},
				},
			},
			{
				Name: "Ottawa",
				Sources: []config.SourceConfig{
					{Name: "listing", Kind: "crawl", URL: "https://listing.example.com"},
					{Name: "hand", Kind: "static"},
					{Name: "mystery", Kind: "carrier-pigeon", URL: "https://x.example.com"},
					{Name: "ld", Kind: "jsonld", URL: "https://ld.example.com"},
				},
			},
		},
	}

	r := Build(cfg, Deps{Fetcher: NewHTTPFetcher(testHTTPConfig(), nil), Now: func() time.Time { return referenceNow }})

	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}
	if got := r.Cities(); len(got) != 2 || got[0] != "Calgary" || got[1] != "Ottawa" {
		t.Errorf("Cities() = %v", got)
	}

	calgary := r.Sources("calgary")
	if len(calgary) != 2 || calgary[0].Source.Name() != "palace" || calgary[1].Source.Name() != "rendered" {
		t.Errorf("Calgary sources = %+v", calgary)
	}
	if _, ok := calgary[1].Source.(*BrowserSource); !ok {
		t.Errorf("rendered source is %T, want *BrowserSource", calgary[1].Source)
	}

	ottawa := r.Sources("Ottawa")
	if _, ok := ottawa[0].Source.(*CrawlSource); !ok {
		t.Errorf("listing source is %T, want *CrawlSource", ottawa[0].Source)
	}
	if _, ok := ottawa[1].Source.(*StaticSource); !ok {
		t.Errorf("hand source is %T, want *StaticSource", ottawa[1].Source)
	}
	if ottawa[2].Config.Name != "ld" {
		t.Errorf("entry config = %+v", ottawa[2].Config)
	}

	if len(r.Skipped) != 2 {
		t.Fatalf("Skipped = %+v, want 2 entries", r.Skipped)
	}
	if !errors.Is(r.Skipped[0].Err, ErrBlockedDomain) || r.Skipped[0].Source != "aggregator" {
		t.Errorf("Skipped[0] = %+v, want blocked aggregator", r.Skipped[0])
	}
	if r.Skipped[1].Source != "mystery" {
		t.Errorf("Skipped[1] = %+v", r.Skipped[1])
	}
}
