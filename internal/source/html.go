package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// HTMLSource reads a static page with CSS selectors. When the selectors match
// nothing it falls back to any JSON-LD events on the page.
type HTMLSource struct {
	name      string
	city      string
	url       string
	selectors config.Selectors
	fetcher   Fetcher
	jsonLD    bool
}

// NewHTMLSource creates an html source
func NewHTMLSource(name, city, url string, selectors config.Selectors, fetcher Fetcher) *HTMLSource {
	return &HTMLSource{name: name, city: city, url: url, selectors: selectors, fetcher: fetcher}
}

// NewJSONLDSource creates a source that reads only JSON-LD events
func NewJSONLDSource(name, city, url string, fetcher Fetcher) *HTMLSource {
	return &HTMLSource{name: name, city: city, url: url, fetcher: fetcher, jsonLD: true}
}

func (s *HTMLSource) Name() string { return s.name }
func (s *HTMLSource) City() string { return s.city }

// FetchCandidates fetches the page and extracts its candidates
func (s *HTMLSource) FetchCandidates(ctx context.Context) ([]event.Candidate, error) {
	body, err := s.fetcher.Fetch(ctx, s.name, s.url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	if s.jsonLD {
		return ExtractJSONLD(doc.Selection, s.url), nil
	}
	if candidates := Extract(doc.Selection, s.selectors, s.url); len(candidates) > 0 {
		return candidates, nil
	}
	return ExtractJSONLD(doc.Selection, s.url), nil
}
