package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// BrowserSource renders a page in headless Chrome before extracting, for
// calendars that build their listing with JavaScript.
type BrowserSource struct {
	name      string
	city      string
	url       string
	waitFor   string
	userAgent string
	selectors config.Selectors
}

// NewBrowserSource creates a browser source. waitFor is an optional CSS
// selector that must be visible before the DOM is read.
func NewBrowserSource(name, city, url, waitFor, userAgent string, selectors config.Selectors) *BrowserSource {
	return &BrowserSource{
		name:      name,
		city:      city,
		url:       url,
		waitFor:   waitFor,
		userAgent: userAgent,
		selectors: selectors,
	}
}

func (s *BrowserSource) Name() string { return s.name }
func (s *BrowserSource) City() string { return s.city }

// FetchCandidates navigates to the page and extracts from the rendered DOM
func (s *BrowserSource) FetchCandidates(ctx context.Context) ([]event.Candidate, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if s.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.userAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	tasks := chromedp.Tasks{chromedp.Navigate(s.url)}
	if s.waitFor != "" {
		tasks = append(tasks, chromedp.WaitVisible(s.waitFor, chromedp.ByQuery))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", s.url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered HTML: %w", err)
	}
	if candidates := Extract(doc.Selection, s.selectors, s.url); len(candidates) > 0 {
		return candidates, nil
	}
	return ExtractJSONLD(doc.Selection, s.url), nil
}
