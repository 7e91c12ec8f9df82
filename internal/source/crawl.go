package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/logger"
)

// CrawlSource follows a paginated listing through its "next" link
type CrawlSource struct {
	name      string
	city      string
	url       string
	userAgent string
	maxPages  int
	timeout   time.Duration
	selectors config.Selectors
}

// NewCrawlSource creates a crawl source visiting at most maxPages pages
func NewCrawlSource(name, city, url, userAgent string, maxPages int, timeout time.Duration, selectors config.Selectors) *CrawlSource {
	if maxPages <= 0 {
		maxPages = 5
	}
	return &CrawlSource{
		name:      name,
		city:      city,
		url:       url,
		userAgent: userAgent,
		maxPages:  maxPages,
		timeout:   timeout,
		selectors: selectors,
	}
}

func (s *CrawlSource) Name() string { return s.name }
func (s *CrawlSource) City() string { return s.city }

// FetchCandidates crawls from the start page. Candidates from pages fetched
// before cancellation are kept.
func (s *CrawlSource) FetchCandidates(ctx context.Context) ([]event.Candidate, error) {
	start, err := url.Parse(s.url)
	if err != nil || start.Hostname() == "" {
		return nil, fmt.Errorf("invalid crawl url %q", s.url)
	}

	var (
		mu         sync.Mutex
		candidates []event.Candidate
		pages      int
	)

	var opts []colly.CollectorOption
	if s.userAgent != "" {
		opts = append(opts, colly.UserAgent(s.userAgent))
	}
	c := colly.NewCollector(opts...)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		pages++
		over := pages > s.maxPages
		mu.Unlock()
		if over || ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML(s.selectors.Container, func(h *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}
		if cand, ok := ExtractOne(h.DOM, s.selectors, h.Request.URL.String()); ok {
			mu.Lock()
			candidates = append(candidates, cand)
			mu.Unlock()
		}
	})

	if s.selectors.Next != "" {
		c.OnHTML(s.selectors.Next, func(h *colly.HTMLElement) {
			href := h.Attr("href")
			if href == "" {
				href = h.ChildAttr("a", "href")
			}
			next := h.Request.AbsoluteURL(href)
			if next == "" || ctx.Err() != nil {
				return
			}
			// Pagination never leaves the listing's host
			if u, err := url.Parse(next); err != nil || u.Host != start.Host {
				return
			}
			if err := h.Request.Visit(next); err != nil {
				logger.Debug("Crawl stopped following pagination", logger.Fields{
					"source": s.name,
					"url":    next,
					"reason": err.Error(),
				})
			}
		})
	}

	c.OnError(func(r *colly.Response, err error) {
		logger.Warn("Crawl request failed", logger.Fields{
			"source": s.name,
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
			"error":  err.Error(),
		})
	})

	if err := c.Visit(s.url); err != nil {
		if ctx.Err() != nil {
			return candidates, nil
		}
		return nil, fmt.Errorf("crawling %s: %w", s.url, err)
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	return candidates, nil
}
