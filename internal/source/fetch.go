package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/logger"
	"github.com/pfrederiksen/city-events/internal/telemetry"
)

// Fetcher downloads a page for a source
type Fetcher interface {
	Fetch(ctx context.Context, sourceName, pageURL string) ([]byte, error)
}

// HTTPFetcher fetches pages with a browser-like header set and optionally
// keeps a copy of every page in an Archive.
type HTTPFetcher struct {
	client  *resty.Client
	archive Archive
	now     func() time.Time
}

// NewHTTPFetcher creates a fetcher from the http section of the config.
// archive may be nil.
func NewHTTPFetcher(cfg config.HTTPConfig, archive Archive) *HTTPFetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout.Std())
	client.SetHeaders(map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-CA,en;q=0.9,fr;q=0.8",
	})
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &HTTPFetcher{
		client:  client,
		archive: archive,
		now:     time.Now,
	}
}

// Fetch downloads pageURL. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceName, pageURL string) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "source.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("source.name", sourceName),
		attribute.String("http.url", pageURL),
	)

	resp, err := f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		err := fmt.Errorf("fetching %s: unexpected status code: %d", pageURL, resp.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body := resp.Body()
	if f.archive != nil {
		key := ArchiveKey(sourceName, pageURL, f.now())
		if err := f.archive.Put(ctx, key, body); err != nil {
			// Archiving is best effort
			logger.Warn("Failed to archive page", logger.Fields{
				"source": sourceName,
				"key":    key,
				"error":  err.Error(),
			})
		}
	}
	return body, nil
}

// ArchiveKey names an archived page: "<source>/<utc timestamp>-<url hash>.html"
func ArchiveKey(sourceName, pageURL string, at time.Time) string {
	sum := sha1.Sum([]byte(pageURL))
	return fmt.Sprintf("%s/%s-%s.html", sourceName, at.UTC().Format("20060102T150405Z"), hex.EncodeToString(sum[:4]))
}
