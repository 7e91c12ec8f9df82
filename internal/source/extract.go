package source

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// dateScan finds date-looking text inside a container when no date element matched
var dateScan = regexp.MustCompile(`(?i)` +
	`\b\d{4}-\d{2}-\d{2}\b` +
	`|\b(?:jan|feb|f[eé]v|mar|apr|avr|may|mai|jun|juin|jul|juil|aug|ao[uû]|sep|oct|nov|dec|d[eé]c)[\p{L}]*\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?` +
	`|\b\d{1,2}(?:er)?\s+(?:jan|feb|f[eé]v|mar|apr|avr|may|mai|jun|juin|jul|juil|aug|ao[uû]|sep|oct|nov|dec|d[eé]c)[\p{L}]*\.?(?:\s+\d{4})?` +
	`|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)

// Extract reads one candidate per container matched by sel.Container.
// Links and images are resolved against pageURL.
func Extract(root *goquery.Selection, sel config.Selectors, pageURL string) []event.Candidate {
	var out []event.Candidate
	root.Find(sel.Container).Each(func(_ int, s *goquery.Selection) {
		if c, ok := ExtractOne(s, sel, pageURL); ok {
			out = append(out, c)
		}
	})
	return out
}

// ExtractOne reads a candidate from a single container. It reports false when
// no title selector yields usable text.
func ExtractOne(s *goquery.Selection, sel config.Selectors, pageURL string) (event.Candidate, bool) {
	title := extractTitle(s, sel.Title)
	if title == "" {
		return event.Candidate{}, false
	}

	c := event.Candidate{
		Title:    title,
		DateText: extractDate(s, sel.Date),
		URL:      event.ResolveURL(pageURL, extractLink(s, sel.Link)),
		ImageURL: event.ResolveImageURL(pageURL, extractImage(s, sel.Image)),
	}
	if sel.Venue != "" {
		c.VenueHint = collapse(s.Find(sel.Venue).First().Text())
	}
	return c, true
}

func extractTitle(s *goquery.Selection, selectors []string) string {
	for _, q := range selectors {
		var found string
		s.Find(q).EachWithBreak(func(_ int, t *goquery.Selection) bool {
			text := event.CleanTitle(t.Text())
			if n := len([]rune(text)); n >= event.MinTitleLength && n <= event.MaxTitleLength {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// extractDate prefers machine-readable datetime attributes, then the date
// selectors, then any date-looking text in the container.
func extractDate(s *goquery.Selection, selectors []string) string {
	if v, ok := s.Find("[datetime]").First().Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := s.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, q := range selectors {
		if text := collapse(s.Find(q).First().Text()); text != "" {
			return text
		}
	}
	return dateScan.FindString(collapse(s.Text()))
}

func extractLink(s *goquery.Selection, selector string) string {
	if goquery.NodeName(s) == "a" {
		if href, ok := s.Attr("href"); ok {
			return href
		}
	}
	if selector == "" {
		selector = "a[href]"
	}
	return s.Find(selector).First().AttrOr("href", "")
}

func extractImage(s *goquery.Selection, selector string) string {
	if selector == "" {
		selector = "img"
	}
	img := s.Find(selector).First()
	for _, attr := range []string{"data-src", "data-lazy-src", "src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	if srcset := img.AttrOr("srcset", ""); srcset != "" {
		if fields := strings.Fields(strings.Split(srcset, ",")[0]); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
