package event

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Title length bounds, in runes. Longer titles are rejected by validation and
// cut by StoredTitle.
const (
	MinTitleLength = 3
	MaxTitleLength = 200
)

// Origin carries the per-source context an event is built with
type Origin struct {
	Source   string
	City     string
	Category string
	BaseURL  string
	Venue    Venue
}

// NewEvent promotes a validated candidate and its resolved date into an event.
// The venue comes from the origin when configured, else from the candidate's hint.
func NewEvent(c Candidate, date Date, o Origin, now time.Time) *Event {
	title := StoredTitle(c.Title)

	venue := o.Venue
	if venue.Name == "" {
		venue.Name = strings.Join(strings.Fields(c.VenueHint), " ")
	}
	if venue.City == "" {
		venue.City = o.City
	}

	evt := &Event{
		ID:        GenerateID(title, venue.Name, date),
		StableKey: GenerateStableKey(o.Source, title),
		Title:     title,
		Date:      date,
		Venue:     venue,
		City:      o.City,
		Category:  o.Category,
		Source:    o.Source,
		URL:       ResolveURL(o.BaseURL, c.URL),
		ImageURL:  ResolveImageURL(o.BaseURL, c.ImageURL),
		FirstSeen: now.UTC(),
		LastSeen:  now.UTC(),
	}
	if venue.Coordinates != nil {
		coords := *venue.Coordinates
		evt.Venue.Coordinates = &coords
	}
	return evt
}

// Rebuild recomputes the derived ID after the title or venue of an event changed
func (e *Event) Rebuild() {
	e.ID = GenerateID(e.Title, e.Venue.Name, e.Date)
	e.StableKey = GenerateStableKey(e.Source, e.Title)
}

var titleSeparators = []string{" | ", " — ", " – ", " :: "}

// CleanTitle normalizes title text scraped from a page: only the first line is kept,
// trailing site names after a separator are dropped, and whitespace is collapsed.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	for _, sep := range titleSeparators {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// StoredTitle returns the title as an event stores it and derives its id from
func StoredTitle(raw string) string {
	return truncate(CleanTitle(raw), MaxTitleLength)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}

// ResolveURL resolves ref against base. Unresolvable or empty refs yield "".
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(r).String()
}

var placeholderImage = regexp.MustCompile(`(?i)(^data:|1x1|placeholder|spinner|blank\.gif|loading\.gif)`)

// ResolveImageURL resolves an image reference like ResolveURL and drops
// tracking pixels and lazy-loading placeholders.
func ResolveImageURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || placeholderImage.MatchString(ref) {
		return ""
	}
	return ResolveURL(base, ref)
}
