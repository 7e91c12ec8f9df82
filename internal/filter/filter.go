package filter

import (
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

// DropReason says why a candidate did not become an event
type DropReason string

const (
	DropInvalidTitle    DropReason = "invalid_title"
	DropUnparseableDate DropReason = "unparseable_date"
	DropDuplicateKey    DropReason = "duplicate_key"
)

// Drop records one rejected candidate
type Drop struct {
	Candidate event.Candidate
	Reason    DropReason
	Detail    string
}

// Stats summarizes one Apply call
type Stats struct {
	Candidates int
	Kept       int
	Dropped    map[DropReason]int
	Drops      []Drop
}

// DroppedTotal returns the number of rejected candidates
func (s Stats) DroppedTotal() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

func (s *Stats) drop(c event.Candidate, reason DropReason, detail string) {
	if s.Dropped == nil {
		s.Dropped = make(map[DropReason]int)
	}
	s.Dropped[reason]++
	s.Drops = append(s.Drops, Drop{Candidate: c, Reason: reason, Detail: detail})
}

// EventFilter validates the raw candidates of one source run and promotes the
// survivors to events. It reads no clock: Now is the reference day for date
// inference and the first-seen timestamp.
type EventFilter struct {
	Normalizer event.DateNormalizer
	Origin     event.Origin
	Now        time.Time

	// KeyByVenue and KeyByURL extend the duplicate key beyond title and day
	KeyByVenue bool
	KeyByURL   bool
}

// Apply filters candidates in page order. Each step only narrows the set:
// title validity, then date resolution, then duplicate keys.
func (f EventFilter) Apply(candidates []event.Candidate) ([]*event.Event, Stats) {
	stats := Stats{Candidates: len(candidates)}
	events := make([]*event.Event, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		title := event.CleanTitle(c.Title)
		if ok, why := ValidTitle(title); !ok {
			stats.drop(c, DropInvalidTitle, why)
			continue
		}

		date, ok := f.Normalizer.Normalize(c.DateText, f.Now)
		if !ok {
			stats.drop(c, DropUnparseableDate, c.DateText)
			continue
		}

		key := f.key(event.StoredTitle(title), date, c)
		if _, dup := seen[key]; dup {
			stats.drop(c, DropDuplicateKey, key)
			continue
		}
		seen[key] = struct{}{}

		c.Title = title
		events = append(events, event.NewEvent(c, date, f.Origin, f.Now))
	}

	stats.Kept = len(events)
	return events, stats
}

func (f EventFilter) key(title string, date event.Date, c event.Candidate) string {
	parts := []string{strings.ToLower(title), date.ISO()}
	if f.KeyByVenue {
		venue := f.Origin.Venue.Name
		if venue == "" {
			venue = c.VenueHint
		}
		parts = append(parts, strings.ToLower(strings.Join(strings.Fields(venue), " ")))
	}
	if f.KeyByURL {
		parts = append(parts, event.ResolveURL(f.Origin.BaseURL, c.URL))
	}
	return strings.Join(parts, "|")
}
