package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// maxOccurrences caps how many dates one recurring entry may expand into
const maxOccurrences = 366

// StaticSource serves listings kept in the config file. Entries with an RRULE
// expand to every occurrence between today and the horizon.
type StaticSource struct {
	name    string
	city    string
	entries []config.StaticEventConfig
	horizon time.Duration
	loc     *time.Location
	now     func() time.Time
}

// NewStaticSource creates a static source
func NewStaticSource(name, city string, entries []config.StaticEventConfig, horizonDays int, loc *time.Location, now func() time.Time) *StaticSource {
	if horizonDays <= 0 {
		horizonDays = 90
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &StaticSource{
		name:    name,
		city:    city,
		entries: entries,
		horizon: time.Duration(horizonDays) * 24 * time.Hour,
		loc:     loc,
		now:     now,
	}
}

func (s *StaticSource) Name() string { return s.name }
func (s *StaticSource) City() string { return s.city }

// FetchCandidates returns the configured entries as candidates
func (s *StaticSource) FetchCandidates(_ context.Context) ([]event.Candidate, error) {
	var out []event.Candidate
	for _, e := range s.entries {
		base := event.Candidate{
			Title:     e.Title,
			DateText:  e.Date,
			URL:       e.URL,
			ImageURL:  e.Image,
			VenueHint: e.Venue,
		}
		if strings.TrimSpace(e.RRule) == "" {
			out = append(out, base)
			continue
		}

		dates, err := s.expand(e)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Title, err)
		}
		for _, d := range dates {
			c := base
			c.DateText = d
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *StaticSource) expand(e config.StaticEventConfig) ([]string, error) {
	first, err := event.ParseStoredDate(e.Date)
	if err != nil {
		return nil, fmt.Errorf("recurring entry needs an ISO start date: %w", err)
	}
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(e.RRule), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("parsing RRULE: %w", err)
	}
	opt.Dtstart = first.Time(s.loc)
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("building RRULE: %w", err)
	}

	now := s.now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	occurrences := r.Between(from, from.Add(s.horizon), true)
	if len(occurrences) > maxOccurrences {
		occurrences = occurrences[:maxOccurrences]
	}

	dates := make([]string, 0, len(occurrences))
	for _, t := range occurrences {
		d := event.DateOf(t)
		if first.HasTime {
			d.Hour, d.Minute, d.HasTime = t.Hour(), t.Minute(), true
		}
		dates = append(dates, d.String())
	}
	return dates, nil
}
