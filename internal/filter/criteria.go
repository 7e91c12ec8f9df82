package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

// Criteria represents listing criteria for stored events
type Criteria struct {
	// Date range filtering, inclusive
	From *event.Date `json:"from,omitempty"`
	To   *event.Date `json:"to,omitempty"`

	// Title keywords (case-insensitive substring match)
	Keywords []string `json:"keywords,omitempty"`

	// Venue names (case-insensitive substring match)
	Venues []string `json:"venues,omitempty"`

	// Cities, categories and sources (case-insensitive exact match)
	Cities     []string `json:"cities,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Sources    []string `json:"sources,omitempty"`

	// Weekend-only filtering (Saturday/Sunday)
	WeekendsOnly bool `json:"weekends_only,omitempty"`
}

// NewCriteria creates empty criteria that match all events
func NewCriteria() *Criteria {
	return &Criteria{}
}

// IsEmpty checks if the criteria have any active filter
func (c *Criteria) IsEmpty() bool {
	return c.From == nil &&
		c.To == nil &&
		len(c.Keywords) == 0 &&
		len(c.Venues) == 0 &&
		len(c.Cities) == 0 &&
		len(c.Categories) == 0 &&
		len(c.Sources) == 0 &&
		!c.WeekendsOnly
}

// Matches checks if an event matches all active criteria.
// An empty Criteria matches all events.
func (c *Criteria) Matches(evt *event.Event) bool {
	if c.IsEmpty() {
		return true
	}

	if c.From != nil && evt.Date.Before(*c.From) {
		return false
	}
	if c.To != nil && c.To.Before(evt.Date) {
		return false
	}

	if c.WeekendsOnly {
		weekday := evt.Weekday()
		if weekday != time.Saturday && weekday != time.Sunday {
			return false
		}
	}

	if !containsAny(evt.Title, c.Keywords) {
		return false
	}
	if !containsAny(evt.Venue.Name, c.Venues) {
		return false
	}
	if !equalsAny(evt.City, c.Cities) {
		return false
	}
	if !equalsAny(evt.Category, c.Categories) {
		return false
	}
	if !equalsAny(evt.Source, c.Sources) {
		return false
	}

	return true
}

func containsAny(value string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	lower := strings.ToLower(value)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func equalsAny(value string, options []string) bool {
	if len(options) == 0 {
		return true
	}
	for _, o := range options {
		if strings.EqualFold(value, o) {
			return true
		}
	}
	return false
}

// Apply returns the events matching the criteria, keeping their order.
// If the criteria are empty, returns the original list unchanged.
func (c *Criteria) Apply(events []*event.Event) []*event.Event {
	if c.IsEmpty() {
		return events
	}

	var filtered []*event.Event
	for _, evt := range events {
		if c.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}

// String returns a human-readable description of the active criteria.
// Format: "From: Mar 1, 2026 | To: Mar 15, 2026 | Venues: Palace | Weekends only"
func (c *Criteria) String() string {
	if c.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if c.From != nil {
		parts = append(parts, fmt.Sprintf("From: %s", c.From.Time(time.UTC).Format("Jan 2, 2006")))
	}
	if c.To != nil {
		parts = append(parts, fmt.Sprintf("To: %s", c.To.Time(time.UTC).Format("Jan 2, 2006")))
	}
	if len(c.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("Keywords: %s", strings.Join(c.Keywords, ", ")))
	}
	if len(c.Venues) > 0 {
		parts = append(parts, fmt.Sprintf("Venues: %s", strings.Join(c.Venues, ", ")))
	}
	if len(c.Cities) > 0 {
		parts = append(parts, fmt.Sprintf("Cities: %s", strings.Join(c.Cities, ", ")))
	}
	if len(c.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("Categories: %s", strings.Join(c.Categories, ", ")))
	}
	if len(c.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("Sources: %s", strings.Join(c.Sources, ", ")))
	}
	if c.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}

	return strings.Join(parts, " | ")
}

// Clone creates a deep copy of the criteria
func (c *Criteria) Clone() *Criteria {
	clone := &Criteria{
		WeekendsOnly: c.WeekendsOnly,
		Keywords:     cloneStrings(c.Keywords),
		Venues:       cloneStrings(c.Venues),
		Cities:       cloneStrings(c.Cities),
		Categories:   cloneStrings(c.Categories),
		Sources:      cloneStrings(c.Sources),
	}
	if c.From != nil {
		from := *c.From
		clone.From = &from
	}
	if c.To != nil {
		to := *c.To
		clone.To = &to
	}
	return clone
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
