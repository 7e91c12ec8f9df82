package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idNamespace scopes the v5 UUIDs generated for events.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pfrederiksen/city-events/event"))

// Coordinates is a structured latitude/longitude pair
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Venue is where an event takes place. Address and Location are free text
// meant for people and never carry raw coordinates once cleaned.
type Venue struct {
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Location    string       `json:"location,omitempty"`
	City        string       `json:"city,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Candidate is an unvalidated event as read off a page by a source
type Candidate struct {
	Title     string `json:"title,omitempty"`
	DateText  string `json:"date_text,omitempty"`
	URL       string `json:"url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	VenueHint string `json:"venue_hint,omitempty"`
}

// Event is the canonical, persisted event record
type Event struct {
	ID        string    `json:"id"`
	StableKey string    `json:"stable_key"` // Stable identifier based on source and normalized title
	Title     string    `json:"title"`
	Date      Date      `json:"date"`
	Venue     Venue     `json:"venue"`
	City      string    `json:"city"`
	Category  string    `json:"category,omitempty"`
	Source    string    `json:"source"`
	URL       string    `json:"url,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// GenerateID creates a deterministic ID for an event from its title, venue and date.
// Re-scraping the same listing always yields the same ID, which makes storage writes upserts.
func GenerateID(title, venueName string, date Date) string {
	key := normalizeKeyPart(title) + "|" + normalizeKeyPart(venueName) + "|" + date.ISO()
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// GenerateStableKey creates a stable identifier based on source and normalized title.
// This key stays the same even if the date or venue of a listing changes.
func GenerateStableKey(source, title string) string {
	h := sha1.New()
	h.Write([]byte(source + "|" + normalizeKeyPart(title)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Weekday returns the day of week the event falls on
func (e *Event) Weekday() time.Weekday {
	return e.Date.Time(time.UTC).Weekday()
}

// IsPast reports whether the event's day is strictly before the day of now
func (e *Event) IsPast(now time.Time) bool {
	return e.Date.Before(DateOf(now))
}

// Clone returns a deep copy of the event
func (e *Event) Clone() *Event {
	c := *e
	if e.Venue.Coordinates != nil {
		coords := *e.Venue.Coordinates
		c.Venue.Coordinates = &coords
	}
	return &c
}
