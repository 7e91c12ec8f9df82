package filter

import (
	"testing"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

func datePtr(y int, m time.Month, d int) *event.Date {
	date := event.NewDate(y, m, d)
	return &date
}

func sampleEvents() []*event.Event {
	return []*event.Event{
		{ID: "1", Title: "Jazz Night", Date: event.NewDate(2025, time.December, 5), City: "Calgary", Source: "palace", Category: "Music", Venue: event.Venue{Name: "Palace Theatre"}},
		{ID: "2", Title: "Folk Festival", Date: event.NewDate(2025, time.December, 6), City: "Calgary", Source: "folk", Category: "Festival", Venue: event.Venue{Name: "Prince's Island Park"}},
		{ID: "3", Title: "Comedy Hour", Date: event.NewDate(2025, time.December, 7), City: "Montreal", Source: "jfl", Venue: event.Venue{Name: "Club Soda"}},
		{ID: "4", Title: "Jazz Brunch", Date: event.NewDate(2026, time.March, 10), City: "Montreal", Source: "jfl", Venue: event.Venue{Name: "Upstairs Jazz Bar"}},
	}
}

func ids(events []*event.Event) string {
	s := ""
	for _, e := range events {
		s += e.ID
	}
	return s
}

func TestCriteriaApply(t *testing.T) {
	tests := []struct {
		name     string
		criteria *Criteria
		want     string
	}{
		{name: "empty matches all", criteria: NewCriteria(), want: "1234"},
		{name: "date range", criteria: &Criteria{From: datePtr(2025, time.December, 6), To: datePtr(2025, time.December, 31)}, want: "23"},
		{name: "inclusive bounds", criteria: &Criteria{From: datePtr(2025, time.December, 5), To: datePtr(2025, time.December, 5)}, want: "1"},
		{name: "weekends only", criteria: &Criteria{WeekendsOnly: true}, want: "23"},
		{name: "keyword", criteria: &Criteria{Keywords: []string{"jazz"}}, want: "14"},
		{name: "venue substring", criteria: &Criteria{Venues: []string{"PALACE", "soda"}}, want: "13"},
		{name: "city exact", criteria: &Criteria{Cities: []string{"montreal"}}, want: "34"},
		{name: "category", criteria: &Criteria{Categories: []string{"festival"}}, want: "2"},
		{name: "source", criteria: &Criteria{Sources: []string{"jfl"}}, want: "34"},
		{name: "combined", criteria: &Criteria{Keywords: []string{"jazz"}, Cities: []string{"Montreal"}}, want: "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(tt.criteria.Apply(sampleEvents())); got != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCriteriaString(t *testing.T) {
	c := &Criteria{
		From:         datePtr(2026, time.March, 1),
		To:           datePtr(2026, time.March, 15),
		Venues:       []string{"Palace"},
		WeekendsOnly: true,
	}
	want := "From: Mar 1, 2026 | To: Mar 15, 2026 | Venues: Palace | Weekends only"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := NewCriteria().String(); got != "No active filters" {
		t.Errorf("String() = %q for empty criteria", got)
	}
}

func TestCriteriaClone(t *testing.T) {
	original := &Criteria{From: datePtr(2026, time.March, 1), Venues: []string{"Palace"}}
	clone := original.Clone()

	clone.Venues[0] = "Other"
	clone.From.Day = 20

	if original.Venues[0] != "Palace" {
		t.Error("modifying clone venues affected original")
	}
	if original.From.Day != 1 {
		t.Error("modifying clone date affected original")
	}
}
