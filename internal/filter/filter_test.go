package filter

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pfrederiksen/city-events/internal/event"
)

var referenceNow = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func newTestFilter() EventFilter {
	return EventFilter{
		Origin: event.Origin{Source: "blue-room", City: "Calgary", BaseURL: "https://blueroom.example.com/"},
		Now:    referenceNow,
	}
}

func titles(events []*event.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title+" "+e.Date.ISO())
	}
	return out
}

func TestEventFilterApply(t *testing.T) {
	candidates := []event.Candidate{
		{Title: "Jazz Night", DateText: "Dec 1, 2025"},
		{Title: "BUY TICKETS", DateText: "Dec 1"},
		{Title: "Mystery Show", DateText: ""},
		{Title: "jazz night", DateText: "December 1, 2025"},
		{Title: "Jazz Night", DateText: "Dec 2, 2025"},
		{Title: "Menu", DateText: "Dec 3"},
		{Title: "Folk Night", DateText: "sometime soon"},
	}

	events, stats := newTestFilter().Apply(candidates)

	want := []string{"Jazz Night 2025-12-01", "Jazz Night 2025-12-02"}
	if diff := cmp.Diff(want, titles(events)); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}

	wantDropped := map[DropReason]int{
		DropInvalidTitle:    2,
		DropUnparseableDate: 2,
		DropDuplicateKey:    1,
	}
	if diff := cmp.Diff(wantDropped, stats.Dropped); diff != "" {
		t.Errorf("Stats.Dropped mismatch (-want +got):\n%s", diff)
	}
	if stats.Kept != 2 || stats.Candidates != len(candidates) || stats.DroppedTotal() != 5 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestEventFilterTitleBounds(t *testing.T) {
	longest := strings.Repeat("Jazz ", event.MaxTitleLength/5)[:event.MaxTitleLength-1] + "z"

	tests := []struct {
		name       string
		candidates []event.Candidate
		wantTitles []string
		wantDrops  map[DropReason]int
	}{
		{
			name:       "title at the limit is kept whole",
			candidates: []event.Candidate{{Title: longest, DateText: "Dec 1, 2025"}},
			wantTitles: []string{longest},
			wantDrops:  nil,
		},
		{
			name:       "title over the limit is rejected",
			candidates: []event.Candidate{{Title: longest + "z", DateText: "Dec 1, 2025"}},
			wantTitles: []string{},
			wantDrops:  map[DropReason]int{DropInvalidTitle: 1},
		},
		{
			name: "long titles differing in spacing and case are one event",
			candidates: []event.Candidate{
				{Title: longest, DateText: "Dec 1, 2025"},
				{Title: "  " + strings.ToUpper(longest) + "\n", DateText: "December 1, 2025"},
			},
			wantTitles: []string{longest},
			wantDrops:  map[DropReason]int{DropDuplicateKey: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, stats := newTestFilter().Apply(tt.candidates)

			got := make([]string, 0, len(events))
			for _, e := range events {
				got = append(got, e.Title)
				if want := event.GenerateID(event.StoredTitle(e.Title), e.Venue.Name, e.Date); e.ID != want {
					t.Errorf("ID = %s, want the id of the stored title %s", e.ID, want)
				}
			}
			if diff := cmp.Diff(tt.wantTitles, got); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDrops, stats.Dropped); diff != "" {
				t.Errorf("Stats.Dropped mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEventFilterRejectsMissingDate(t *testing.T) {
	events, stats := newTestFilter().Apply([]event.Candidate{{Title: "Mystery Show", DateText: ""}})

	if len(events) != 0 {
		t.Fatalf("expected candidate without a date to be dropped, got %v", titles(events))
	}
	if stats.Dropped[DropUnparseableDate] != 1 {
		t.Errorf("expected one unparseable_date drop, got %v", stats.Dropped)
	}
}

func TestEventFilterRejectsDenylistedTitles(t *testing.T) {
	candidates := []event.Candidate{
		{Title: "BUY TICKETS", DateText: "Dec 5"},
		{Title: "MORE INFO", DateText: "Dec 5"},
		{Title: "View Calendar", DateText: "Dec 5"},
		{Title: "Events + Tours", DateText: "Dec 5"},
		{Title: "New Orleans Connection", DateText: "Dec 5"},
	}

	events, _ := newTestFilter().Apply(candidates)

	if len(events) != 1 || events[0].Title != "New Orleans Connection" {
		t.Errorf("expected only \"New Orleans Connection\", got %v", titles(events))
	}
}

func TestEventFilterKeyOptions(t *testing.T) {
	candidates := []event.Candidate{
		{Title: "Jazz Night", DateText: "Dec 5", VenueHint: "Club A", URL: "/a"},
		{Title: "Jazz Night", DateText: "Dec 5", VenueHint: "Club B", URL: "/a"},
		{Title: "Jazz Night", DateText: "Dec 5", VenueHint: "club a", URL: "/b"},
	}

	tests := []struct {
		name       string
		keyByVenue bool
		keyByURL   bool
		want       int
	}{
		{name: "title and date", want: 1},
		{name: "with venue", keyByVenue: true, want: 2},
		{name: "with url", keyByURL: true, want: 2},
		{name: "with venue and url", keyByVenue: true, keyByURL: true, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilter()
			f.KeyByVenue = tt.keyByVenue
			f.KeyByURL = tt.keyByURL

			events, _ := f.Apply(candidates)
			if len(events) != tt.want {
				t.Errorf("Apply() kept %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestEventFilterKeepsPageOrder(t *testing.T) {
	candidates := []event.Candidate{
		{Title: "Third Show", DateText: "Mar 3"},
		{Title: "First Show", DateText: "Mar 1"},
		{Title: "Second Show", DateText: "Mar 2"},
	}

	events, _ := newTestFilter().Apply(candidates)

	want := []string{"Third Show 2025-03-03", "First Show 2025-03-01", "Second Show 2025-03-02"}
	if diff := cmp.Diff(want, titles(events)); diff != "" {
		t.Errorf("Apply() reordered candidates (-want +got):\n%s", diff)
	}
}

func TestEventFilterYearPolicy(t *testing.T) {
	f := newTestFilter()
	f.Normalizer = event.DateNormalizer{Policy: event.YearRequired}

	events, stats := f.Apply([]event.Candidate{
		{Title: "Yearless Show", DateText: "Dec 5"},
		{Title: "Dated Show", DateText: "Dec 5, 2025"},
	})

	if len(events) != 1 || events[0].Title != "Dated Show" {
		t.Errorf("expected only the dated show, got %v", titles(events))
	}
	if stats.Dropped[DropUnparseableDate] != 1 {
		t.Errorf("expected yearless candidate dropped as unparseable, got %v", stats.Dropped)
	}
}
