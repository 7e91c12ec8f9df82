package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/city-events/internal/event"
)

var (
	firstRun  = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	secondRun = time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)
)

func testEvent(city, source, title, venue string, date event.Date, seen time.Time) *event.Event {
	return event.NewEvent(
		event.Candidate{Title: title, URL: "https://example.com/" + source},
		date,
		event.Origin{Source: source, City: city, Venue: event.Venue{Name: venue}},
		seen,
	)
}

func fixtureEvents(seen time.Time) []*event.Event {
	timed := event.NewDate(2025, 3, 14)
	timed.Hour, timed.Minute, timed.HasTime = 20, 0, true

	withCoords := testEvent("Calgary", "palace", "Spring Gala", "The Palace Theatre", event.NewDate(2025, 3, 21), seen)
	withCoords.Venue.Coordinates = &event.Coordinates{Lat: 51.0447, Lng: -114.0719}
	withCoords.Venue.Address = "219 8 Ave SW"

	return []*event.Event{
		testEvent("Calgary", "palace", "Jazz Night", "The Palace Theatre", timed, seen),
		withCoords,
		testEvent("Calgary", "folk", "Folk Jam", "Festival Hall", event.NewDate(2025, 3, 14), seen),
		testEvent("Ottawa", "nac", "Symphony No. 9", "National Arts Centre", event.NewDate(2025, 2, 1), seen),
	}
}

// exerciseStore runs the behaviour every backend must share
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	res, err := s.Upsert(ctx, fixtureEvents(firstRun))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if res != (UpsertResult{Inserted: 4}) {
		t.Errorf("first Upsert() = %+v, want 4 inserted", res)
	}

	// Same events again: ids are deterministic, so everything updates in place
	res, err = s.Upsert(ctx, fixtureEvents(secondRun))
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if res != (UpsertResult{Updated: 4}) {
		t.Errorf("second Upsert() = %+v, want 4 updated", res)
	}

	all, total, err := s.Find(ctx, Query{})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("Find() = %d events, total %d, want 4", len(all), total)
	}
	for _, e := range all {
		if !e.FirstSeen.Equal(firstRun) {
			t.Errorf("%s FirstSeen = %v, want kept %v", e.Title, e.FirstSeen, firstRun)
		}
		if !e.LastSeen.Equal(secondRun) {
			t.Errorf("%s LastSeen = %v, want %v", e.Title, e.LastSeen, secondRun)
		}
	}

	var titles []string
	for _, e := range all {
		titles = append(titles, e.Title)
	}
	wantOrder := []string{"Symphony No. 9", "Folk Jam", "Jazz Night", "Spring Gala"}
	if diff := cmp.Diff(wantOrder, titles); diff != "" {
		t.Errorf("Find() order mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name      string
		q         Query
		wantTotal int
		wantPage  []string
	}{
		{"city case-insensitive", Query{City: "calgary"}, 3, []string{"Folk Jam", "Jazz Night", "Spring Gala"}},
		{"venue substring", Query{Venue: "palace"}, 2, []string{"Jazz Night", "Spring Gala"}},
		{"source", Query{Source: "NAC"}, 1, []string{"Symphony No. 9"}},
		{"date range", Query{From: "2025-03-01", To: "2025-03-14"}, 2, []string{"Folk Jam", "Jazz Night"}},
		{"paging", Query{City: "Calgary", Limit: 2, Offset: 1}, 3, []string{"Jazz Night", "Spring Gala"}},
		{"offset only", Query{Offset: 3}, 4, []string{"Spring Gala"}},
		{"no match", Query{City: "Atlantis"}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total, err := s.Find(ctx, tt.q)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			var got []string
			for _, e := range page {
				got = append(got, e.Title)
			}
			if diff := cmp.Diff(tt.wantPage, got); diff != "" {
				t.Errorf("page mismatch (-want +got):\n%s", diff)
			}
		})
	}

	want := fixtureEvents(secondRun)[1]
	got, err := s.Get(ctx, want.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want.FirstSeen = firstRun
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	jazz, err := s.Get(ctx, fixtureEvents(firstRun)[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !jazz.Date.HasTime || jazz.Date.Hour != 20 {
		t.Errorf("time of day lost: %+v", jazz.Date)
	}

	if _, err := s.Get(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	exerciseStore(t, s)
}

func TestFileStoreSnapshots(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(context.Background(), fixtureEvents(firstRun)); err != nil {
		t.Fatal(err)
	}

	snap, err := s.LoadSnapshot("Calgary")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Events) != 3 {
		t.Errorf("Calgary snapshot has %d events, want 3", len(snap.Events))
	}
	if len(snap.StableIndex) != 3 {
		t.Errorf("Calgary stable index has %d entries, want 3", len(snap.StableIndex))
	}

	empty, err := s.LoadSnapshot("Nowhere")
	if err != nil || len(empty.Events) != 0 {
		t.Errorf("missing snapshot = %+v, %v; want empty", empty, err)
	}

	if got := s.snapshotPath("New York"); got != dir+"/snapshot_new-york.json" {
		t.Errorf("snapshotPath() = %q", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), configFor("carrier-pigeon"), t.TempDir()); err == nil {
		t.Error("expected error for unknown driver")
	}
}
