package event

import (
	"sort"
	"strings"
	"time"
)

// Snapshot represents the stored events of one or more cities at a point in time
type Snapshot struct {
	Events      map[string]*Event `json:"events"`       // keyed by Event.ID
	StableIndex map[string]string `json:"stable_index"` // StableKey → ID mapping
	ChangeLog   []*EventChange    `json:"change_log"`   // Recent changes
	UpdatedAt   string            `json:"updated_at"`   // RFC3339 timestamp
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Events:      make(map[string]*Event),
		StableIndex: make(map[string]string),
		ChangeLog:   make([]*EventChange, 0),
	}
}

// DiffResult contains the results of comparing a batch against a snapshot
type DiffResult struct {
	NewEvents []*Event
	Cities    map[string][]*Event // new events grouped by city
}

// Diff compares current events against a previous snapshot and returns new events.
// An empty cityFilter (or "all") keeps every city.
func Diff(previous *Snapshot, current []*Event, cityFilter string) *DiffResult {
	result := &DiffResult{
		NewEvents: make([]*Event, 0),
		Cities:    make(map[string][]*Event),
	}

	if previous == nil {
		previous = NewSnapshot()
	}

	for _, evt := range current {
		if cityFilter != "" && !strings.EqualFold(cityFilter, "all") {
			if !strings.EqualFold(evt.City, cityFilter) {
				continue
			}
		}

		if _, exists := previous.Events[evt.ID]; !exists {
			result.NewEvents = append(result.NewEvents, evt)
			result.Cities[evt.City] = append(result.Cities[evt.City], evt)
		}
	}

	sort.SliceStable(result.NewEvents, func(i, j int) bool {
		a, b := result.NewEvents[i], result.NewEvents[j]
		if a.City != b.City {
			return a.City < b.City
		}
		return Less(a, b)
	})

	for city := range result.Cities {
		group := result.Cities[city]
		sort.SliceStable(group, func(i, j int) bool {
			return Less(group[i], group[j])
		})
	}

	return result
}

// Less orders events by date, then title
func Less(a, b *Event) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	return a.Title < b.Title
}

// CreateSnapshot creates a snapshot from a list of events
func CreateSnapshot(events []*Event, updatedAt string) *Snapshot {
	snap := NewSnapshot()
	snap.UpdatedAt = updatedAt

	for _, evt := range events {
		snap.Events[evt.ID] = evt
		if evt.StableKey != "" {
			snap.StableIndex[evt.StableKey] = evt.ID
		}
	}

	return snap
}

// Change types reported by DetectChanges
const (
	ChangeNew   = "new"
	ChangeDate  = "date"
	ChangeTitle = "title"
	ChangeVenue = "venue"
)

// EventChange represents a change detected in an event
type EventChange struct {
	EventID    string    `json:"event_id"`
	StableKey  string    `json:"stable_key"`
	ChangeType string    `json:"change_type"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DetectChanges compares two versions of an event and returns the detected changes
func DetectChanges(previous, current *Event, now time.Time) []*EventChange {
	detectedAt := now.UTC()

	if previous == nil {
		return []*EventChange{{
			EventID:    current.ID,
			StableKey:  current.StableKey,
			ChangeType: ChangeNew,
			NewValue:   current.Title,
			DetectedAt: detectedAt,
		}}
	}

	var changes []*EventChange
	add := func(kind, oldValue, newValue string) {
		changes = append(changes, &EventChange{
			EventID:    current.ID,
			StableKey:  current.StableKey,
			ChangeType: kind,
			OldValue:   oldValue,
			NewValue:   newValue,
			DetectedAt: detectedAt,
		})
	}

	if previous.Date.ISO() != current.Date.ISO() {
		add(ChangeDate, previous.Date.ISO(), current.Date.ISO())
	}
	if previous.Title != current.Title {
		add(ChangeTitle, previous.Title, current.Title)
	}
	if !strings.EqualFold(previous.Venue.Name, current.Venue.Name) {
		add(ChangeVenue, previous.Venue.Name, current.Venue.Name)
	}

	return changes
}

// CompareSnapshots compares two sets of events through their stable keys and
// returns all detected changes, ordered by stable key.
func CompareSnapshots(previousEvents, currentEvents map[string]*Event, previousIndex, currentIndex map[string]string, now time.Time) []*EventChange {
	keys := make([]string, 0, len(currentIndex))
	for stableKey := range currentIndex {
		keys = append(keys, stableKey)
	}
	sort.Strings(keys)

	var allChanges []*EventChange
	for _, stableKey := range keys {
		currentEvent := currentEvents[currentIndex[stableKey]]
		if currentEvent == nil {
			continue
		}

		var previousEvent *Event
		if previousID, exists := previousIndex[stableKey]; exists {
			previousEvent = previousEvents[previousID]
		}
		allChanges = append(allChanges, DetectChanges(previousEvent, currentEvent, now)...)
	}

	return allChanges
}
