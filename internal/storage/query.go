package storage

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/city-events/internal/event"
)

// Matches reports whether e satisfies the query filters. Paging is ignored.
func (q Query) Matches(e *event.Event) bool {
	if q.City != "" && !strings.EqualFold(e.City, q.City) {
		return false
	}
	if q.Source != "" && !strings.EqualFold(e.Source, q.Source) {
		return false
	}
	if q.Venue != "" && !strings.Contains(strings.ToLower(e.Venue.Name), strings.ToLower(q.Venue)) {
		return false
	}
	day := e.Date.ISO()
	if q.From != "" && day < q.From {
		return false
	}
	if q.To != "" && day > q.To {
		return false
	}
	return true
}

// apply filters, sorts and pages events in memory
func (q Query) apply(events []*event.Event) ([]*event.Event, int) {
	var matched []*event.Event
	for _, e := range events {
		if q.Matches(e) {
			matched = append(matched, e)
		}
	}
	sortEvents(matched)
	return q.page(matched), len(matched)
}

func (q Query) page(events []*event.Event) []*event.Event {
	if q.Offset > 0 {
		if q.Offset >= len(events) {
			return []*event.Event{}
		}
		events = events[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(events) {
		events = events[:q.Limit]
	}
	return events
}

func sortEvents(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if event.Less(events[i], events[j]) {
			return true
		}
		if event.Less(events[j], events[i]) {
			return false
		}
		return events[i].ID < events[j].ID
	})
}
