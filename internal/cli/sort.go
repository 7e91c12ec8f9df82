package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/city-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByTitle SortOrder = "title"
	SortByVenue SortOrder = "venue"
)

// ParseSortOrder validates a --sort value
func ParseSortOrder(s string) (SortOrder, error) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case SortByDate, SortByTitle, SortByVenue:
		return order, nil
	case "":
		return SortByDate, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'date', 'title' or 'venue')", s)
	}
}

// sortEvents sorts a slice of events based on the specified sort order.
// Ties fall back to date order.
func sortEvents(events []*event.Event, order SortOrder) {
	switch order {
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			a, b := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
			if a != b {
				return a < b
			}
			return event.Less(events[i], events[j])
		})
	case SortByVenue:
		sort.SliceStable(events, func(i, j int) bool {
			a, b := strings.ToLower(events[i].Venue.Name), strings.ToLower(events[j].Venue.Name)
			if a != b {
				// Events without a venue go last
				if a == "" || b == "" {
					return b == ""
				}
				return a < b
			}
			return event.Less(events[i], events[j])
		})
	default:
		sort.SliceStable(events, func(i, j int) bool {
			return event.Less(events[i], events[j])
		})
	}
}
