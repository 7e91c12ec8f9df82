package dedupe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pfrederiksen/city-events/internal/event"
)

// DefaultKeyFields identify an event by what it is, where and on which day
var DefaultKeyFields = []string{"title", "venue.name", "date"}

const keySeparator = "\x1f"

// Deduplicate keeps the first item for each key, preserving order
func Deduplicate[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Events deduplicates events on keyFields (DefaultKeyFields when empty)
func Events(events []*event.Event, keyFields []string) []*event.Event {
	if len(keyFields) == 0 {
		keyFields = DefaultKeyFields
	}
	return Deduplicate(events, func(e *event.Event) string {
		return EventKey(e, keyFields)
	})
}

// EventKey builds the composite key of an event
func EventKey(e *event.Event, keyFields []string) string {
	parts := make([]string, len(keyFields))
	for i, f := range keyFields {
		parts[i] = eventField(e, f)
	}
	return strings.Join(parts, keySeparator)
}

func eventField(e *event.Event, path string) string {
	switch strings.ToLower(strings.TrimSpace(path)) {
	case "id":
		return e.ID
	case "title":
		return normalize(e.Title)
	case "date":
		return e.Date.ISO()
	case "city":
		return normalize(e.City)
	case "category":
		return normalize(e.Category)
	case "source":
		return normalize(e.Source)
	case "url":
		return strings.TrimSpace(e.URL)
	case "venue", "venue.name":
		return normalize(e.Venue.Name)
	case "venue.address":
		return normalize(e.Venue.Address)
	case "venue.location":
		return normalize(e.Venue.Location)
	case "venue.city":
		return normalize(e.Venue.City)
	default:
		return ""
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Documents deduplicates decoded JSON values (as produced by encoding/json into
// []any) on keyFields. Non-object items are keyed by their position and are
// never dropped.
func Documents(items []any, keyFields []string) []any {
	if len(keyFields) == 0 {
		keyFields = DefaultKeyFields
	}
	i := -1
	return Deduplicate(items, func(item any) string {
		i++
		doc, ok := item.(map[string]any)
		if !ok {
			return "\x00" + strconv.Itoa(i)
		}
		parts := make([]string, len(keyFields))
		for j, f := range keyFields {
			parts[j] = documentField(doc, f)
		}
		return strings.Join(parts, keySeparator)
	})
}

var isoDay = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?$`)

// documentField walks a dot path through nested objects. A string reached
// before the last segment is used as is when the path asks for its name, so
// "venue.name" also matches documents whose venue is a bare string.
func documentField(doc map[string]any, path string) string {
	segments := strings.Split(strings.TrimSpace(path), ".")
	var cur any = doc
	for i, seg := range segments {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[seg]
		case string:
			if i == len(segments)-1 && seg == "name" {
				return scalar(v)
			}
			return ""
		default:
			return ""
		}
	}
	return scalar(cur)
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(x)
		if m := isoDay.FindStringSubmatch(s); m != nil {
			return m[1]
		}
		return normalize(s)
	case interface{ String() string }:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
