package source

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/city-events/internal/event"
)

// ExtractJSONLD reads schema.org events from the page's ld+json scripts.
// Any @type ending in "Event" counts, inside arrays and @graph containers too.
func ExtractJSONLD(root *goquery.Selection, pageURL string) []event.Candidate {
	var out []event.Candidate
	root.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &doc); err != nil {
			return
		}
		walkJSONLD(doc, func(obj map[string]any) {
			c := event.Candidate{
				Title:     event.CleanTitle(stringField(obj["name"])),
				DateText:  stringField(obj["startDate"]),
				URL:       event.ResolveURL(pageURL, stringField(obj["url"])),
				ImageURL:  event.ResolveImageURL(pageURL, imageField(obj["image"])),
				VenueHint: locationName(obj["location"]),
			}
			if c.Title != "" {
				out = append(out, c)
			}
		})
	})
	return out
}

func walkJSONLD(v any, visit func(map[string]any)) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			walkJSONLD(item, visit)
		}
	case map[string]any:
		if graph, ok := x["@graph"]; ok {
			walkJSONLD(graph, visit)
		}
		if isEventType(x["@type"]) {
			visit(x)
		}
	}
}

func isEventType(t any) bool {
	switch x := t.(type) {
	case string:
		return strings.HasSuffix(x, "Event")
	case []any:
		for _, item := range x {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

func stringField(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// imageField accepts a URL string, a list of them, or an ImageObject
func imageField(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		for _, item := range x {
			if s := imageField(item); s != "" {
				return s
			}
		}
	case map[string]any:
		return stringField(x["url"])
	}
	return ""
}

func locationName(v any) string {
	switch x := v.(type) {
	case string:
		return collapse(x)
	case []any:
		if len(x) > 0 {
			return locationName(x[0])
		}
	case map[string]any:
		return collapse(stringField(x["name"]))
	}
	return ""
}
