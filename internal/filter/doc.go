// Package filter decides which scraped candidates become events, and which
// stored events a listing query returns.
//
// EventFilter is applied to every source's raw candidates before they leave the
// source. It drops navigation and call-to-action text posing as titles, drops
// candidates without a resolvable date, and removes duplicates within the run:
//
//	f := filter.EventFilter{
//		Origin: event.Origin{Source: "palace", City: "Calgary"},
//		Now:    time.Now(),
//	}
//	events, stats := f.Apply(candidates)
//
// Criteria narrows stored events for the list command and the API:
//
//	c := filter.NewCriteria()
//	c.WeekendsOnly = true
//	c.Venues = []string{"Palace"}
//	matching := c.Apply(events)
package filter
