// Package calendar exports events as iCalendar (RFC 5545) files.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/pfrederiksen/city-events/internal/event"
)

// ProductID identifies the generator in exported calendars
const ProductID = "-//City Events//city-events//EN"

// DefaultDuration is the length given to timed events, which listings never carry
const DefaultDuration = 2 * time.Hour

// Exporter renders events in the time zone of their city
type Exporter struct {
	// Location interprets event times; UTC when nil
	Location *time.Location
	// Name becomes X-WR-CALNAME when set
	Name string
}

// WriteICS writes events as one calendar in UTC
func WriteICS(w io.Writer, events []*event.Event, now time.Time) error {
	return Exporter{}.Write(w, events, now)
}

// GenerateICS generates an iCalendar (.ics) document for a single event
func GenerateICS(evt *event.Event, now time.Time, loc *time.Location) string {
	return Exporter{Location: loc}.Calendar([]*event.Event{evt}, now).Serialize()
}

// Write writes events as one calendar to w
func (x Exporter) Write(w io.Writer, events []*event.Event, now time.Time) error {
	_, err := io.WriteString(w, x.Calendar(events, now).Serialize())
	if err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	return nil
}

// Calendar builds the calendar with one VEVENT per event. Events without a
// time of day become all-day events; timed events last DefaultDuration.
func (x Exporter) Calendar(events []*event.Event, now time.Time) *ics.Calendar {
	loc := x.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	if x.Name != "" {
		cal.SetXWRCalName(x.Name)
	}

	stamp := now.UTC()
	for _, evt := range events {
		if evt.Date.IsZero() {
			continue
		}

		ve := cal.AddEvent(evt.ID + "@city-events")
		ve.SetDtStampTime(stamp)

		start := evt.Date.Time(loc)
		if evt.Date.HasTime {
			ve.SetStartAt(start)
			ve.SetEndAt(start.Add(DefaultDuration))
		} else {
			ve.SetAllDayStartAt(start)
			ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
		}

		ve.SetSummary(evt.Title)
		if location := Location(evt.Venue); location != "" {
			ve.SetLocation(location)
		}
		if evt.URL != "" {
			ve.SetURL(evt.URL)
		}
		if desc := description(evt); desc != "" {
			ve.SetDescription(desc)
		}
		if c := evt.Venue.Coordinates; c != nil {
			ve.SetProperty(ics.ComponentProperty("GEO"), fmt.Sprintf("%.6f;%.6f", c.Lat, c.Lng))
		}
		ve.SetStatus(ics.ObjectStatusConfirmed)
	}
	return cal
}

// Location joins the venue name and address
func Location(v event.Venue) string {
	var parts []string
	if v.Name != "" {
		parts = append(parts, v.Name)
	}
	if v.Address != "" && !strings.EqualFold(v.Address, v.Name) {
		parts = append(parts, v.Address)
	}
	return strings.Join(parts, ", ")
}

func description(evt *event.Event) string {
	var lines []string
	if evt.Category != "" {
		lines = append(lines, "Category: "+evt.Category)
	}
	if evt.Source != "" {
		lines = append(lines, "Source: "+evt.Source)
	}
	if evt.URL != "" {
		lines = append(lines, "Details: "+evt.URL)
	}
	return strings.Join(lines, "\n")
}
