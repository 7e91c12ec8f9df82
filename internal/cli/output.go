package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pfrederiksen/city-events/internal/event"
	"github.com/pfrederiksen/city-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
)

// ListResult contains the events of a list query
type ListResult struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Filters     string         `json:"filters"`
	Events      []*event.Event `json:"events"`
	Count       int            `json:"count"`
}

// ScrapeResult contains the reports of a scrape run
type ScrapeResult struct {
	CheckedAt time.Time          `json:"checked_at"`
	Reports   []*pipeline.Report `json:"reports"`
	NewEvents int                `json:"new_event_count"`
	Changes   int                `json:"change_count"`
	DryRun    bool               `json:"dry_run"`
}

// NewScrapeResult totals reports
func NewScrapeResult(reports []*pipeline.Report, at time.Time, dryRun bool) *ScrapeResult {
	result := &ScrapeResult{CheckedAt: at, Reports: reports, DryRun: dryRun}
	if result.Reports == nil {
		result.Reports = []*pipeline.Report{}
	}
	for _, r := range reports {
		result.NewEvents += len(r.NewEvents)
		result.Changes += len(r.Changes)
	}
	return result
}

// WriteEvents writes a list result in the specified format
func WriteEvents(w io.Writer, result *ListResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeEventsText(w, result, verbose)
	case FormatTable:
		return writeEventsTable(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteReports writes a scrape result in the specified format
func WriteReports(w io.Writer, result *ScrapeResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeReportsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeEventsText(w io.Writer, result *ListResult, verbose bool) error {
	if result.Count == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	byCity := groupByCity(result.Events)
	cities := make([]string, 0, len(byCity))
	for city := range byCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	for _, city := range cities {
		events := byCity[city]
		fmt.Fprintf(w, "\n%s (%d events):\n", city, len(events))
		for _, evt := range events {
			fmt.Fprintf(w, "  %s\n", describe(evt))
			if verbose {
				writeDetails(w, evt, "       ")
			}
		}
	}
	if len(cities) > 1 {
		fmt.Fprintf(w, "\nTotal: %d events across %d cities\n", result.Count, len(cities))
	} else {
		fmt.Fprintf(w, "\nTotal: %d events\n", result.Count)
	}
	return nil
}

func writeEventsTable(w io.Writer, result *ListResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Date", "Title", "Venue", "City", "Source"})
	for _, evt := range result.Events {
		t.AppendRow(table.Row{evt.Date.String(), evt.Title, evt.Venue.Name, evt.City, evt.Source})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", result.Count})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func writeReportsText(w io.Writer, result *ScrapeResult, verbose bool) error {
	if len(result.Reports) == 0 {
		fmt.Fprintln(w, "No cities with runnable sources.")
		return nil
	}

	for _, r := range result.Reports {
		fmt.Fprintf(w, "\n%s: %d events from %d sources (%d new, %d changed)\n",
			r.City, len(r.Events), len(r.Sources), len(r.NewEvents), len(r.Changes))

		if verbose {
			writeSourceTable(w, r.Sources)
		}
		for _, s := range r.Failed() {
			fmt.Fprintf(w, "  FAILED %s: %s\n", s.Name, s.Error)
		}
		for _, evt := range r.NewEvents {
			fmt.Fprintf(w, "  NEW: %s\n", describe(evt))
			if verbose {
				writeDetails(w, evt, "       ")
			}
		}
		titles := make(map[string]string, len(r.Events))
		for _, evt := range r.Events {
			titles[evt.ID] = evt.Title
		}
		for _, c := range r.Changes {
			name := titles[c.EventID]
			if name == "" {
				name = c.EventID
			}
			fmt.Fprintf(w, "  CHANGED (%s): %s\n", c.ChangeType, name)
			if c.OldValue != "" || c.NewValue != "" {
				fmt.Fprintf(w, "       %s -> %s\n", c.OldValue, c.NewValue)
			}
		}
	}

	label := "new"
	if result.DryRun {
		label = "new (dry run, nothing stored)"
	}
	fmt.Fprintf(w, "\nTotal: %d %s across %d cities\n", result.NewEvents, label, len(result.Reports))
	return nil
}

func writeSourceTable(w io.Writer, sources []pipeline.SourceReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Source", "Candidates", "Events", "Dropped", "Duration", "Status"})
	for _, s := range sources {
		status := "OK"
		if !s.OK() {
			status = "ERROR"
		}
		dropped := 0
		for _, n := range s.Dropped {
			dropped += n
		}
		t.AppendRow(table.Row{s.Name, s.Candidates, s.Events, dropped, s.Duration.Round(time.Millisecond), status})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// describe renders one event as "2026-03-14T19:30  Title @ Venue"
func describe(evt *event.Event) string {
	var b strings.Builder
	b.WriteString(evt.Date.String())
	b.WriteString("  ")
	b.WriteString(evt.Title)
	if evt.Venue.Name != "" {
		b.WriteString(" @ ")
		b.WriteString(evt.Venue.Name)
	}
	return b.String()
}

func writeDetails(w io.Writer, evt *event.Event, indent string) {
	fmt.Fprintf(w, "%sID: %s\n", indent, evt.ID)
	fmt.Fprintf(w, "%sSource: %s\n", indent, evt.Source)
	if evt.Category != "" {
		fmt.Fprintf(w, "%sCategory: %s\n", indent, evt.Category)
	}
	if evt.Venue.Address != "" {
		fmt.Fprintf(w, "%sAddress: %s\n", indent, evt.Venue.Address)
	}
	if evt.URL != "" {
		fmt.Fprintf(w, "%sURL: %s\n", indent, evt.URL)
	}
}

func groupByCity(events []*event.Event) map[string][]*event.Event {
	out := make(map[string][]*event.Event)
	for _, evt := range events {
		out[evt.City] = append(out[evt.City], evt)
	}
	return out
}
