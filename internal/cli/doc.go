// Package cli implements the command-line interface for city-events.
//
// The cli package provides the Cobra-based CLI: scrape runs the sources of a
// city through the pipeline, list and export read stored events back (as
// text, tables, JSON or iCalendar), sources and status report on the
// configured sources and their run history, serve exposes the read-only API
// and schedule repeats scrape on a cron expression.
package cli
