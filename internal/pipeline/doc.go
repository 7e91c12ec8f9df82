// Package pipeline runs the sources of a city one after the other and turns
// what they return into stored events.
//
// For every source the pipeline:
//
//  1. runs it under its timeout, turning errors and panics into a failed result
//  2. filters its candidates into events (titles, dates, duplicates)
//  3. cleans venues and maps them onto the city's known venues
//
// The events of all sources are then deduplicated, compared with what the
// store already holds, upserted, and the new ones handed to the notifier.
// A failing source only costs its own events; only a storage error stops a run.
package pipeline
