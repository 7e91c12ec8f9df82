// Package event provides the canonical event record shared by every source,
// the date normalizer that resolves free-text dates, and snapshot diffing.
//
// A scraped listing enters as a Candidate holding raw strings. Once its title has
// been validated and its date text resolved by a DateNormalizer, NewEvent promotes it
// to an Event with a deterministic ID derived from title, venue and day, so that
// re-scraping the same listing always produces the same ID and storage writes become
// upserts.
//
// Dates are never defaulted: text that cannot be resolved yields (Date{}, false)
// and the candidate is dropped by the caller. Every function that depends on the
// current day takes it as a parameter.
package event
