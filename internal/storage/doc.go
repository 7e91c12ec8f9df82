// Package storage persists events behind a single upsert-by-id interface.
//
// Backends:
//
//	file      one JSON snapshot per city under the data directory
//	sqlite    modernc.org/sqlite, schema created on open
//	postgres  pgx connection pool, schema created on open
//	mongo     one document per event, _id is the event id
//	dynamodb  one item per event, city_key/date index for listings
//
// Event ids are deterministic, so re-running a scrape updates the same
// records instead of adding copies. FirstSeen is written once and kept on
// every later update.
package storage
