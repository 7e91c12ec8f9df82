// Package dedupe removes duplicate events from aggregated batches.
//
// Keys are built from a list of dot-path fields such as "title", "venue.name"
// and "date". String values are compared lower-cased and trimmed; dates are
// compared by day, so a listing with a start time and one without collapse
// when they fall on the same day. The first event seen for a key is kept and
// input order is preserved. Every function runs in a single pass.
//
// Middleware applies the same pass to JSON API responses and rewrites the
// count and pagination metadata to match the deduplicated length.
package dedupe
