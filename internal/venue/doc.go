// Package venue cleans venue records before they are stored.
//
// Scraped address and location text often carries raw coordinates copied from
// map widgets ("Coordinates: 51.0447, -114.0719", "(49.28, -123.12)",
// "Lat: 45.50 Lng: -73.56"). Clean removes every such substring from the
// human-readable fields; CleanAndExtract also moves the first pair found into
// the structured Coordinates field.
//
// Registry maps the many spellings of a venue name seen across sources onto
// one canonical venue per city.
package venue
