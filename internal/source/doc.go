// Package source turns configured venue pages into raw event candidates.
//
// Each configured source has a kind:
//
//	html     static page fetched over HTTP, read with CSS selectors
//	jsonld   schema.org Event objects embedded in the page
//	browser  page rendered by headless Chrome, then read with CSS selectors
//	crawl    paginated listing followed through its "next" link
//	static   hand-maintained entries from the config, optionally recurring
//
// Sources only extract. Titles, dates and duplicates are judged by the filter
// package, and every source runs through Run so a failure or panic stays
// contained to that source.
package source
