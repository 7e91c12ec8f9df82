package storage

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// eventColumns is the column order used by every SQL statement
var eventColumns = []string{
	"id", "stable_key", "title", "day", "time_of_day",
	"venue_name", "venue_address", "venue_location", "venue_city", "lat", "lng",
	"city", "category", "source", "url", "image_url", "first_seen", "last_seen",
}

// placeholder renders the n-th (1-based) bind parameter of a dialect
type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }
func question(int) string { return "?" }

// upsertSQL inserts a row or overwrites every column except first_seen
func upsertSQL(ph placeholder) string {
	binds := make([]string, len(eventColumns))
	var updates []string
	for i, col := range eventColumns {
		binds[i] = ph(i + 1)
		if col != "id" && col != "first_seen" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	return fmt.Sprintf("INSERT INTO events (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(eventColumns, ", "), strings.Join(binds, ", "), strings.Join(updates, ", "))
}

// recordArgs returns r's values in eventColumns order. Timestamps are
// converted by ts so each dialect can choose its representation.
func recordArgs(r record, ts func(time.Time) any) []any {
	return []any{
		r.ID, r.StableKey, r.Title, r.Day, r.TimeOfDay,
		r.VenueName, r.VenueAddress, r.VenueLocation, r.VenueCity, r.Lat, r.Lng,
		r.City, r.Category, r.Source, r.URL, r.ImageURL, ts(r.FirstSeen), ts(r.LastSeen),
	}
}

// whereSQL renders the filters of q and their arguments
func whereSQL(q Query, ph placeholder) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}

	if q.City != "" {
		add("lower(city) = lower(%s)", q.City)
	}
	if q.Source != "" {
		add("lower(source) = lower(%s)", q.Source)
	}
	if q.Venue != "" {
		add("lower(venue_name) LIKE '%%' || lower(%s) || '%%'", q.Venue)
	}
	if q.From != "" {
		add("day >= %s", q.From)
	}
	if q.To != "" {
		add("day <= %s", q.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// findSQL returns the count and page queries for q
func findSQL(q Query, ph placeholder) (countQuery, pageQuery string, args []any) {
	where, args := whereSQL(q, ph)
	countQuery = "SELECT COUNT(*) FROM events" + where
	pageQuery = fmt.Sprintf("SELECT %s FROM events%s ORDER BY day, time_of_day, title, id",
		strings.Join(eventColumns, ", "), where)
	if q.Limit > 0 {
		pageQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		if q.Limit <= 0 {
			// SQLite requires a LIMIT before OFFSET
			pageQuery += fmt.Sprintf(" LIMIT %d", int64(math.MaxInt64))
		}
		pageQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}
	return countQuery, pageQuery, args
}

func columnList() string {
	return strings.Join(eventColumns, ", ")
}
