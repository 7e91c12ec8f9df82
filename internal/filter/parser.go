package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

const monthAlternation = `jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december`

var (
	sameMonthRange  = regexp.MustCompile(`(?i)^(` + monthAlternation + `)\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthRange = regexp.MustCompile(`(?i)^(` + monthAlternation + `)\s+(\d{1,2})\s*-\s*(` + monthAlternation + `)\s+(\d{1,2})$`)
	wholeMonth      = regexp.MustCompile(`(?i)^(` + monthAlternation + `)$`)
)

// ParseDateRange parses a date range string relative to now.
//
// Supported formats:
//   - "Mar 1-15" or "March 1-15" - Same month, different days
//   - "March 1 - April 15" - Different months
//   - "March" - Entire month
//
// The year is inferred from now: a month earlier than the current month is
// taken to be next year's. For cross-month ranges, if the end month is before
// the start month, the end is in the following year.
func ParseDateRange(input string, now time.Time) (*event.Date, *event.Date, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if m := sameMonthRange.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year := yearForMonth(month, now)

		from, err := rangeDay(year, month, m[2])
		if err != nil {
			return nil, nil, err
		}
		to, err := rangeDay(year, month, m[3])
		if err != nil {
			return nil, nil, err
		}
		if to.Before(from) {
			return nil, nil, fmt.Errorf("start date must be before end date")
		}
		return &from, &to, nil
	}

	if m := crossMonthRange.FindStringSubmatch(input); m != nil {
		month1 := parseMonth(m[1])
		month2 := parseMonth(m[3])
		year1 := yearForMonth(month1, now)
		year2 := year1
		if month2 < month1 {
			year2++
		}

		from, err := rangeDay(year1, month1, m[2])
		if err != nil {
			return nil, nil, err
		}
		to, err := rangeDay(year2, month2, m[4])
		if err != nil {
			return nil, nil, err
		}
		if to.Before(from) {
			return nil, nil, fmt.Errorf("start date must be before end date")
		}
		return &from, &to, nil
	}

	if m := wholeMonth.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year := yearForMonth(month, now)
		from := event.NewDate(year, month, 1)
		// Last day of month
		last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		to := event.DateOf(last)
		return &from, &to, nil
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use 'Mar 1-15', 'March 1 - April 15', or 'March'")
}

func rangeDay(year int, month time.Month, dayText string) (event.Date, error) {
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day() {
		return event.Date{}, fmt.Errorf("invalid day: %s", dayText)
	}
	return event.NewDate(year, month, day), nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) > 3 {
		name = name[:3]
	}

	months := map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}

	return months[name]
}

// yearForMonth returns now's year, or the next one when the month has passed
func yearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}
