package event

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day with an optional time of day. The zero value means
// "no date" and is never attached to a stored event.
type Date struct {
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	HasTime bool
}

// NewDate returns a date without a time of day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar day of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// ISO returns the day as YYYY-MM-DD, ignoring any time of day
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// String returns YYYY-MM-DD, or YYYY-MM-DDTHH:MM when a time is known
func (d Date) String() string {
	if !d.HasTime {
		return d.ISO()
	}
	return fmt.Sprintf("%sT%02d:%02d", d.ISO(), d.Hour, d.Minute)
}

// Time converts the date to a time.Time in loc (midnight when no time is known)
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, d.Hour, d.Minute, 0, 0, loc)
}

// Before reports whether d falls on an earlier day than o. Time of day is ignored.
func (d Date) Before(o Date) bool {
	return d.dayKey() < o.dayKey()
}

// Compare orders dates by day, then by time. A date without a time sorts
// before any timed date on the same day.
func (d Date) Compare(o Date) int {
	if a, b := d.dayKey(), o.dayKey(); a != b {
		if a < b {
			return -1
		}
		return 1
	}
	a, b := d.minuteKey(), o.minuteKey()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (d Date) dayKey() int {
	return d.Year*10000 + int(d.Month)*100 + d.Day
}

func (d Date) minuteKey() int {
	if !d.HasTime {
		return -1
	}
	return d.Hour*60 + d.Minute
}

// MarshalJSON encodes the date as "YYYY-MM-DD" or "YYYY-MM-DDTHH:MM"
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON decodes the format written by MarshalJSON
func (d *Date) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseStoredDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseStoredDate parses the "YYYY-MM-DD[THH:MM]" form produced by Date.String
func ParseStoredDate(s string) (Date, error) {
	if t, err := time.Parse("2006-01-02T15:04", s); err == nil {
		d := DateOf(t)
		d.Hour, d.Minute, d.HasTime = t.Hour(), t.Minute(), true
		return d, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// YearPolicy decides what happens to date text that carries no year
type YearPolicy int

const (
	// YearInfer uses the reference year, or the next year when that day has already passed
	YearInfer YearPolicy = iota
	// YearRequired treats yearless text as unparseable
	YearRequired
	// YearMonthRollover uses the next year only when the month is earlier than the
	// reference month. Meant for venues whose listings never print a year.
	YearMonthRollover
)

// ParseYearPolicy parses a policy name as used in configuration files
func ParseYearPolicy(s string) (YearPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "infer":
		return YearInfer, nil
	case "require", "required":
		return YearRequired, nil
	case "month-rollover", "month_rollover":
		return YearMonthRollover, nil
	default:
		return YearInfer, fmt.Errorf("unknown year policy: %s", s)
	}
}

func (p YearPolicy) String() string {
	switch p {
	case YearRequired:
		return "require"
	case YearMonthRollover:
		return "month-rollover"
	default:
		return "infer"
	}
}

// DateNormalizer turns free-text date strings into calendar dates
type DateNormalizer struct {
	Policy YearPolicy
	// AllowPast keeps dates with an explicit year that are before the reference day
	AllowPast bool
}

// NormalizeDate normalizes text with the default policy
func NormalizeDate(text string, now time.Time) (Date, bool) {
	return DateNormalizer{}.Normalize(text, now)
}

// Normalize parses text relative to now. It returns false when no date can be
// resolved; callers must drop the candidate rather than substitute a default.
//
// Supported inputs: ISO 8601 dates and datetimes ("2025-12-26", "2025-12-26T20:00:00-05:00"),
// numeric "12/26/2025", "4.4.26", and free text such as "Friday, December 26th, 2025",
// "Dec 5", "5 décembre 2025 20h30" or "Sat 5 Dec 8pm".
func (n DateNormalizer) Normalize(text string, now time.Time) (Date, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Date{}, false
	}

	p, ok := parseISO(text)
	if !ok {
		p, ok = parseText(text)
	}
	if !ok {
		p, ok = parseNumeric(text)
	}
	if !ok {
		return Date{}, false
	}

	return n.resolve(p, DateOf(now))
}

type parsedDate struct {
	year, month, day int
	hour, minute     int
	hasYear, hasTime bool
}

func (n DateNormalizer) resolve(p parsedDate, ref Date) (Date, bool) {
	month := time.Month(p.month)
	year := p.year

	if !p.hasYear {
		switch n.Policy {
		case YearRequired:
			return Date{}, false
		case YearMonthRollover:
			year = ref.Year
			if month < ref.Month {
				year++
			}
		default:
			year = ref.Year
			if !validDay(year, month, p.day) || NewDate(year, month, p.day).Before(ref) {
				year++
			}
		}
	}

	if !validDay(year, month, p.day) {
		return Date{}, false
	}

	d := NewDate(year, month, p.day)
	if p.hasTime {
		d.Hour, d.Minute, d.HasTime = p.hour, p.minute, true
	}

	if p.hasYear && !n.AllowPast && d.Before(ref) {
		return Date{}, false
	}
	return d, true
}

func validDay(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	return day <= time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var isoPattern = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ](\d{1,2}):(\d{2}))?`)

func parseISO(text string) (parsedDate, bool) {
	m := isoPattern.FindStringSubmatch(text)
	if m == nil {
		return parsedDate{}, false
	}
	p := parsedDate{
		year:    atoi(m[1]),
		month:   atoi(m[2]),
		day:     atoi(m[3]),
		hasYear: true,
	}
	if m[4] != "" {
		p.hour, p.minute = atoi(m[4]), atoi(m[5])
		p.hasTime = p.hour < 24 && p.minute < 60
	}
	return p, true
}

var (
	slashPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	dotPattern   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})\b`)
)

// parseNumeric handles US month/day/year forms with a mandatory year
func parseNumeric(text string) (parsedDate, bool) {
	m := slashPattern.FindStringSubmatch(text)
	if m == nil {
		m = dotPattern.FindStringSubmatch(text)
	}
	if m == nil {
		return parsedDate{}, false
	}
	year := atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	p := parsedDate{year: year, month: atoi(m[1]), day: atoi(m[2]), hasYear: true}
	p.hour, p.minute, p.hasTime = findTime(text)
	return p, true
}

// monthNames maps English and French month spellings to months
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "janvier": time.January, "janv": time.January,
	"february": time.February, "feb": time.February, "février": time.February, "fevrier": time.February, "févr": time.February, "fevr": time.February,
	"march": time.March, "mar": time.March, "mars": time.March,
	"april": time.April, "apr": time.April, "avril": time.April, "avr": time.April,
	"may": time.May, "mai": time.May,
	"june": time.June, "jun": time.June, "juin": time.June,
	"july": time.July, "jul": time.July, "juillet": time.July, "juil": time.July,
	"august": time.August, "aug": time.August, "août": time.August, "aout": time.August,
	"september": time.September, "sept": time.September, "sep": time.September, "septembre": time.September,
	"october": time.October, "oct": time.October, "octobre": time.October,
	"november": time.November, "nov": time.November, "novembre": time.November,
	"december": time.December, "dec": time.December, "décembre": time.December, "decembre": time.December, "déc": time.December,
}

var (
	monthFirstPattern *regexp.Regexp
	dayFirstPattern   *regexp.Regexp
	yearPattern       = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	clock12Pattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:[:.](\d{2}))?\s*([ap])\.?m\b\.?`)
	clock24Pattern    = regexp.MustCompile(`\b([01]?\d|2[0-3])[:h](\d{2})\b`)
)

func init() {
	names := make([]string, 0, len(monthNames))
	for name := range monthNames {
		names = append(names, regexp.QuoteMeta(name))
	}
	// Longest first so "march" wins over "mars" and "mar"
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	alt := strings.Join(names, "|")

	monthFirstPattern = regexp.MustCompile(`(?i)\b(` + alt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(\d{4})\b)?`)
	dayFirstPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th|er|e)?\s+(?:of\s+|de\s+)?(` + alt + `)\b\.?(?:,?\s*(\d{4})\b)?`)
}

// weekdayPrefix matches one leading English or French weekday. "mar" is also
// a month, so a prefix only counts when a month and day still follow it.
var weekdayPrefix = regexp.MustCompile(`(?i)^\s*(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|` +
	`lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche|` +
	`mon|tues|tue|wed|thurs|thur|thu|fri|sat|sun|lun|mar|mer|jeu|ven|sam|dim)\b\.?,?\s+`)

// monthDay is one month-and-day match inside a text
type monthDay struct {
	month    time.Month
	day      int
	yearText string
	end      int
}

// parseText handles weekday/month-name/day/year free text in either order
func parseText(text string) (parsedDate, bool) {
	hour, minute, hasTime := findTime(text)
	stripped := clock24Pattern.ReplaceAllString(clock12Pattern.ReplaceAllString(text, " "), " ")
	for {
		loc := weekdayPrefix.FindStringIndex(stripped)
		if loc == nil {
			break
		}
		if _, ok := findMonthDay(stripped[loc[1]:]); !ok {
			break
		}
		stripped = stripped[loc[1]:]
	}

	first, ok := findMonthDay(stripped)
	if !ok {
		return parsedDate{}, false
	}

	p := parsedDate{month: int(first.month), day: first.day, hour: hour, minute: minute, hasTime: hasTime}
	yearText := first.yearText
	borrowed := false
	if yearText == "" {
		// Ranges like "Dec 5 - Dec 7, 2025" carry the year once, at the end
		if m := yearPattern.FindStringSubmatch(stripped); m != nil {
			yearText, borrowed = m[1], true
		}
	}
	if yearText != "" {
		p.year, p.hasYear = atoi(yearText), true
	}
	// "Dec 28 - Jan 3, 2026": the year printed at the end belongs to January
	if borrowed {
		if next, ok := findMonthDay(stripped[first.end:]); ok && next.month < first.month {
			p.year--
		}
	}
	return p, true
}

// findMonthDay returns the earliest month-first or day-first match in s
func findMonthDay(s string) (monthDay, bool) {
	mf := monthFirstPattern.FindStringSubmatchIndex(s)
	df := dayFirstPattern.FindStringSubmatchIndex(s)

	var idx []int
	var monthText, dayText string
	switch {
	case mf != nil && (df == nil || mf[0] <= df[0]):
		idx, monthText, dayText = mf, group(s, mf, 1), group(s, mf, 2)
	case df != nil:
		idx, dayText, monthText = df, group(s, df, 1), group(s, df, 2)
	default:
		return monthDay{}, false
	}

	month, ok := monthNames[strings.ToLower(monthText)]
	if !ok {
		return monthDay{}, false
	}
	return monthDay{month: month, day: atoi(dayText), yearText: group(s, idx, 3), end: idx[1]}, true
}

func findTime(text string) (hour, minute int, ok bool) {
	if m := clock12Pattern.FindStringSubmatch(text); m != nil {
		hour, minute = atoi(m[1]), atoi(m[2])
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, 0, false
		}
		pm := strings.EqualFold(m[3], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return hour, minute, true
	}
	if m := clock24Pattern.FindStringSubmatch(text); m != nil {
		hour, minute = atoi(m[1]), atoi(m[2])
		if minute > 59 {
			return 0, 0, false
		}
		return hour, minute, true
	}
	return 0, 0, false
}

func group(s string, idx []int, n int) string {
	if idx[2*n] < 0 {
		return ""
	}
	return s[idx[2*n]:idx[2*n+1]]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
