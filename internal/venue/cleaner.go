package venue

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pfrederiksen/city-events/internal/event"
)

// Each coordinate value captures its number and an optional N/S/E/W
// hemisphere. Numbers end on a word boundary so one value is never split in two.
const (
	hemisphere = `(?:\s*°)?(?:\s*([NSEWnsew])\b)?`
	number     = `([-+]?\d{1,3}(?:\.\d+)?)\b` + hemisphere
	decimal    = `([-+]?\d{1,3}\.\d+)\b` + hemisphere
	// Bare pairs need two decimals on both sides to look like coordinates
	bare = `([-+]?\b\d{1,3}\.\d{2,})\b(?:\s*°(?:\s*([NSEWnsew])\b)?)?`

	between     = `(?:\s*[,;/]\s*|\s+)`
	latLabel    = `\b(?:latitude|lat)\b\s*[:=]?\s*`
	lngLabel    = `\b(?:longitude|long|lng|lon)\b\s*[:=]?\s*`
	strayNumber = `[-+]?\d{1,3}(?:\.\d+)?\b(?:\s*°)?(?:\s*[NSEW]\b)?`
	strayDec    = `[-+]?\d{1,3}\.\d+\b(?:\s*°)?(?:\s*[NSEW]\b)?`
)

// coordinatePatterns are applied in order; each captures latitude, its
// hemisphere, longitude and its hemisphere
var coordinatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:gps|coordinates|coords|coord|geo)\b\s*[:=]?\s*\(?\s*` + number + between + number + `\s*\)?`),
	regexp.MustCompile(`(?i)` + latLabel + number + `\s*[,;/]?\s*` + lngLabel + number),
	regexp.MustCompile(`\(\s*` + decimal + `\s*[,;]\s*` + decimal + `\s*\)`),
	regexp.MustCompile(bare + `(?:\s*,\s*|\s+)` + bare),
}

// strayLabels removes single labelled values left behind without a partner.
// Without a colon only a decimal value counts, so "Long 5k" stays.
var strayLabels = regexp.MustCompile(`(?i)\b(?:latitude|longitude|lat|long|lng|lon|coordinates|coords|coord|gps)\b(?:\s*[:=]\s*(?:` + strayNumber + `)?|\s+` + strayDec + `)`)

var (
	spaces       = regexp.MustCompile(`\s+`)
	emptyParens  = regexp.MustCompile(`\(\s*[,;]?\s*\)`)
	spaceBefore  = regexp.MustCompile(`\s+([,;])`)
	repeatCommas = regexp.MustCompile(`[,;](?:\s*[,;])+`)
)

const separators = " ,;:|-/"

// ContainsCoordinates reports whether s still holds a raw coordinate substring
func ContainsCoordinates(s string) bool {
	for _, re := range coordinatePatterns {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			if _, ok := pair(m); ok {
				return true
			}
		}
	}
	for _, m := range strayLabels.FindAllString(s, -1) {
		if strings.IndexFunc(m, isDigit) >= 0 {
			return true
		}
	}
	return false
}

// Clean returns a copy of v with coordinate text removed from Name, Address and Location
func Clean(v event.Venue) event.Venue {
	out := copyVenue(v)
	out.Name, _ = cleanText(v.Name)
	out.Address, _ = cleanText(v.Address)
	out.Location, _ = cleanText(v.Location)
	return out
}

// CleanAndExtract cleans like Clean and fills Coordinates from the first pair
// removed, looking at Location, then Address, then Name. Existing coordinates are kept.
func CleanAndExtract(v event.Venue) event.Venue {
	out := copyVenue(v)

	var found []event.Coordinates
	var coords []event.Coordinates
	out.Location, coords = cleanText(v.Location)
	found = append(found, coords...)
	out.Address, coords = cleanText(v.Address)
	found = append(found, coords...)
	out.Name, coords = cleanText(v.Name)
	found = append(found, coords...)

	if out.Coordinates == nil && len(found) > 0 {
		c := found[0]
		out.Coordinates = &c
	}
	return out
}

// cleanText removes coordinates from s until nothing more matches and tidies
// the punctuation left behind.
func cleanText(s string) (string, []event.Coordinates) {
	var found []event.Coordinates
	for {
		before := s
		for _, re := range coordinatePatterns {
			s = re.ReplaceAllStringFunc(s, func(match string) string {
				m := re.FindStringSubmatch(match)
				c, ok := pair(m)
				if !ok {
					return match
				}
				found = append(found, c)
				return " "
			})
		}
		s = strayLabels.ReplaceAllStringFunc(s, func(match string) string {
			if strings.IndexFunc(match, isDigit) < 0 {
				return match
			}
			return " "
		})
		s = tidy(s)
		if s == before {
			return s, found
		}
	}
}

func tidy(s string) string {
	s = emptyParens.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	s = spaceBefore.ReplaceAllString(s, "$1")
	s = repeatCommas.ReplaceAllStringFunc(s, func(m string) string { return m[:1] })
	return strings.Trim(s, separators)
}

// pair reads a coordinatePatterns submatch
func pair(m []string) (event.Coordinates, bool) {
	lat, ok := signed(m[1], m[2])
	if !ok {
		return event.Coordinates{}, false
	}
	lng, ok := signed(m[3], m[4])
	if !ok {
		return event.Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return event.Coordinates{}, false
	}
	return event.Coordinates{Lat: lat, Lng: lng}, true
}

// signed parses a value and applies its hemisphere: S and W are negative
func signed(text, hemi string) (float64, bool) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(hemi) {
	case "S", "W":
		v = -math.Abs(v)
	case "N", "E":
		v = math.Abs(v)
	}
	return v, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func copyVenue(v event.Venue) event.Venue {
	out := v
	if v.Coordinates != nil {
		c := *v.Coordinates
		out.Coordinates = &c
	}
	return out
}
