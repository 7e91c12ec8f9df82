package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pfrederiksen/city-events/internal/event"
)

// Title length bounds, in runes
const (
	MinTitleLength = event.MinTitleLength
	MaxTitleLength = event.MaxTitleLength
)

// exactPhrases reject a title only when the whole title is the phrase
var exactPhrases = map[string]bool{
	"privacy policy":       true,
	"terms of service":     true,
	"terms and conditions": true,
	"cookie policy":        true,
	"all rights reserved":  true,
	"venue info":           true,
	"show gallery":         true,
	"social media":         true,
	"follow us":            true,
	"find out":             true,
	"coming soon":          true,
	"sold out":             true,
	"covid":                true,
	"navigation":           true,
	"footer":               true,
	"header":               true,
}

// ctaPhrases are call-to-action phrases that reject a title wherever they appear,
// matched on whole words only.
var ctaPhrases = []string{
	"buy tickets",
	"get tickets",
	"buy now",
	"book now",
	"more info",
	"more information",
	"read more",
	"learn more",
	"view all",
	"see all",
	"view calendar",
	"view details",
	"load more",
	"sign up",
	"log in",
	"click here",
	"add to calendar",
	"skip to content",
	"all shows",
	"past events",
	"upcoming events",
}

// navWords is navigation and UI vocabulary. A title made only of these words
// (plus connectors) is a menu item, not an event.
var navWords = map[string]bool{
	"menu": true, "contact": true, "about": true, "home": true, "calendar": true,
	"facebook": true, "instagram": true, "twitter": true, "youtube": true, "tiktok": true,
	"tickets": true, "ticket": true, "buy": true, "login": true, "logout": true,
	"search": true, "subscribe": true, "newsletter": true, "events": true, "event": true,
	"tours": true, "shows": true, "more": true, "info": true, "view": true, "all": true,
	"read": true, "upcoming": true, "past": true, "faq": true, "gallery": true,
	"rentals": true, "shop": true, "news": true, "blog": true, "donate": true,
	"us": true, "sign": true, "up": true, "in": true, "here": true, "click": true,
	"details": true, "book": true, "now": true, "share": true, "next": true,
	"previous": true, "back": true, "top": true, "filter": true, "follow": true,
	"page": true, "see": true, "load": true, "learn": true, "list": true, "grid": true,
}

// connectors may join navigation words without making the title an event
var connectors = map[string]bool{"and": true, "or": true}

// ValidTitle reports whether a cleaned title can name a real event.
// It returns the reason the title was rejected when it cannot.
func ValidTitle(title string) (bool, string) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	switch {
	case title == "":
		return false, "empty"
	case n < MinTitleLength:
		return false, "too short"
	case n > MaxTitleLength:
		return false, "too long"
	}

	words := titleWords(title)
	if len(words) == 0 {
		return false, "no words"
	}
	phrase := strings.Join(words, " ")

	if exactPhrases[phrase] {
		return false, "denylisted phrase: " + phrase
	}

	padded := " " + phrase + " "
	for _, cta := range ctaPhrases {
		if strings.Contains(padded, " "+cta+" ") {
			return false, "call to action: " + cta
		}
	}

	nav := 0
	for _, w := range words {
		switch {
		case navWords[w]:
			nav++
		case connectors[w]:
		default:
			return true, ""
		}
	}
	if nav == 0 {
		return false, "only connectors"
	}
	return false, "navigation text"
}

// titleWords lower-cases a title and splits it into words. Punctuation and
// symbols such as "+", "&", "/", "|" and "-" separate words and are dropped.
func titleWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
