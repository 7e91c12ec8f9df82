package venue

import (
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"
	"github.com/pfrederiksen/city-events/internal/event"
)

// DefaultThreshold is the Jaro-Winkler similarity above which two venue names
// are treated as the same venue
const DefaultThreshold = 0.92

// Registry holds the canonical venues of each city
type Registry struct {
	mu        sync.RWMutex
	threshold float64
	venues    map[string][]event.Venue // keyed by lower-cased city
}

// NewRegistry creates an empty registry. A threshold <= 0 uses DefaultThreshold.
func NewRegistry(threshold float64) *Registry {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Registry{
		threshold: threshold,
		venues:    make(map[string][]event.Venue),
	}
}

// Add registers a canonical venue for a city. The venue is cleaned first.
func (r *Registry) Add(city string, v event.Venue) {
	v = CleanAndExtract(v)
	if v.City == "" {
		v.City = city
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(city)
	r.venues[key] = append(r.venues[key], v)
}

// Len returns the number of registered venues across all cities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, vs := range r.venues {
		n += len(vs)
	}
	return n
}

// Resolve returns the canonical venue closest to v's name in city, merged with
// whatever v already knows, and true when one is similar enough.
func (r *Registry) Resolve(city string, v event.Venue) (event.Venue, bool) {
	name := comparableName(v.Name)
	if name == "" {
		return v, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	best, bestScore := -1, 0.0
	candidates := r.venues[strings.ToLower(city)]
	for i, known := range candidates {
		score := matchr.JaroWinkler(name, comparableName(known.Name), false)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < r.threshold {
		return v, false
	}

	canonical := copyVenue(candidates[best])
	if canonical.Address == "" {
		canonical.Address = v.Address
	}
	if canonical.Location == "" {
		canonical.Location = v.Location
	}
	if canonical.Coordinates == nil && v.Coordinates != nil {
		c := *v.Coordinates
		canonical.Coordinates = &c
	}
	return canonical, true
}

// comparableName lower-cases a venue name, drops a leading "the" and strips punctuation
func comparableName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > 1 && (words[0] == "the" || words[0] == "le" || words[0] == "la") {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
