// Package geo resolves country identifiers to canonical codes.
//
// Canonical codes are ISO-3166 alpha-3 for countries and ISO-3166-2 codes
// ("DE-BY") for German federal states.
package geo

import (
	"slices"
	"strings"
	"unicode"

	"github.com/biter777/countries"
)

// Kind tells the resolver how to read an identifier.
type Kind string

const (
	Alpha2 Kind = "alpha2"
	Alpha3 Kind = "alpha3"
	// Name matches country names and aliases exactly, ignoring case,
	// punctuation and a trailing parenthetical.
	Name Kind = "name"
	// Label is Name plus a close-spelling fallback for hand-typed labels.
	Label Kind = "label"
)

// minLabelSimilarity is the edit-distance similarity a Label lookup needs to
// accept a misspelt country name.
const minLabelSimilarity = 0.85

// Unknown marks a geo value that could not be resolved.
const Unknown = "UNK"

// Resolver maps an identifier to its canonical code.
type Resolver interface {
	Resolve(identifier string, kind Kind) (string, bool)
}

// GermanStates maps German federal state names to their ISO-3166-2 codes.
var GermanStates = map[string]string{
	"Rheinland-Pfalz":        "DE-RP",
	"Hessen":                 "DE-HE",
	"Brandenburg":            "DE-BB",
	"Schleswig-Holstein":     "DE-SH",
	"Hamburg":                "DE-HH",
	"Berlin":                 "DE-BE",
	"Saarland":               "DE-SL",
	"Mecklenburg-Vorpommern": "DE-MV",
	"Baden-Württemberg":      "DE-BW",
	"Sachsen":                "DE-SN",
	"Niedersachsen":          "DE-NI",
	"Bayern":                 "DE-BY",
	"Sachsen-Anhalt":         "DE-ST",
	"Nordrhein-Westfalen":    "DE-NW",
	"Bremen":                 "DE-HB",
	"Thüringen":              "DE-TH",
}

// legacyAlpha2 rewrites the non-ISO codes used by Eurostat.
var legacyAlpha2 = map[string]string{
	"UK": "GB",
	"EL": "GR",
}

// aggregateAlpha2 are two-letter codes for aggregates or disputed territories
// that must never resolve to a country.
var aggregateAlpha2 = []string{"EA", "XK"}

// StaticResolver resolves against the ISO-3166 table and the German state table.
type StaticResolver struct {
	names []nameEntry
}

type nameEntry struct {
	key   string
	alpha string
}

// NewStaticResolver builds a resolver over every known country.
func NewStaticResolver() *StaticResolver {
	r := &StaticResolver{}
	for _, c := range countries.All() {
		alpha3 := c.Alpha3()
		if alpha3 == "" || !c.IsValid() {
			continue
		}
		r.names = append(r.names, nameEntry{key: normalize(c.String()), alpha: alpha3})
	}
	return r
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(identifier string, kind Kind) (string, bool) {
	id := strings.TrimSpace(identifier)
	switch kind {
	case Alpha2:
		return r.alpha2(id)
	case Alpha3:
		return r.alpha3(id)
	case Name:
		return r.name(id)
	case Label:
		if code, ok := r.name(id); ok {
			return code, true
		}
		return r.closest(id)
	default:
		return "", false
	}
}

func (r *StaticResolver) alpha2(id string) (string, bool) {
	code := strings.ToUpper(id)
	if legacy, ok := legacyAlpha2[code]; ok {
		code = legacy
	}
	if len(code) != 2 || slices.Contains(aggregateAlpha2, code) {
		return "", false
	}
	c := countries.ByName(code)
	if c == countries.Unknown || c.Alpha2() != code {
		return "", false
	}
	return c.Alpha3(), true
}

func (r *StaticResolver) alpha3(id string) (string, bool) {
	code := strings.ToUpper(id)
	if len(code) != 3 {
		return "", false
	}
	c := countries.ByName(code)
	if c == countries.Unknown || c.Alpha3() != code {
		return "", false
	}
	return code, true
}

func (r *StaticResolver) name(id string) (string, bool) {
	if len(id) <= 3 {
		return "", false
	}
	if state, ok := GermanStates[id]; ok {
		return state, true
	}
	if c := countries.ByName(id); c != countries.Unknown && len(c.Alpha3()) == 3 {
		return c.Alpha3(), true
	}
	return "", false
}

// closest returns the country whose name is the single best match for id by
// edit distance, if it is similar enough.
func (r *StaticResolver) closest(id string) (string, bool) {
	key := []rune(normalize(id))
	if len(key) < 5 {
		return "", false
	}
	best, bestScore, tied := "", 0.0, false
	for _, e := range r.names {
		score := similarity(key, []rune(e.key))
		switch {
		case score > bestScore:
			best, bestScore, tied = e.alpha, score, false
		case score == bestScore && e.alpha != best:
			tied = true
		}
	}
	if bestScore < minLabelSimilarity || tied {
		return "", false
	}
	return best, true
}

// IsCanonical reports whether code is an alpha-3 country code or a German state code.
func IsCanonical(code string) bool {
	if strings.HasPrefix(code, "DE-") {
		for _, v := range GermanStates {
			if v == code {
				return true
			}
		}
		return false
	}
	if len(code) != 3 || code != strings.ToUpper(code) {
		return false
	}
	c := countries.ByName(code)
	return c != countries.Unknown && c.Alpha3() == code
}

// similarity is 1 minus the Levenshtein distance over the longer length.
func similarity(a, b []rune) float64 {
	n := max(len(a), len(b))
	if n == 0 {
		return 1
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1 - float64(prev[len(b)])/float64(n)
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
