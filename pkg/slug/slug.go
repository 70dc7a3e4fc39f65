// Package slug normalizes human-entered names so that "Mama's Kitchen",
// "mama's kitchen" and "MAMA'S-KITCHEN" compare equal.
package slug

import (
	"regexp"
	"strings"
)

var (
	possessiveRegexp = regexp.MustCompile(`'s\b`)
	nonAlnumRegexp   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Compact lower-cases name, drops possessive "'s" and strips every
// non-alphanumeric character.
//
// Examples:
//   - "Mama's Kitchen" → "mamakitchen"
//   - "  Shop-Rite 24/7 " → "shoprite247"
func Compact(name string) string {
	s := strings.ToLower(name)
	s = possessiveRegexp.ReplaceAllString(s, "")
	return nonAlnumRegexp.ReplaceAllString(s, "")
}

// Match returns the index of the candidate that best matches query, or -1.
// An exact compacted match wins; otherwise the first candidate whose compacted
// form contains the query, or is contained by it, is returned. Candidates that
// compact to "" never match, and neither does an empty query.
func Match(query string, candidates []string) int {
	q := Compact(query)
	if q == "" {
		return -1
	}

	compacted := make([]string, len(candidates))
	for i, c := range candidates {
		compacted[i] = Compact(c)
		if compacted[i] == q {
			return i
		}
	}

	for i, c := range compacted {
		if c == "" {
			continue
		}
		if strings.Contains(c, q) || strings.Contains(q, c) {
			return i
		}
	}
	return -1
}
