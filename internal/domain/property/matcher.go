package property

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// statusSuffix matches a trailing parenthetical lifecycle marker appended to
// listing names during transitions, e.g. "123 Main St (OLD)".
var statusSuffix = regexp.MustCompile(`(?i)\(\s*(old|new)\s*\)\s*$`)

var foldCaser = cases.Fold()

// Normalize canonicalizes a free-text property name for matching: trims,
// strips trailing "(OLD)"/"(NEW)" status suffixes, removes all interior
// whitespace, and case-folds. "  123 Main St (OLD) " and "123mainst" both
// normalize to the same key as "123 Main St".
//
// Matching is exact-after-normalization only. Fuzzy or edit-distance
// matching is deliberately not performed; spreadsheet rows either line up
// with the directory or are surfaced as unmatched for the user to fix.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		stripped := strings.TrimSpace(statusSuffix.ReplaceAllString(s, ""))
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return foldCaser.String(s)
}

// Index resolves raw names against a fixed set of properties. Build it once
// per request from the org's directory, then Match each incoming name.
type Index struct {
	byNormalized map[string]*Property
}

// NewIndex builds a lookup over the given properties. When two directory
// entries normalize to the same key the first one wins; directory hygiene is
// surfaced through the dashboard, not silently resolved here.
func NewIndex(properties []*Property) *Index {
	idx := &Index{byNormalized: make(map[string]*Property, len(properties))}
	for _, p := range properties {
		key := Normalize(p.Name)
		if key == "" {
			continue
		}
		if _, exists := idx.byNormalized[key]; !exists {
			idx.byNormalized[key] = p
		}
	}
	return idx
}

// Match resolves a raw name to a property, reporting whether it matched
func (idx *Index) Match(raw string) (*Property, bool) {
	p, ok := idx.byNormalized[Normalize(raw)]
	return p, ok
}

// Len returns the number of distinct normalized names in the index
func (idx *Index) Len() int {
	return len(idx.byNormalized)
}
