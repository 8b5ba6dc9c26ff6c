// Package schedule derives structured class entries from raw Schoology
// section titles. Parsing is a documented heuristic pinned by tests; a title
// that doesn't match the pattern is dropped silently rather than surfaced as
// an error, since section lists routinely contain clubs and advisory blocks
// that never match.
package schedule

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Entry is one recognized class: period number, course name, and the
// teacher's display name as it appears in the section title.
type Entry struct {
	Period  int
	Course  string
	Teacher string
}

// Section titles look like:
//
//	"Algebra II (S1 3 Smith) Period 3"
//
// i.e. free-text course name, then a parenthesized block whose last two
// tokens before the teacher are a term code and the period number, then
// trailing text we ignore.
var titlePattern = regexp.MustCompile(`^(.*) \(.* (\d+) ([^)]*)\) (.*)$`)

// Parse matches one raw section title. The second return is false when the
// title doesn't fit the pattern.
func Parse(rawTitle string) (Entry, bool) {
	m := titlePattern.FindStringSubmatch(rawTitle)
	if m == nil {
		return Entry{}, false
	}
	period, err := strconv.Atoi(m[2])
	if err != nil {
		return Entry{}, false
	}
	return Entry{Period: period, Course: m[1], Teacher: m[3]}, true
}

// FilterValid drops entries whose period falls outside [0, 8]. This is a
// separate stage from parse failure: a title can parse fine and still name a
// period we don't map (e.g. zero-period lab sections beyond 8).
func FilterValid(entries []Entry) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Period >= 0 && e.Period <= 8 {
			out = append(out, e)
		}
	}
	return out
}

// SortByPeriod sorts entries ascending by period, stable so ties keep their
// section-list order.
func SortByPeriod(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Period < entries[j].Period
	})
	return entries
}

// FromTitles runs the full derivation: parse each title (dropping
// unparseable ones), filter to valid periods, sort by period.
func FromTitles(titles []string) []Entry {
	entries := make([]Entry, 0, len(titles))
	for _, t := range titles {
		if e, ok := Parse(t); ok {
			entries = append(entries, e)
		}
	}
	return SortByPeriod(FilterValid(entries))
}

// NormalizeTeacher turns a teacher display name into a channel slug:
// lower-case, whitespace to "-", then strip everything outside [a-z-].
func NormalizeTeacher(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('-')
		case (r >= 'a' && r <= 'z') || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
