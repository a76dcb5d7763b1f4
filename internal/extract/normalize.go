package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
	newlineEdges = regexp.MustCompile(` *\n *`)
	newlineRuns  = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText applies the canonical whitespace rules: runs of spaces and
// tabs collapse to a single space, runs of three or more newlines collapse
// to exactly two (one blank line keeps the paragraph break). The function is
// idempotent.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineEdges.ReplaceAllString(s, "\n")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CountWords counts whitespace-delimited tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Truncate hard-cuts s at limit bytes and appends the marker. Text within
// the limit is returned verbatim, marker-free. The cut backs up to a rune
// boundary so no mangled character leaks into output.
func Truncate(s string, limit int, marker string) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
