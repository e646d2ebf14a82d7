// Package quality classifies hadith grades.
//
// Only grades that explicitly name a weak or fabricated classification are
// rejected; an empty grade passes.
package quality

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// weakIndicators are matched as substrings of the folded grade.
var weakIndicators = []string{
	"ضعیف", // Urdu spelling (Farsi yeh)
	"ضعيف", // Arabic spelling
	"zaeef",
	"da'if",
	"daif",
	"weak",
	"موضوع", // fabricated
	"mawdu",
}

// IsWeak reports whether grade names a weak or fabricated classification.
func IsWeak(grade string) bool {
	if strings.TrimSpace(grade) == "" {
		return false
	}

	folded := fold(grade)
	for _, indicator := range weakIndicators {
		if strings.Contains(folded, indicator) {
			return true
		}
	}
	return false
}

// Indicator returns the first weak indicator found in grade, or "".
func Indicator(grade string) string {
	folded := fold(grade)
	for _, indicator := range weakIndicators {
		if strings.Contains(folded, indicator) {
			return indicator
		}
	}
	return ""
}

// fold lower-cases grade, strips combining marks (Arabic harakat included)
// and maps typographic apostrophes to ASCII.
func fold(grade string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, grade)
	if err != nil {
		stripped = grade
	}
	stripped = strings.NewReplacer("’", "'", "‘", "'", "`", "'").Replace(stripped)
	return strings.ToLower(stripped)
}

var gradeRe = regexp.MustCompile(`^([^(]+)(\([^)]+\))?`)

// SplitGrade separates a "grade (scholar)" cell into its two parts.
func SplitGrade(cell string) (grade, gradedBy string) {
	cell = strings.TrimSpace(cell)
	m := gradeRe.FindStringSubmatch(cell)
	if m == nil {
		return cell, ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}
