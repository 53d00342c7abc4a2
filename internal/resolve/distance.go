// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// isASCIIPunct reports whether r is one of !"#$%&'()*+,-./:;<=>?@[\]^_`{|}~.
func isASCIIPunct(r rune) bool {
	return r < utf8.RuneSelf && unicode.IsPrint(r) && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' '
}

// StripPunct removes ASCII punctuation. Non-ASCII marks such as an em dash
// are kept.
func StripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if isASCIIPunct(r) {
			return -1
		}
		return r
	}, s)
}

// Distance is the character edit distance between two titles after
// punctuation is stripped from both.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(StripPunct(a), StripPunct(b))
}

// RelativeDistance divides the edit distance by the length of the stripped
// record title. An empty record title gives 0 against an empty candidate
// and +Inf otherwise.
//
// Distance is symmetric but the ratio is not: swapping the arguments changes
// the denominator when the titles differ in length.
func RelativeDistance(record, candidate string) float64 {
	r := StripPunct(record)
	d := levenshtein.ComputeDistance(r, StripPunct(candidate))
	n := utf8.RuneCountInString(r)
	if n == 0 {
		if d == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(d) / float64(n)
}
