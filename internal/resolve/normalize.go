// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/kmccurley/cryptobib/internal/bib"
)

// Normalizer reduces titles to the form used for comparison.
type Normalizer struct {
	phrases *regexp.Regexp
}

// NewNormalizer compiles the strip phrases into one case-insensitive
// alternation.
func NewNormalizer(phrases []string) (*Normalizer, error) {
	n := &Normalizer{}
	if len(phrases) == 0 {
		return n, nil
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(phrases, "|"))
	if err != nil {
		return nil, fmt.Errorf("compiling strip phrases: %w", err)
	}
	n.phrases = re
	return n, nil
}

// maxPasses bounds the fixpoint iteration of Normalize.
const maxPasses = 8

// Normalize decodes LaTeX, removes the strip phrases, lowercases and
// removes all whitespace. The steps repeat until the title stops changing,
// so Normalize(Normalize(t)) == Normalize(t) even when removing whitespace
// joins the words of a phrase ("Key Note").
func (n *Normalizer) Normalize(title string) string {
	s := n.pass(title)
	for i := 1; i < maxPasses; i++ {
		next := n.pass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func (n *Normalizer) pass(title string) string {
	s := bib.DecodeLaTeX(title)
	if n.phrases != nil {
		s = n.phrases.ReplaceAllString(s, "")
	}
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
