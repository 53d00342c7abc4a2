// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"strings"
	"unicode"
)

// Name is a BibTeX personal name split into its four parts.
type Name struct {
	First []string
	Von   []string
	Last  []string
	Jr    []string
}

// String merges the name in "first" style: "First von Last, Jr".
func (n Name) String() string {
	parts := make([]string, 0, len(n.First)+len(n.Von)+len(n.Last))
	parts = append(parts, n.First...)
	parts = append(parts, n.Von...)
	parts = append(parts, n.Last...)
	s := strings.Join(parts, " ")
	if len(n.Jr) > 0 {
		s += ", " + strings.Join(n.Jr, " ")
	}
	return s
}

// SplitAuthors splits an author or editor field on the word "and" at brace
// depth zero. Empty names are dropped.
func SplitAuthors(field string) []string {
	var names []string
	words := splitWords(field)
	var cur []string
	for _, w := range words {
		if strings.EqualFold(w, "and") {
			if len(cur) > 0 {
				names = append(names, strings.Join(cur, " "))
			}
			cur = nil
			continue
		}
		cur = append(cur, w)
	}
	if len(cur) > 0 {
		names = append(names, strings.Join(cur, " "))
	}
	return names
}

// ParseName splits one name into First, von, Last and Jr parts following the
// three BibTeX forms:
//
//	First von Last
//	von Last, First
//	von Last, Jr, First
func ParseName(s string) Name {
	sections := splitCommas(s)
	var n Name
	switch len(sections) {
	case 0:
		return n
	case 1:
		words := splitWords(sections[0])
		if len(words) == 0 {
			return n
		}
		// The last word is always part of Last.
		vonStart, vonEnd := -1, -1
		for i := 0; i < len(words)-1; i++ {
			if isLowerWord(words[i]) {
				if vonStart < 0 {
					vonStart = i
				}
				vonEnd = i + 1
			}
		}
		if vonStart < 0 {
			n.First = words[:len(words)-1]
			n.Last = words[len(words)-1:]
			return n
		}
		n.First = words[:vonStart]
		n.Von = words[vonStart:vonEnd]
		n.Last = words[vonEnd:]
	default:
		n.Von, n.Last = splitVonLast(splitWords(sections[0]))
		if len(sections) == 2 {
			n.First = splitWords(sections[1])
		} else {
			n.Jr = splitWords(sections[1])
			n.First = splitWords(strings.Join(sections[2:], ","))
		}
	}
	return n
}

// MergeName parses a raw name and returns it in "First von Last" form.
func MergeName(s string) string {
	return ParseName(s).String()
}

// splitVonLast separates the leading lowercase words of the "von Last" section.
// Last keeps at least one word.
func splitVonLast(words []string) (von, last []string) {
	if len(words) == 0 {
		return nil, nil
	}
	end := 0
	for i := 0; i < len(words)-1; i++ {
		if isLowerWord(words[i]) {
			end = i + 1
		}
	}
	return words[:end], words[end:]
}

// splitWords splits on whitespace and "~" at brace depth zero.
func splitWords(s string) []string {
	var words []string
	var b strings.Builder
	depth := 0
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '{':
			depth++
			b.WriteRune(r)
		case r == '}':
			if depth > 0 {
				depth--
			}
			b.WriteRune(r)
		case depth == 0 && (unicode.IsSpace(r) || r == '~'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}

// splitCommas splits on commas at brace depth zero and trims each section.
func splitCommas(s string) []string {
	var sections []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				sections = append(sections, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	sections = append(sections, strings.TrimSpace(s[start:]))
	if len(sections) == 1 && sections[0] == "" {
		return nil
	}
	return sections
}

// isLowerWord reports whether the first letter of w at brace depth zero is
// lowercase. A group opening with a control sequence ("{\'e}") counts as a
// letter at depth zero. Words without such a letter are caseless and treated
// as uppercase.
func isLowerWord(w string) bool {
	depth := 0
	for i := 0; i < len(w); i++ {
		c := w[i]
		switch {
		case c == '{':
			if depth == 0 && i+1 < len(w) && w[i+1] == '\\' {
				return firstLetterAfterCommand(w[i+1:])
			}
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && c == '\\':
			return firstLetterAfterCommand(w[i:])
		case depth == 0 && c < 0x80 && unicode.IsLetter(rune(c)):
			return unicode.IsLower(rune(c))
		case depth == 0 && c >= 0x80:
			r := []rune(w[i:])[0]
			if unicode.IsLetter(r) {
				return unicode.IsLower(r)
			}
		}
	}
	return false
}

// firstLetterAfterCommand inspects an accent command such as \'e or \"{O} and
// reports whether the accented letter is lowercase. Letter macros such as \o
// or \ss are judged by their name.
func firstLetterAfterCommand(s string) bool {
	d := decoder{src: s}
	out := d.command()
	for _, r := range out {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
	}
	return false
}
