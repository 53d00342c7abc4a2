// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUndefinedMacro is returned when a field refers to an @string macro that
// was never defined.
var ErrUndefinedMacro = errors.New("undefined string macro")

// monthMacros are the macros BibTeX styles predefine.
var monthMacros = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// expandMacros rewrites every field or @string value that refers to a macro
// or uses # concatenation into a single braced literal, and entries written
// with parentheses into braces. Everything else is copied unchanged. Macro
// names are case-insensitive, as in BibTeX.
//
// nickng/bibtex loses the right-hand side of a # concatenation, so values
// reach it already joined.
func expandMacros(src string) (string, error) {
	x := &macroExpander{src: src, macros: make(map[string]string, len(monthMacros))}
	for k, v := range monthMacros {
		x.macros[k] = v
	}
	for {
		i := strings.IndexByte(x.src[x.pos:], '@')
		if i < 0 {
			x.out.WriteString(x.src[x.pos:])
			return x.out.String(), nil
		}
		x.out.WriteString(x.src[x.pos : x.pos+i])
		x.pos += i
		if err := x.entry(); err != nil {
			return "", err
		}
	}
}

type macroExpander struct {
	src    string
	pos    int
	out    strings.Builder
	macros map[string]string
}

func (x *macroExpander) entry() error {
	start := x.pos
	x.pos++
	x.skipSpace()
	kind := strings.ToLower(x.bare())
	x.skipSpace()
	if x.eof() || (x.peek() != '{' && x.peek() != '(') {
		x.out.WriteString(x.src[start:x.pos])
		return nil
	}

	switch kind {
	case "comment":
		// The comment body runs to the next '@'.
		end := strings.IndexByte(x.src[x.pos:], '@')
		if end < 0 {
			end = len(x.src)
		} else {
			end += x.pos
		}
		x.out.WriteString(x.src[start:end])
		x.pos = end
		return nil
	case "preamble":
		if _, err := x.group(); err != nil {
			return err
		}
		x.out.WriteString(x.src[start:x.pos])
		return nil
	}

	// Parenthesized entries are rewritten with braces.
	closer := byte('}')
	if x.peek() == '(' {
		closer = ')'
	}
	x.out.WriteString(x.src[start:x.pos])
	x.out.WriteByte('{')
	x.pos++
	keyStart := x.pos
	if kind != "string" {
		end := strings.IndexAny(x.src[x.pos:], ","+string(closer))
		if end < 0 {
			x.pos = len(x.src)
		} else {
			x.pos += end
		}
	}
	x.out.WriteString(x.src[keyStart:x.pos])

	for {
		x.copySpace()
		if x.eof() {
			return nil
		}
		switch x.peek() {
		case closer:
			x.out.WriteByte('}')
			x.pos++
			return nil
		case ',':
			x.out.WriteByte(',')
			x.pos++
			continue
		}

		name := x.bare()
		if name == "" {
			return fmt.Errorf("unexpected %q at offset %d", x.peek(), x.pos)
		}
		x.out.WriteString(name)
		x.copySpace()
		if x.eof() || x.peek() != '=' {
			return fmt.Errorf("field %s: missing '=' at offset %d", name, x.pos)
		}
		x.out.WriteByte('=')
		x.pos++
		x.copySpace()

		text, raw, literal, err := x.value()
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if literal {
			x.out.WriteString(raw)
		} else {
			x.out.WriteString("{" + text + "}")
		}
		if kind == "string" {
			x.macros[strings.ToLower(name)] = text
		}
	}
}

// value reads one field value, a #-separated list of parts, and returns its
// expanded text, its raw source and whether it is a single literal part.
func (x *macroExpander) value() (text, raw string, literal bool, err error) {
	start := x.pos
	var b strings.Builder
	parts, macros := 0, 0
	for {
		x.skipSpace()
		if x.eof() {
			return "", "", false, errors.New("unterminated value")
		}
		switch x.peek() {
		case '"':
			s, err := x.quoted()
			if err != nil {
				return "", "", false, err
			}
			// Braces inside quotes only protect case.
			b.WriteString(strings.NewReplacer("{", "", "}", "").Replace(s))
		case '{':
			s, err := x.group()
			if err != nil {
				return "", "", false, err
			}
			b.WriteString(s)
		default:
			tok := x.bare()
			if tok == "" {
				return "", "", false, fmt.Errorf("unexpected %q at offset %d", x.peek(), x.pos)
			}
			if _, err := strconv.Atoi(tok); err == nil {
				b.WriteString(tok)
				break
			}
			v, ok := x.macros[strings.ToLower(tok)]
			if !ok {
				return "", "", false, fmt.Errorf("%w: %s", ErrUndefinedMacro, tok)
			}
			b.WriteString(v)
			macros++
		}
		parts++

		end := x.pos
		x.skipSpace()
		if !x.eof() && x.peek() == '#' {
			x.pos++
			continue
		}
		x.pos = end
		return b.String(), x.src[start:end], parts == 1 && macros == 0, nil
	}
}

// quoted reads a "..." string and returns its contents. A quote inside
// braces does not end the string.
func (x *macroExpander) quoted() (string, error) {
	start := x.pos
	depth := 0
	for x.pos++; x.pos < len(x.src); x.pos++ {
		switch x.src[x.pos] {
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				x.pos++
				return x.src[start+1 : x.pos-1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated string at offset %d", start)
}

// group reads a balanced {...} or (...) group and returns its contents.
func (x *macroExpander) group() (string, error) {
	start := x.pos
	open, closer := x.peek(), byte('}')
	if open == '(' {
		closer = ')'
	}
	depth := 0
	for ; x.pos < len(x.src); x.pos++ {
		switch x.src[x.pos] {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				x.pos++
				return x.src[start+1 : x.pos-1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced %q at offset %d", open, start)
}

// bare reads an identifier, number or citation-key-like token.
func (x *macroExpander) bare() string {
	start := x.pos
	for x.pos < len(x.src) && !isSpace(x.src[x.pos]) && !strings.ContainsRune(`{}(),=#"@`, rune(x.src[x.pos])) {
		x.pos++
	}
	return x.src[start:x.pos]
}

func (x *macroExpander) skipSpace() {
	for x.pos < len(x.src) && isSpace(x.src[x.pos]) {
		x.pos++
	}
}

func (x *macroExpander) copySpace() {
	start := x.pos
	x.skipSpace()
	x.out.WriteString(x.src[start:x.pos])
}

func (x *macroExpander) eof() bool  { return x.pos >= len(x.src) }
func (x *macroExpander) peek() byte { return x.src[x.pos] }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
