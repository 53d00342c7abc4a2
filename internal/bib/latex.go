// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// accents maps accent macros to Unicode combining marks.
var accents = map[string]rune{
	"`":  '\u0300',
	"'":  '\u0301',
	"^":  '\u0302',
	"~":  '\u0303',
	"=":  '\u0304',
	"u":  '\u0306',
	".":  '\u0307',
	"\"": '\u0308',
	"r":  '\u030a',
	"H":  '\u030b',
	"v":  '\u030c',
	"d":  '\u0323',
	"c":  '\u0327',
	"k":  '\u0328',
	"b":  '\u0331',
}

// symbols maps argument-less macros to their text.
var symbols = map[string]string{
	"ss":             "ß",
	"o":              "ø",
	"O":              "Ø",
	"ae":             "æ",
	"AE":             "Æ",
	"oe":             "œ",
	"OE":             "Œ",
	"aa":             "å",
	"AA":             "Å",
	"l":              "ł",
	"L":              "Ł",
	"i":              "ı",
	"j":              "ȷ",
	"dh":             "ð",
	"DH":             "Ð",
	"th":             "þ",
	"TH":             "Þ",
	"S":              "§",
	"P":              "¶",
	"ldots":          "...",
	"dots":           "...",
	"textendash":     "-",
	"textemdash":     "—",
	"textquoteright": "'",
	"textquoteleft":  "'",
	"textbackslash":  "\\",
	"textasciitilde": "~",
	"LaTeX":          "LaTeX",
	"TeX":            "TeX",
	"alpha":          "α",
	"beta":           "β",
	"gamma":          "γ",
	"delta":          "δ",
	"epsilon":        "ε",
	"lambda":         "λ",
	"mu":             "μ",
	"pi":             "π",
	"sigma":          "σ",
	"omega":          "ω",
	"ell":            "ℓ",
	"times":          "×",
	"cdot":           "·",
	"infty":          "∞",
	"leq":            "≤",
	"geq":            "≥",
	"neq":            "≠",
	"oplus":          "⊕",
}

// escapes maps control symbols (backslash followed by a non-letter) to text.
var escapes = map[byte]string{
	'&':  "&",
	'%':  "%",
	'$':  "$",
	'#':  "#",
	'_':  "_",
	'{':  "{",
	'}':  "}",
	'\\': " ",
	' ':  " ",
	',':  " ",
	';':  " ",
	'!':  "",
	'-':  "",
	'/':  "",
	'@':  "",
}

// dotless maps the dotless-i and dotless-j macros back to plain letters when
// they carry an accent.
var dotless = map[string]string{"ı": "i", "ȷ": "j"}

// DecodeLaTeX converts a BibTeX field value to plain Unicode text.
//
// Accent macros are composed into precomposed characters, letter macros are
// replaced, formatting macros are unwrapped, grouping braces and math
// dollars are dropped, "~" becomes a space, "--" a hyphen and "---" an em
// dash. Runs of whitespace collapse to a single space.
func DecodeLaTeX(s string) string {
	d := decoder{src: s}
	out := d.decode(false)
	return FixStrings(strings.Join(strings.Fields(norm.NFC.String(out)), " "))
}

// FixStrings replaces non-breaking spaces with spaces and en dashes with
// hyphens.
func FixStrings(s string) string {
	return strings.NewReplacer("\u00a0", " ", "\u2013", "-").Replace(s)
}

type decoder struct {
	src string
	pos int
}

// decode consumes input until the end, or until the closing brace of the
// current group when inGroup is set.
func (d *decoder) decode(inGroup bool) string {
	var b strings.Builder
	for d.pos < len(d.src) {
		c := d.src[d.pos]
		switch c {
		case '\\':
			b.WriteString(d.command())
		case '{':
			d.pos++
			b.WriteString(d.decode(true))
		case '}':
			d.pos++
			if inGroup {
				return b.String()
			}
		case '$':
			d.pos++
		case '~':
			d.pos++
			b.WriteByte(' ')
		case '-':
			n := d.run('-')
			switch {
			case n >= 3:
				b.WriteString("—")
			default:
				b.WriteByte('-')
			}
		case '`':
			if d.run('`') >= 2 {
				b.WriteByte('"')
			} else {
				b.WriteByte('\'')
			}
		case '\'':
			if d.run('\'') >= 2 {
				b.WriteByte('"')
			} else {
				b.WriteByte('\'')
			}
		default:
			b.WriteByte(c)
			d.pos++
		}
	}
	return b.String()
}

// run consumes a run of c and returns its length.
func (d *decoder) run(c byte) int {
	n := 0
	for d.pos < len(d.src) && d.src[d.pos] == c {
		d.pos++
		n++
	}
	return n
}

// command decodes a macro starting at the backslash.
func (d *decoder) command() string {
	d.pos++ // backslash
	if d.pos >= len(d.src) {
		return ""
	}

	name := d.commandName()
	if name == "" {
		return ""
	}

	if mark, ok := accents[name]; ok {
		arg := d.argument()
		if arg == "" {
			return string(mark)
		}
		r := []rune(arg)
		return string(r[0]) + string(mark) + string(r[1:])
	}
	if sym, ok := symbols[name]; ok {
		return sym
	}
	if len(name) == 1 && !isLetter(name[0]) {
		return escapes[name[0]]
	}
	// Unknown or formatting macro (\emph, \textbf, \mathcal, ...): drop the
	// name; its argument group is decoded by the caller.
	return ""
}

// commandName reads a control word (letters, then trailing spaces) or a
// single-character control symbol.
func (d *decoder) commandName() string {
	start := d.pos
	if !isLetter(d.src[d.pos]) {
		d.pos++
		return d.src[start:d.pos]
	}
	for d.pos < len(d.src) && isLetter(d.src[d.pos]) {
		d.pos++
	}
	name := d.src[start:d.pos]
	// Accent macros written as letters take their argument after optional
	// spaces ("\c c"); other control words swallow one trailing space.
	for d.pos < len(d.src) && d.src[d.pos] == ' ' {
		d.pos++
		if _, ok := accents[name]; !ok {
			break
		}
	}
	return name
}

// argument reads an accent argument: a braced group or a single character,
// possibly itself a macro such as \i.
func (d *decoder) argument() string {
	for d.pos < len(d.src) && d.src[d.pos] == ' ' {
		d.pos++
	}
	if d.pos >= len(d.src) {
		return ""
	}
	var arg string
	switch d.src[d.pos] {
	case '{':
		d.pos++
		arg = d.decode(true)
	case '\\':
		arg = d.command()
	default:
		r := []rune(d.src[d.pos:])[0]
		d.pos += len(string(r))
		arg = string(r)
	}
	for from, to := range dotless {
		if strings.HasPrefix(arg, from) {
			arg = to + strings.TrimPrefix(arg, from)
		}
	}
	return arg
}

func isLetter(c byte) bool {
	return c < 0x80 && unicode.IsLetter(rune(c))
}
