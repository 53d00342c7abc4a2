// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bib loads BibTeX bibliographies and turns field values into plain
// text. Entries are parsed by github.com/nickng/bibtex after this package has
// expanded @string macros and # concatenation; crossref inheritance, LaTeX
// decoding and personal-name handling are layered on top.
package bib

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nickng/bibtex"
)

// Entry is one parsed BibTeX entry. Type and field names are lowercase;
// field values are macro-expanded but still carry LaTeX markup.
type Entry struct {
	Key    string
	Type   string
	Fields map[string]string
}

// Field returns the value of a field and whether it is present.
func (e *Entry) Field(name string) (string, bool) {
	v, ok := e.Fields[strings.ToLower(name)]
	return v, ok
}

// Bibliography is an ordered set of entries indexed by citation key.
type Bibliography struct {
	Entries []*Entry

	byKey   map[string]*Entry
	byLower map[string]*Entry
}

// Lookup finds an entry by citation key. An exact match wins; otherwise keys
// are compared case-insensitively as BibTeX does.
func (b *Bibliography) Lookup(key string) (*Entry, bool) {
	if e, ok := b.byKey[key]; ok {
		return e, true
	}
	e, ok := b.byLower[strings.ToLower(key)]
	return e, ok
}

// Load reads the files in order as one concatenated input, so that @string
// macros defined in an earlier file resolve in later ones.
func Load(paths ...string) (*Bibliography, error) {
	var buf bytes.Buffer
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return Parse(&buf)
}

// Parse reads a BibTeX document. @string macros and # concatenations are
// expanded before the entries are parsed.
func Parse(r io.Reader) (*Bibliography, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibtex: %w", err)
	}
	src, err := expandMacros(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding macros: %w", err)
	}
	parsed, err := bibtex.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing bibtex: %w", err)
	}

	b := &Bibliography{
		byKey:   make(map[string]*Entry, len(parsed.Entries)),
		byLower: make(map[string]*Entry, len(parsed.Entries)),
	}
	for _, pe := range parsed.Entries {
		e := &Entry{
			Key:    pe.CiteName,
			Type:   strings.ToLower(pe.Type),
			Fields: make(map[string]string, len(pe.Fields)),
		}
		for name, value := range pe.Fields {
			if value == nil {
				continue
			}
			e.Fields[strings.ToLower(name)] = value.String()
		}
		b.add(e)
	}
	return b, nil
}

func (b *Bibliography) add(e *Entry) {
	b.Entries = append(b.Entries, e)
	if _, dup := b.byKey[e.Key]; !dup {
		b.byKey[e.Key] = e
	}
	lower := strings.ToLower(e.Key)
	if _, dup := b.byLower[lower]; !dup {
		b.byLower[lower] = e
	}
}

// ExpandCrossref copies into every entry carrying a crossref field each
// field of the referenced entry that the entry does not define itself. The
// target's "key" field is never copied. Targets are expanded before the
// entries that reference them, so applying it twice changes nothing.
//
// It returns the sorted crossref targets that could not be found.
func (b *Bibliography) ExpandCrossref() []string {
	x := expander{b: b, state: map[*Entry]int{}, missing: map[string]bool{}}
	for _, e := range b.Entries {
		x.expand(e)
	}

	out := make([]string, 0, len(x.missing))
	for k := range x.missing {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

const (
	expanding = 1
	expanded  = 2
)

type expander struct {
	b       *Bibliography
	state   map[*Entry]int
	missing map[string]bool
}

func (x *expander) expand(e *Entry) {
	if x.state[e] != 0 {
		// Done, or a crossref cycle.
		return
	}
	x.state[e] = expanding
	defer func() { x.state[e] = expanded }()

	ref, ok := e.Fields["crossref"]
	if !ok {
		return
	}
	ref = strings.TrimSpace(ref)
	target, ok := x.b.Lookup(ref)
	if !ok {
		x.missing[ref] = true
		return
	}
	x.expand(target)
	for name, value := range target.Fields {
		if name == "key" {
			continue
		}
		if _, present := e.Fields[name]; !present {
			e.Fields[name] = value
		}
	}
}
