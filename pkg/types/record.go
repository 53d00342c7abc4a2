// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the DOI pipeline.
// Each stage reads one artifact and writes the next:
//
//	detect  -> []BibRecord
//	lookup  -> []LookupResult
//	resolve -> []Decision (accepted ones as key,doi lines)
//	patch   -> BibTeX text
package types

import "strings"

// EntryType is the BibTeX entry type of a record.
type EntryType string

const (
	EntryArticle       EntryType = "article"
	EntryInproceedings EntryType = "inproceedings"
)

// ParseEntryType maps a BibTeX entry type to an EntryType. The second return
// value is false for types the pipeline does not handle.
func ParseEntryType(s string) (EntryType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(EntryArticle):
		return EntryArticle, true
	case string(EntryInproceedings):
		return EntryInproceedings, true
	default:
		return "", false
	}
}

// BibRecord is a bibliography entry that lacks a DOI, as emitted by the
// detect stage. It is read-only after creation.
type BibRecord struct {
	// Key is the citation key (e.g. "C:BarJacMit08"). Unique within a corpus.
	Key string `json:"bibkey" yaml:"bibkey"`

	// EntryType is article or inproceedings.
	EntryType EntryType `json:"entry_type" yaml:"entry_type"`

	// Title is the LaTeX-decoded title.
	Title string `json:"title" yaml:"title"`

	// Authors lists author names in "First von Last" form, in source order.
	Authors []string `json:"author" yaml:"author"`

	// Year is the publication year as written in the entry. Empty means absent.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// DOI is normally empty for detected records; the resolver re-checks it.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Fields echoes every decoded field of the entry, including inherited
	// crossref fields.
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// HasYear reports whether the record carries a non-blank year.
func (r BibRecord) HasYear() bool {
	return strings.TrimSpace(r.Year) != ""
}

// Venue returns the venue token of the citation key: the text before the
// first occurrence of sep. It returns "" when the key has no separator.
func (r BibRecord) Venue(sep string) string {
	if sep == "" {
		return ""
	}
	venue, _, found := strings.Cut(r.Key, sep)
	if !found {
		return ""
	}
	return venue
}
