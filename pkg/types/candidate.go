// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strings"
)

// CandidateAuthor is a contributor as reported by Crossref.
type CandidateAuthor struct {
	Given  string `json:"given,omitempty" yaml:"given,omitempty"`
	Family string `json:"family,omitempty" yaml:"family,omitempty"`
}

// Name returns "Given Family", trimmed.
func (a CandidateAuthor) Name() string {
	return strings.TrimSpace(a.Given + " " + a.Family)
}

// DateParts is a Crossref partial date: [[year, month, day]].
type DateParts struct {
	DateParts [][]int `json:"date-parts" yaml:"date-parts"`
}

// Year returns the first element of the first date-parts entry.
func (d *DateParts) Year() (int, bool) {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0, false
	}
	y := d.DateParts[0][0]
	return y, y != 0
}

// SearchCandidate is one ranked Crossref work returned for a BibRecord.
//
// Only the fields used for matching are decoded. The raw JSON object is kept
// so a candidate written back to disk carries every retained Crossref key.
type SearchCandidate struct {
	DOI             string            `json:"DOI"`
	Prefix          string            `json:"prefix"`
	Title           []string          `json:"title"`
	Subtitle        []string          `json:"subtitle,omitempty"`
	Author          []CandidateAuthor `json:"author"`
	PublishedPrint  *DateParts        `json:"published-print,omitempty"`
	PublishedOnline *DateParts        `json:"published-online,omitempty"`
	Published       *DateParts        `json:"published,omitempty"`

	raw json.RawMessage
}

// candidateFields breaks the MarshalJSON/UnmarshalJSON recursion.
type candidateFields SearchCandidate

// UnmarshalJSON decodes the matching fields and keeps the raw object.
func (c *SearchCandidate) UnmarshalJSON(data []byte) error {
	var f candidateFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = SearchCandidate(f)
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the raw object when the candidate was decoded from JSON,
// and the typed fields otherwise.
func (c SearchCandidate) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	return json.Marshal(candidateFields(c))
}

// PrimaryTitle returns the first title, or "" when there is none.
func (c SearchCandidate) PrimaryTitle() string {
	if len(c.Title) == 0 {
		return ""
	}
	return c.Title[0]
}

// PrimarySubtitle returns the first subtitle, or "" when there is none.
func (c SearchCandidate) PrimarySubtitle() string {
	if len(c.Subtitle) == 0 {
		return ""
	}
	return c.Subtitle[0]
}

// Year returns the publication year, checking published-print, then
// published-online, then published. The first of those keys that is present
// decides, even if its date-parts carry no year.
func (c SearchCandidate) Year() (int, bool) {
	switch {
	case c.PublishedPrint != nil:
		return c.PublishedPrint.Year()
	case c.PublishedOnline != nil:
		return c.PublishedOnline.Year()
	case c.Published != nil:
		return c.Published.Year()
	default:
		return 0, false
	}
}

// LookupResult pairs a BibRecord with the candidates found for it. It is the
// hand-off artifact between the lookup and resolve stages.
type LookupResult struct {
	// Index is the position of the record in the detect output.
	Index int `json:"i"`

	// Record is the bibliography record that was searched for.
	Record BibRecord `json:"bibtex"`

	// QueryURL is the search request that produced the candidates.
	QueryURL string `json:"url"`

	// Candidates are the retained search results in rank order.
	Candidates []SearchCandidate `json:"search"`
}
