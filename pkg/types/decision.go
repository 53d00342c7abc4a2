// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RejectReason names the gate a candidate failed.
type RejectReason string

const (
	RejectYear   RejectReason = "year"
	RejectTitle  RejectReason = "title"
	RejectPrefix RejectReason = "prefix"
)

// Rejection records why one candidate was not accepted.
type Rejection struct {
	// Rank is the zero-based position of the candidate in the search results.
	Rank int `json:"rank" yaml:"rank"`

	// DOI is the rejected candidate's DOI.
	DOI string `json:"doi" yaml:"doi"`

	Reason RejectReason `json:"reason" yaml:"reason"`

	// Detail is a short human-readable explanation (e.g. "2007 != 2008").
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Decision is the resolver's verdict for one record.
type Decision struct {
	// Key is the citation key of the record.
	Key string `json:"bibkey" yaml:"bibkey"`

	// DOI is the accepted DOI. Empty means no confident match; the record is
	// left for manual review.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the record title, kept for review listings.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Distance is the relative title edit distance of the accepted candidate.
	Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty"`

	// Warnings are advisory findings that did not gate acceptance, such as an
	// author-count mismatch.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Rejections lists the candidates that failed a gate, in rank order.
	Rejections []Rejection `json:"rejections,omitempty" yaml:"rejections,omitempty"`
}

// Accepted reports whether the decision carries a DOI.
func (d Decision) Accepted() bool {
	return d.DOI != ""
}
