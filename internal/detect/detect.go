// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package detect finds bibliography entries that lack a DOI and projects
// them into BibRecords for the lookup stage.
package detect

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kmccurley/cryptobib/internal/bib"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// Detect returns a BibRecord for every article or inproceedings entry
// without a doi field, in bibliography order. Crossref inheritance must
// already have been applied.
func Detect(b *bib.Bibliography) []types.BibRecord {
	var records []types.BibRecord
	for _, e := range b.Entries {
		if _, hasDOI := e.Field("doi"); hasDOI {
			continue
		}
		if _, ok := types.ParseEntryType(e.Type); !ok {
			continue
		}
		records = append(records, Project(e))
	}
	return records
}

// Project converts an entry to a BibRecord. Field values are LaTeX-decoded;
// authors are split and merged into "First von Last" form.
func Project(e *bib.Entry) types.BibRecord {
	entryType, _ := types.ParseEntryType(e.Type)
	r := types.BibRecord{
		Key:       e.Key,
		EntryType: entryType,
		Fields:    make(map[string]string, len(e.Fields)),
	}
	for name, value := range e.Fields {
		r.Fields[name] = bib.DecodeLaTeX(value)
	}

	r.Title = r.Fields["title"]
	r.Year = r.Fields["year"]
	r.DOI = r.Fields["doi"]
	if raw, ok := e.Field("author"); ok {
		for _, name := range bib.SplitAuthors(raw) {
			r.Authors = append(r.Authors, bib.DecodeLaTeX(bib.MergeName(name)))
		}
	}
	return r
}

// Write encodes records as an indented JSON array.
func Write(w io.Writer, records []types.BibRecord) error {
	if records == nil {
		records = []types.BibRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return nil
}

// ReadFile decodes a JSON array of BibRecords written by Write.
func ReadFile(path string) ([]types.BibRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var records []types.BibRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}
