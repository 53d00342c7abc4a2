// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.yaml.in/yaml/v3"

	"github.com/kmccurley/cryptobib/pkg/types"
)

// Export formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ReviewList is the exported form of a run's decisions.
type ReviewList struct {
	RunID     int64            `json:"run_id" yaml:"run_id"`
	Decisions []types.Decision `json:"decisions" yaml:"decisions"`
}

// ExportYAML writes the review list as YAML.
func ExportYAML(w io.Writer, list ReviewList) error {
	data, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes the review list as indented JSON.
func ExportJSON(w io.Writer, list ReviewList) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// WriteTable writes one row per decision with the reasons its candidates
// were rejected.
func WriteTable(w io.Writer, list ReviewList) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BIBKEY\tDOI\tREJECTIONS\tTITLE")
	fmt.Fprintln(tw, "------\t---\t----------\t-----")
	for _, d := range list.Decisions {
		doi := d.DOI
		if doi == "" {
			doi = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, doi, rejectionSummary(d.Rejections), d.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nRun %d: %d records\n", list.RunID, len(list.Decisions))
	return err
}

// Export writes list in the named format.
func Export(w io.Writer, format string, list ReviewList) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return WriteTable(w, list)
	case FormatJSON:
		return ExportJSON(w, list)
	case FormatYAML:
		return ExportYAML(w, list)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

// rejectionSummary condenses rejections to "title,year,title".
func rejectionSummary(rs []types.Rejection) string {
	if len(rs) == 0 {
		return "-"
	}
	reasons := make([]string, len(rs))
	for i, r := range rs {
		reasons[i] = string(r.Reason)
	}
	return strings.Join(reasons, ",")
}
