// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmccurley/cryptobib/internal/bib"
	"github.com/kmccurley/cryptobib/internal/detect"
	"github.com/kmccurley/cryptobib/internal/observability"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List bibliography entries that have no DOI",
	Long: `Detect parses the bibliography files as one document, fills every entry
from its crossref target, and writes a JSON array with one record per article
or inproceedings entry that has no doi field.

The files are concatenated in the order given so that @string macros from the
abbreviation files resolve in the entry file.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringSlice("bib", nil, "bibliography files, in order (default from config detect.bib_files)")
	detectCmd.Flags().String("out_file", "", "output JSON file (default stdout); must not exist")
	bindFlag(detectCmd, "detect.bib_files", "bib")

	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	log := observability.WithStage(logger, "detect")
	files := cfg.Detect.BibFiles
	if len(files) == 0 {
		return fmt.Errorf("--bib is required")
	}
	for _, f := range files {
		if err := requireFile("bib", f); err != nil {
			return err
		}
	}
	outFile, _ := cmd.Flags().GetString("out_file")
	if err := checkOutput(outFile); err != nil {
		return err
	}

	b, err := bib.Load(files...)
	if err != nil {
		return err
	}
	for _, ref := range b.ExpandCrossref() {
		log.Warn().Str("crossref", ref).Msg("crossref target not found")
	}

	records := detect.Detect(b)
	metrics.RecordDetected(len(records))

	out, err := createOutput(outFile)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := detect.Write(out, records); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outFile, err)
	}

	fmt.Fprintf(os.Stderr, "Detect: %d of %d entries have no DOI\n", len(records), len(b.Entries))
	return nil
}
