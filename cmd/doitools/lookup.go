// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmccurley/cryptobib/internal/crossref"
	"github.com/kmccurley/cryptobib/internal/detect"
	"github.com/kmccurley/cryptobib/internal/lookup"
	"github.com/kmccurley/cryptobib/internal/observability"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Search Crossref for records without a DOI",
	Long: `Lookup reads the detect output and, for a window of its records, queries the
Crossref works API with the decoded title and author list. The retained
candidates are streamed to a JSON file, one record at a time, so an
interrupted run keeps everything searched so far. Resume it with a later
--start.

The default output is <bads_file>.<start>.<num_records>.json. It must not
exist.`,
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().String("bads_file", "", "detect output (JSON array of records)")
	lookupCmd.Flags().Int("start", 0, "index of the first record to search")
	lookupCmd.Flags().Int("num_records", 0, "number of records to search (default from config lookup.num_records)")
	lookupCmd.Flags().Int("num_results", 0, "candidates kept per record (default from config lookup.num_results)")
	lookupCmd.Flags().String("out_file", "", "output JSON file (default <bads_file>.<start>.<num_records>.json)")
	bindFlag(lookupCmd, "lookup.num_records", "num_records")
	bindFlag(lookupCmd, "lookup.num_results", "num_results")

	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	log := observability.WithStage(logger, "lookup")

	badsFile, _ := cmd.Flags().GetString("bads_file")
	if err := requireFile("bads_file", badsFile); err != nil {
		return err
	}
	start, _ := cmd.Flags().GetInt("start")
	opts := lookup.Options{
		Start:      start,
		NumRecords: cfg.Lookup.NumRecords,
		NumResults: cfg.Lookup.NumResults,
	}

	outFile, _ := cmd.Flags().GetString("out_file")
	if outFile == "" {
		outFile = lookup.OutputPath(badsFile, opts.Start, opts.NumRecords)
	}
	if err := checkOutput(outFile); err != nil {
		return err
	}

	records, err := detect.ReadFile(badsFile)
	if err != nil {
		return withExit(ExitDataError, err)
	}
	if _, _, err := lookup.Window(len(records), opts.Start, opts.NumRecords); err != nil {
		return err
	}

	f, err := lookup.CreateExclusive(outFile)
	if err != nil {
		return err
	}
	defer f.Close()

	client := crossref.NewClient(cfg.Lookup.Crossref, log, metrics)
	w := lookup.NewWriter(f)
	sum, runErr := lookup.Run(cmd.Context(), records, client, opts, w, log, metrics)

	// Terminate the array even after a failure so the partial file stays
	// readable by resolve.
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outFile, err)
	}

	lookup.PrintSummary(os.Stderr, sum)
	if runErr != nil {
		log.Error().
			Int("next_start", opts.Start+sum.Records).
			Str("file", outFile).
			Msg("lookup stopped; rerun with --start next_start to continue")
		return runErr
	}
	log.Info().Str("file", outFile).Int("records", w.Count()).Msg("lookup complete")
	return nil
}
