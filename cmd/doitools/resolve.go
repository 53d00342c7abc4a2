// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmccurley/cryptobib/internal/ledger"
	"github.com/kmccurley/cryptobib/internal/lookup"
	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Decide which Crossref candidate, if any, matches each record",
	Long: `Resolve reads one or more lookup outputs and examines each record's
candidates in rank order. A candidate is rejected when its year differs from
the record's, when its normalized title is too far from the record's, or when
its DOI prefix is not one used by the record's venue.

Accepted matches are written as key,doi lines to --out_file, which must not
exist. A record without a year stops the run and nothing is written.
Unmatched records are listed on stderr and, with --ledger, stored for
'doitools review'.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringArray("json_file", nil, "lookup output (repeatable; files are resolved in order)")
	resolveCmd.Flags().String("out_file", "", "output key,doi file; must not exist")
	resolveCmd.Flags().String("ledger", "", "review ledger database (default from config resolve.ledger_path)")
	resolveCmd.Flags().String("strategy", "", "first or closest (default from config resolve.rules.strategy)")
	bindFlag(resolveCmd, "resolve.rules.strategy", "strategy")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	log := observability.WithStage(logger, "resolve")

	jsonFiles, _ := cmd.Flags().GetStringArray("json_file")
	if len(jsonFiles) == 0 {
		return fmt.Errorf("--json_file is required")
	}
	for _, f := range jsonFiles {
		if err := requireFile("json_file", f); err != nil {
			return err
		}
	}
	outFile, _ := cmd.Flags().GetString("out_file")
	if outFile == "" {
		return fmt.Errorf("--out_file is required")
	}
	if err := checkOutput(outFile); err != nil {
		return err
	}
	ledgerPath := ledgerPathFlag(cmd)

	results, truncated, err := lookup.ReadFiles(jsonFiles...)
	if err != nil {
		return withExit(ExitDataError, err)
	}
	for _, p := range truncated {
		log.Warn().Str("file", p).Msg("lookup output is truncated; resolving its complete records")
	}

	r, err := resolve.New(resolve.RulesFromConfig(cfg.Resolve), log, metrics)
	if err != nil {
		return withExit(ExitConfigError, err)
	}
	rep, err := r.Resolve(results)
	if err != nil {
		return err
	}

	out, err := createOutput(outFile)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := resolve.WriteAccepted(out, rep.Decisions); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outFile, err)
	}

	if ledgerPath != "" {
		store, err := ledger.Open(ledgerPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.RecordRun(cmd.Context(), jsonFiles, rep.Decisions)
		if err != nil {
			return err
		}
		log.Info().Int64("run", runID).Str("ledger", ledgerPath).Msg("recorded run")
	}

	resolve.PrintSummary(os.Stderr, rep)
	return nil
}

// ledgerPathFlag returns --ledger, or the configured ledger path.
func ledgerPathFlag(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("ledger"); p != "" {
		return p
	}
	return cfg.Resolve.LedgerPath
}
