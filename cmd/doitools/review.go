// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmccurley/cryptobib/internal/ledger"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List the records a resolve run could not match",
	Long: `Review reads the ledger written by 'doitools resolve --ledger' and prints
the unmatched records of a run, with the reason each candidate was rejected,
so they can be checked by hand. By default the latest run is shown.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("ledger", "", "review ledger database (default from config resolve.ledger_path)")
	reviewCmd.Flags().Int64("run", 0, "run id (default latest)")
	reviewCmd.Flags().String("format", ledger.FormatTable, "output format: table, json or yaml")
	reviewCmd.Flags().Bool("all", false, "include accepted records")
	reviewCmd.Flags().Bool("runs", false, "list recorded runs instead")

	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	path := ledgerPathFlag(cmd)
	if err := requireFile("ledger", path); err != nil {
		return err
	}
	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if listRuns, _ := cmd.Flags().GetBool("runs"); listRuns {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTARTED\tACCEPTED\tUNMATCHED\tSOURCES")
		fmt.Fprintln(w, "---\t-------\t--------\t---------\t-------")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%v\n", r.ID, r.StartedAt.Local().Format(time.DateTime), r.Accepted, r.Unmatched, r.Sources)
		}
		return w.Flush()
	}

	runID, _ := cmd.Flags().GetInt64("run")
	all, _ := cmd.Flags().GetBool("all")
	format, _ := cmd.Flags().GetString("format")

	var list ledger.ReviewList
	if all {
		list.RunID, list.Decisions, err = store.Decisions(ctx, runID)
	} else {
		list.RunID, list.Decisions, err = store.Unmatched(ctx, runID)
	}
	if err != nil {
		return err
	}
	return ledger.Export(os.Stdout, format, list)
}
