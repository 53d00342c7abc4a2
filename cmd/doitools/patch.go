// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/internal/patch"
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Insert accepted DOIs into the bibliography",
	Long: `Patch copies the bibliography line by line, adding a doi field before the
closing brace of every article or inproceedings entry listed in --doi_file.
All other lines are written unchanged. The result goes to stdout unless
--out_file is given.`,
	RunE: runPatch,
}

func init() {
	patchCmd.Flags().String("doi_file", "", "key,doi file written by resolve")
	patchCmd.Flags().String("bib", "", "bibliography to patch (default from config patch.bib_file)")
	patchCmd.Flags().String("out_file", "", "patched output (default stdout); must not exist")
	bindFlag(patchCmd, "patch.bib_file", "bib")

	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) error {
	log := observability.WithStage(logger, "patch")

	doiFile, _ := cmd.Flags().GetString("doi_file")
	if err := requireFile("doi_file", doiFile); err != nil {
		return err
	}
	bibFile := cfg.Patch.BibFile
	if err := requireFile("bib", bibFile); err != nil {
		return err
	}
	outFile, _ := cmd.Flags().GetString("out_file")
	if err := checkOutput(outFile); err != nil {
		return err
	}

	df, err := os.Open(doiFile)
	if err != nil {
		return err
	}
	dois, err := patch.ReadDOIFile(df, log)
	df.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", doiFile, err)
	}

	in, err := os.Open(bibFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := createOutput(outFile)
	if err != nil {
		return err
	}
	defer out.Close()

	res, err := patch.Patch(in, out, dois, metrics)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outFile, err)
	}

	for _, key := range res.Missing {
		log.Warn().Str("bibkey", key).Msg("no article or inproceedings entry with this key")
	}
	fmt.Fprintf(os.Stderr, "Patch: %d DOIs inserted, %d keys not found\n", res.Inserted, len(res.Missing))
	return nil
}
