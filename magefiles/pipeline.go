//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline file locations under work/.
var (
	badsFile    = filepath.Join("work", "bads.json")
	doiFile     = filepath.Join("work", "dois.csv")
	patchedFile = filepath.Join("work", "crypto_db.bib")
	ledgerFile  = filepath.Join("work", "ledger.db")
	metricsFile = filepath.Join("work", "metrics", "doitools.prom")
)

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Detect writes the records with no DOI to work/bads.json.
func Detect() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "detect", "--out_file", badsFile, "--metrics_file", metricsFile)
}

// Lookup queries Crossref for one window of work/bads.json. The window is
// taken from START and NUM_RECORDS.
func Lookup() error {
	mg.Deps(Build, Init)
	start := envOr("START", "0")
	count := envOr("NUM_RECORDS", "10000")
	if _, err := strconv.Atoi(start); err != nil {
		return fmt.Errorf("START: %w", err)
	}
	out := filepath.Join("work", "lookup", fmt.Sprintf("bads.json.%s.%s.json", start, count))
	return sh.RunV(binPath, "lookup",
		"--bads_file", badsFile,
		"--start", start,
		"--num_records", count,
		"--out_file", out,
		"--metrics_file", metricsFile,
	)
}

// Resolve picks accepted DOIs from every lookup file in work/lookup.
func Resolve() error {
	mg.Deps(Build, Init)
	files, err := filepath.Glob(filepath.Join("work", "lookup", "*.json"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no lookup output in work/lookup; run mage lookup first")
	}
	args := []string{"resolve", "--out_file", doiFile, "--ledger", ledgerFile, "--metrics_file", metricsFile}
	for _, f := range files {
		args = append(args, "--json_file", f)
	}
	return sh.RunV(binPath, args...)
}

// Review lists the unmatched records of the latest resolve run.
func Review() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "review", "--ledger", ledgerFile)
}

// Patch writes work/crypto_db.bib with the accepted DOIs inserted.
func Patch() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "patch", "--doi_file", doiFile, "--out_file", patchedFile, "--metrics_file", metricsFile)
}

// Pipeline runs detect, lookup, resolve and patch in order.
func Pipeline() {
	mg.SerialDeps(Detect, Lookup, Resolve, Patch)
}
