// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmccurley/cryptobib/internal/lookup"
	"github.com/kmccurley/cryptobib/internal/patch"
	"github.com/kmccurley/cryptobib/internal/resolve"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitError},
		{"missing year", fmt.Errorf("resolving: %w", resolve.ErrMissingYear), ExitDataError},
		{"malformed row", fmt.Errorf("dois.csv: %w", patch.ErrMalformedRow), ExitDataError},
		{"missing input", fmt.Errorf("%w: x.json", ErrInputMissing), ExitConfigError},
		{"output exists", fmt.Errorf("%w: out", lookup.ErrOutputExists), ExitConfigError},
		{"explicit", withExit(ExitDataError, errors.New("bad json")), ExitDataError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
	assert.NoError(t, withExit(ExitError, nil))
}

const lookupJSON = `[
  {"i": 0, "bibtex": {"bibkey": "C:BarJacMit08", "entry_type": "inproceedings", "title": "Foo Bar",
    "author": ["Boaz Barak", "Stanislaw Jarecki", "Ilya Mironov"], "year": "2008"},
   "url": "https://api.crossref.org/works?query.bibliographic=Foo+Bar",
   "search": [
     {"DOI": "10.1145/wrong", "prefix": "10.1145", "title": ["Foo Bar"],
      "author": [{"given": "B", "family": "Barak"}, {"given": "S", "family": "Jarecki"}, {"given": "I", "family": "Mironov"}],
      "published-print": {"date-parts": [[2008, 8]]}},
     {"DOI": "10.1007/978-3-540-85174-5_1", "prefix": "10.1007", "title": ["Foo Bar (Extended Abstract)"],
      "author": [{"given": "B", "family": "Barak"}, {"given": "S", "family": "Jarecki"}, {"given": "I", "family": "Mironov"}],
      "published-print": {"date-parts": [[2008, 8]]}}
   ]},
  {"i": 1, "bibtex": {"bibkey": "EC:None09", "entry_type": "inproceedings", "title": "Nothing Found",
    "author": ["A. Nother"], "year": "2009"},
   "url": "", "search": []}
]
`

const cryptoBib = `@InProceedings{C:BarJacMit08,
  author =       "Boaz Barak and Stanislaw Jarecki and Ilya Mironov",
  title =        "Foo Bar",
  year =         2008,
}

@InProceedings{EC:None09,
  author =       "A. Nother",
  title =        "Nothing Found",
  year =         2009,
}
`

// execute runs the CLI with args after resetting every flag, since cobra
// keeps flag values between executions of the same command tree.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			require.NoError(t, sv.Replace(nil))
		} else {
			require.NoError(t, f.Value.Set(f.DefValue))
		}
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestResolveThenPatch(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "bads.json.0.2.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(lookupJSON), 0o644))
	bibFile := filepath.Join(dir, "crypto_db.bib")
	require.NoError(t, os.WriteFile(bibFile, []byte(cryptoBib), 0o644))

	doiFile := filepath.Join(dir, "dois.csv")
	ledgerFile := filepath.Join(dir, "ledger.db")
	secretsDir := filepath.Join(dir, "secrets")

	require.NoError(t, execute(t, "resolve",
		"--secrets_dir", secretsDir,
		"--json_file", jsonFile,
		"--out_file", doiFile,
		"--ledger", ledgerFile,
	))
	data, err := os.ReadFile(doiFile)
	require.NoError(t, err)
	assert.Equal(t, "C:BarJacMit08,10.1007/978-3-540-85174-5_1\n", string(data))

	// A second run refuses to overwrite the output.
	err = execute(t, "resolve", "--secrets_dir", secretsDir, "--json_file", jsonFile, "--out_file", doiFile)
	assert.Equal(t, ExitConfigError, exitCode(err))

	patched := filepath.Join(dir, "patched.bib")
	require.NoError(t, execute(t, "patch",
		"--secrets_dir", secretsDir,
		"--doi_file", doiFile,
		"--bib", bibFile,
		"--out_file", patched,
	))
	out, err := os.ReadFile(patched)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "doi ="))
	assert.Contains(t, string(out), "  year =         2008,\n  doi =          \"10.1007/978-3-540-85174-5_1\",\n}\n")
	assert.Equal(t, len(cryptoBib)+len("  doi =          \"10.1007/978-3-540-85174-5_1\",\n"), len(out))
}

func TestResolveMissingYearWritesNothing(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "bads.json.0.1.json")
	noYear := `[{"i": 0, "bibtex": {"bibkey": "C:NoYear08", "title": "T", "author": ["A"]}, "url": "", "search": []}]`
	require.NoError(t, os.WriteFile(jsonFile, []byte(noYear), 0o644))
	outFile := filepath.Join(dir, "dois.csv")

	err := execute(t, "resolve", "--secrets_dir", filepath.Join(dir, "secrets"), "--json_file", jsonFile, "--out_file", outFile)
	require.Error(t, err)
	assert.Equal(t, ExitDataError, exitCode(err))
	assert.NoFileExists(t, outFile)
}

func TestMissingInput(t *testing.T) {
	dir := t.TempDir()
	err := execute(t, "patch",
		"--secrets_dir", filepath.Join(dir, "secrets"),
		"--doi_file", filepath.Join(dir, "missing.csv"),
		"--bib", filepath.Join(dir, "missing.bib"),
	)
	assert.Equal(t, ExitConfigError, exitCode(err))
}
