// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmccurley/cryptobib/internal/crossref"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// --- fake searcher ---

type fakeSearcher struct {
	queries []crossref.Query
	results map[string][]types.SearchCandidate
	failOn  string
}

func (f *fakeSearcher) Search(_ context.Context, q crossref.Query, k int) (crossref.Result, error) {
	f.queries = append(f.queries, q)
	if q.Bibliographic == f.failOn {
		return crossref.Result{}, errors.New("boom")
	}
	cands := f.results[q.Bibliographic]
	if len(cands) > k {
		cands = cands[:k]
	}
	return crossref.Result{Candidates: cands, URL: "https://api.crossref.org/works?q=" + q.Bibliographic}, nil
}

func testRecords() []types.BibRecord {
	return []types.BibRecord{
		{Key: "C:A08", EntryType: types.EntryInproceedings, Title: "Alpha", Authors: []string{"A. One"}, Year: "2008"},
		{Key: "C:B08", EntryType: types.EntryInproceedings, Title: `B{\'e}ta`, Authors: []string{"B. Two", `C. Thr{\'e}e`}, Year: "2008"},
		{Key: "JC:C09", EntryType: types.EntryArticle, Title: "Gamma", Authors: []string{"D. Four"}, Year: "2009"},
	}
}

// --- Window ---

func TestWindow(t *testing.T) {
	tests := []struct {
		name           string
		n, start, num  int
		wantLo, wantHi int
		wantErr        bool
	}{
		{"full", 10, 0, 10, 0, 10, false},
		{"middle", 10, 3, 4, 3, 7, false},
		{"clipped", 10, 8, 5, 8, 10, false},
		{"empty input", 0, 0, 5, 0, 0, false},
		{"start past end", 10, 10, 1, 0, 0, true},
		{"negative start", 10, -1, 1, 0, 0, true},
		{"negative count", 10, 0, -1, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := Window(tt.n, tt.start, tt.num)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadWindow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
		})
	}
}

// --- BuildQuery ---

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(testRecords()[1])
	assert.Equal(t, "Béta", q.Bibliographic)
	assert.Equal(t, "B. Two, C. Thrée", q.Author)
}

// --- Run ---

func TestRunWritesWindowInOrder(t *testing.T) {
	s := &fakeSearcher{results: map[string][]types.SearchCandidate{
		"Béta": {
			{DOI: "10.1007/1", Title: []string{"Beta"}},
			{DOI: "10.1007/2", Title: []string{"Beta 2"}},
			{DOI: "10.1007/3", Title: []string{"Beta 3"}},
		},
	}}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	sum, err := Run(context.Background(), testRecords(), s, Options{Start: 1, NumRecords: 5, NumResults: 2}, w, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, Summary{Records: 2, Candidates: 2, Empty: 1}, sum)
	require.Len(t, s.queries, 2)

	results, err := ReadResults(&buf)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, "C:B08", results[0].Record.Key)
	assert.Len(t, results[0].Candidates, 2)
	assert.Contains(t, results[0].QueryURL, "api.crossref.org")

	assert.Equal(t, 2, results[1].Index)
	assert.NotNil(t, results[1].Candidates)
	assert.Empty(t, results[1].Candidates)
}

func TestRunLogsRecordsWithoutCandidates(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	records := testRecords()
	_, err := Run(context.Background(), records[2:3], &fakeSearcher{}, Options{NumRecords: 1, NumResults: 2}, w, logger, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Contains(t, logs.String(), `"bibkey":"`+records[2].Key+`"`)
	assert.Contains(t, logs.String(), "no candidates")
}

func TestRunAbortsOnSearchFailure(t *testing.T) {
	s := &fakeSearcher{failOn: "Béta"}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	sum, err := Run(context.Background(), testRecords(), s, Options{Start: 0, NumRecords: 3, NumResults: 1}, w, zerolog.Nop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C:B08")
	assert.Equal(t, 1, sum.Records)

	// The first record was flushed before the failure.
	results, err := ReadResults(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrTruncated)
	require.Len(t, results, 1)
	assert.Equal(t, "C:A08", results[0].Record.Key)
}

func TestRunRejectsBadOptions(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	_, err := Run(context.Background(), testRecords(), &fakeSearcher{}, Options{NumRecords: 1}, w, zerolog.Nop(), nil)
	assert.Error(t, err)

	_, err = Run(context.Background(), testRecords(), &fakeSearcher{}, Options{Start: 7, NumRecords: 1, NumResults: 1}, w, zerolog.Nop(), nil)
	assert.ErrorIs(t, err, ErrBadWindow)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testRecords(), &fakeSearcher{}, Options{NumRecords: 3, NumResults: 1}, NewWriter(&bytes.Buffer{}), zerolog.Nop(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{Records: 3, Candidates: 7, Empty: 1})
	assert.Contains(t, buf.String(), "3 records searched, 7 candidates kept, 1 with no results")
}

// --- Writer / ReadResults ---

func TestWriterEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())
	assert.Equal(t, "[\n]\n", buf.String())

	var v []any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	assert.Empty(t, v)
}

func TestWriterProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(types.LookupResult{Index: i, Record: types.BibRecord{Key: "k"}, Candidates: []types.SearchCandidate{}}))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Count())

	var v []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	require.Len(t, v, 3)
	assert.Contains(t, v[0], "i")
	assert.Contains(t, v[0], "bibtex")
	assert.Contains(t, v[0], "url")
	assert.Contains(t, v[0], "search")
}

func TestReadResultsKeepsCandidateJSON(t *testing.T) {
	in := `[{"i":0,"bibtex":{"bibkey":"C:A08","entry_type":"inproceedings","title":"T","author":["A"],"year":"2008"},
	"url":"u","search":[{"DOI":"10.1007/x","prefix":"10.1007","title":["T"],"author":[{"given":"A","family":"B"}],
	"published-print":{"date-parts":[[2008,8]]},"container-title":["CRYPTO"]}]}]`

	results, err := ReadResults(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, results, 1)
	c := results[0].Candidates[0]
	year, ok := c.Year()
	assert.True(t, ok)
	assert.Equal(t, 2008, year)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), "container-title")
}

func TestReadResultsErrors(t *testing.T) {
	_, err := ReadResults(strings.NewReader(`{"i":0}`))
	assert.Error(t, err)

	_, err = ReadResults(strings.NewReader(``))
	assert.Error(t, err)

	_, err = ReadResults(strings.NewReader(`[{"i":"x"}]`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTruncated)
}

func TestReadFilesMergesAndReportsTruncation(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "bads.json.0.1.json")
	b := filepath.Join(dir, "bads.json.1.1.json")
	require.NoError(t, os.WriteFile(a, []byte(`[{"i":0,"bibtex":{"bibkey":"A"},"url":"","search":[]}]`), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(`[{"i":1,"bibtex":{"bibkey":"B"},"url":"","search":[]}`), 0o644))

	results, truncated, err := ReadFiles(a, b)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Record.Key)
	assert.Equal(t, "B", results[1].Record.Key)
	assert.Equal(t, []string{b}, truncated)

	_, _, err = ReadFiles(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestOutputPathAndCreateExclusive(t *testing.T) {
	dir := t.TempDir()
	path := OutputPath(filepath.Join(dir, "bads.json"), 100, 50)
	assert.Equal(t, filepath.Join(dir, "bads.json.100.50.json"), path)

	f, err := CreateExclusive(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = CreateExclusive(path)
	assert.ErrorIs(t, err, ErrOutputExists)
}
