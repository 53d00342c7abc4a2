// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup searches Crossref for each record missing a DOI and
// streams the (record, candidates) pairs to disk.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmccurley/cryptobib/internal/bib"
	"github.com/kmccurley/cryptobib/internal/crossref"
	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// progressEvery controls how often a progress line is logged.
const progressEvery = 10

// ErrBadWindow is returned when the requested window does not overlap the
// input.
var ErrBadWindow = errors.New("start offset out of range")

// Searcher runs one bibliographic query and returns up to k candidates.
type Searcher interface {
	Search(ctx context.Context, q crossref.Query, k int) (crossref.Result, error)
}

// Options selects the records to search and the result count.
type Options struct {
	Start      int
	NumRecords int
	NumResults int
}

// Summary reports what a run did.
type Summary struct {
	Records    int
	Candidates int
	Empty      int
}

// Window clips [start, start+num) to a slice of length n. A start beyond
// the end of the input is an error; a window running past it is shortened.
func Window(n, start, num int) (lo, hi int, err error) {
	if start < 0 || num < 0 || (start > 0 && start >= n) {
		return 0, 0, fmt.Errorf("%w: start %d, count %d, %d records", ErrBadWindow, start, num, n)
	}
	hi = start + num
	if hi > n {
		hi = n
	}
	return start, hi, nil
}

// BuildQuery turns a record into a Crossref query: the LaTeX-decoded title
// and the comma-joined decoded author names.
func BuildQuery(r types.BibRecord) crossref.Query {
	authors := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		authors = append(authors, bib.DecodeLaTeX(a))
	}
	return crossref.Query{
		Bibliographic: bib.DecodeLaTeX(r.Title),
		Author:        strings.Join(authors, ", "),
	}
}

// Run searches every record in the window, in order, and writes one
// LookupResult per record through w as soon as it is known. A search
// failure aborts the run; results written so far stay on disk.
func Run(ctx context.Context, records []types.BibRecord, s Searcher, opts Options, w *Writer, logger zerolog.Logger, m *observability.Metrics) (Summary, error) {
	var sum Summary
	if opts.NumResults <= 0 {
		return sum, fmt.Errorf("num_results must be positive, got %d", opts.NumResults)
	}
	lo, hi, err := Window(len(records), opts.Start, opts.NumRecords)
	if err != nil {
		return sum, err
	}

	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r := records[i]
		if (i-lo)%progressEvery == 0 {
			logger.Info().Int("record", i).Int("end", hi).Msg("lookup progress")
		}

		start := time.Now()
		res, err := s.Search(ctx, BuildQuery(r), opts.NumResults)
		if err != nil {
			return sum, fmt.Errorf("searching %s (record %d): %w", r.Key, i, err)
		}
		m.RecordLookup(len(res.Candidates), time.Since(start).Seconds())
		if res.Candidates == nil {
			res.Candidates = []types.SearchCandidate{}
		}

		if err := w.Write(types.LookupResult{
			Index:      i,
			Record:     r,
			QueryURL:   res.URL,
			Candidates: res.Candidates,
		}); err != nil {
			return sum, err
		}

		sum.Records++
		sum.Candidates += len(res.Candidates)
		if len(res.Candidates) == 0 {
			sum.Empty++
			log := observability.WithRecord(logger, r.Key)
			log.Debug().Msg("no candidates")
		}
	}
	return sum, nil
}

// PrintSummary writes a human-readable run summary.
func PrintSummary(w io.Writer, sum Summary) {
	fmt.Fprintf(w, "\nLookup: %d records searched, %d candidates kept, %d with no results\n",
		sum.Records, sum.Candidates, sum.Empty)
}
