// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve decides, for each looked-up record, whether one of the
// Crossref candidates is the same publication.
//
// Candidates are examined in rank order. A candidate is rejected when its
// publication year differs from the record's, when its normalized title is
// too far from the record's, or when its DOI registrant does not publish the
// record's venue. An author-count mismatch is only reported as a warning.
package resolve

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kmccurley/cryptobib/internal/doi"
	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// ErrMissingYear is returned when a record has no year. It aborts the whole
// run: a yearless record is a corpus error, not a lookup miss.
var ErrMissingYear = errors.New("record has no year")

// Resolver applies one set of matching rules.
type Resolver struct {
	rules    types.MatchRules
	norm     *Normalizer
	prefixes map[string]map[string]bool
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// Report is the outcome of resolving a batch.
type Report struct {
	// Decisions holds one entry per examined key, in order of first appearance.
	Decisions []types.Decision

	// Skipped counts records that already carried a DOI.
	Skipped int

	// Duplicates counts lookups of a key that was already decided.
	Duplicates int

	Accepted  int
	Unmatched int
}

// New builds a Resolver. Zero fields of rules take their defaults, so a
// MaxTitleDistance of 0 means 0.08, not exact matches only.
func New(rules types.MatchRules, logger zerolog.Logger, m *observability.Metrics) (*Resolver, error) {
	rules = WithDefaults(rules)
	switch rules.Strategy {
	case types.StrategyFirst, types.StrategyClosest:
	default:
		return nil, fmt.Errorf("unknown match strategy %q", rules.Strategy)
	}
	if rules.MaxTitleDistance <= 0 || rules.MaxTitleDistance > 1 {
		return nil, fmt.Errorf("max title distance %v out of range (0, 1]", rules.MaxTitleDistance)
	}

	norm, err := NewNormalizer(rules.StripPhrases)
	if err != nil {
		return nil, err
	}

	prefixes := make(map[string]map[string]bool, len(rules.VenuePrefixes))
	for venue, list := range rules.VenuePrefixes {
		set := make(map[string]bool, len(list))
		for _, p := range list {
			set[p] = true
		}
		prefixes[venue] = set
	}

	return &Resolver{
		rules:    rules,
		norm:     norm,
		prefixes: prefixes,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Rules returns the effective matching rules.
func (r *Resolver) Rules() types.MatchRules { return r.rules }

// Normalizer returns the title normalizer in use.
func (r *Resolver) Normalizer() *Normalizer { return r.norm }

// Resolve decides every result in order. Records that already carry a DOI
// are skipped. A record without a year stops the run with ErrMissingYear
// and no report.
//
// A key looked up more than once, as happens when overlapping windows are
// resolved together, yields one decision: the first accepted one, or the
// first unmatched one when no lookup of the key matched.
func (r *Resolver) Resolve(results []types.LookupResult) (Report, error) {
	var rep Report
	index := make(map[string]int, len(results))
	for _, lr := range results {
		if lr.Record.DOI != "" {
			rep.Skipped++
			r.metrics.RecordDecision(types.Decision{Key: lr.Record.Key}, true)
			continue
		}
		d, err := r.Decide(lr)
		if err != nil {
			return Report{}, err
		}
		i, seen := index[d.Key]
		if !seen {
			index[d.Key] = len(rep.Decisions)
			rep.Decisions = append(rep.Decisions, d)
			continue
		}

		rep.Duplicates++
		prev := rep.Decisions[i]
		log := observability.WithRecord(r.logger, d.Key)
		switch {
		case !prev.Accepted() && d.Accepted():
			rep.Decisions[i] = d
			log.Warn().Str("doi", d.DOI).Msg("key looked up more than once; a later lookup matched")
		case prev.Accepted() && d.Accepted() && !doi.Equal(prev.DOI, d.DOI):
			log.Warn().Str("kept", prev.DOI).Str("dropped", d.DOI).Msg("key looked up more than once with different matches; keeping the first")
		default:
			log.Debug().Msg("key looked up more than once")
		}
	}

	for _, d := range rep.Decisions {
		r.metrics.RecordDecision(d, false)
		if d.Accepted() {
			rep.Accepted++
		} else {
			rep.Unmatched++
		}
	}
	return rep, nil
}

// Decide examines the candidates of one record.
func (r *Resolver) Decide(lr types.LookupResult) (types.Decision, error) {
	rec := lr.Record
	log := observability.WithRecord(r.logger, rec.Key)
	if !rec.HasYear() {
		return types.Decision{}, fmt.Errorf("%w: %s", ErrMissingYear, rec.Key)
	}

	d := types.Decision{Key: rec.Key, Title: rec.Title}
	title := r.norm.Normalize(rec.Title)
	year := strings.TrimSpace(rec.Year)

	best, bestDist := -1, math.Inf(1)
	for rank, c := range lr.Candidates {
		if len(c.Author) != len(rec.Authors) {
			w := fmt.Sprintf("candidate %d (%s): %d authors, record has %d", rank, c.DOI, len(c.Author), len(rec.Authors))
			d.Warnings = append(d.Warnings, w)
			log.Debug().Str("doi", c.DOI).Int("want", len(rec.Authors)).Int("got", len(c.Author)).Msg("author count mismatch")
		}

		dist, rej := r.check(rank, c, title, year, rec)
		if rej != nil {
			d.Rejections = append(d.Rejections, *rej)
			log.Debug().Int("rank", rank).Str("doi", c.DOI).Str("reason", string(rej.Reason)).Msg(rej.Detail)
			continue
		}

		if dist < bestDist {
			best, bestDist = rank, dist
		}
		if r.rules.Strategy == types.StrategyFirst {
			break
		}
		if dist == 0 {
			// Nothing later can be strictly closer.
			break
		}
	}

	if best < 0 {
		log.Warn().Str("title", rec.Title).Int("candidates", len(lr.Candidates)).Msg("no match")
		return d, nil
	}
	d.DOI = lr.Candidates[best].DOI
	d.Distance = bestDist
	log.Info().Str("doi", d.DOI).Float64("distance", bestDist).Int("rank", best).Msg("match")
	return d, nil
}

// check applies the year, title and venue-prefix gates to one candidate. It
// returns the title distance when every gate passes.
func (r *Resolver) check(rank int, c types.SearchCandidate, title, year string, rec types.BibRecord) (float64, *types.Rejection) {
	reject := func(reason types.RejectReason, detail string) (float64, *types.Rejection) {
		return 0, &types.Rejection{Rank: rank, DOI: c.DOI, Reason: reason, Detail: detail}
	}

	// An absent candidate year places no constraint.
	if y, ok := c.Year(); ok && strconv.Itoa(y) != year {
		return reject(types.RejectYear, fmt.Sprintf("year %d, record has %s", y, year))
	}

	dist, ok := r.TitleMatch(title, c)
	if !ok {
		return reject(types.RejectTitle, fmt.Sprintf("title distance %.3f", dist))
	}

	if venue := rec.Venue(r.rules.VenueSeparator); venue != "" {
		if allowed, known := r.prefixes[venue]; known && !allowed[c.Prefix] {
			return reject(types.RejectPrefix, fmt.Sprintf("prefix %s not used by %s", c.Prefix, venue))
		}
	}
	return dist, nil
}

// TitleMatch compares a normalized record title with a candidate's title,
// and when that fails and the candidate has a subtitle, with title and
// subtitle concatenated. It returns the smaller distance and whether it is
// under the threshold.
func (r *Resolver) TitleMatch(normTitle string, c types.SearchCandidate) (float64, bool) {
	dist := RelativeDistance(normTitle, r.norm.Normalize(html.UnescapeString(c.PrimaryTitle())))
	if dist < r.rules.MaxTitleDistance {
		return dist, true
	}
	if sub := c.PrimarySubtitle(); sub != "" {
		full := r.norm.Normalize(html.UnescapeString(c.PrimaryTitle() + sub))
		if d := RelativeDistance(normTitle, full); d < dist {
			dist = d
		}
	}
	return dist, dist < r.rules.MaxTitleDistance
}

// WriteAccepted writes one "key,doi" line per accepted decision and returns
// the number of lines written.
func WriteAccepted(w io.Writer, decisions []types.Decision) (int, error) {
	n := 0
	for _, d := range decisions {
		if !d.Accepted() {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s,%s\n", d.Key, d.DOI); err != nil {
			return n, fmt.Errorf("writing %s: %w", d.Key, err)
		}
		n++
	}
	return n, nil
}

// PrintSummary writes a human-readable summary of a report, listing the
// unmatched records for manual review.
func PrintSummary(w io.Writer, rep Report) {
	fmt.Fprintf(w, "\nResolve: %d accepted, %d unmatched, %d skipped (already had a DOI)\n",
		rep.Accepted, rep.Unmatched, rep.Skipped)
	if rep.Duplicates > 0 {
		fmt.Fprintf(w, "  %d repeated lookups of an already decided key ignored\n", rep.Duplicates)
	}
	for _, d := range rep.Decisions {
		if d.Accepted() {
			continue
		}
		fmt.Fprintf(w, "  NO MATCH %s: %s\n", d.Key, d.Title)
	}
}
