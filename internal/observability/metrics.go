// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kmccurley/cryptobib/pkg/types"
)

// Metrics holds the counters of one batch run. Metrics live on a private
// registry and are written out as a node-exporter textfile when the run
// ends. All Record methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// RecordsDetected counts bibliography entries found without a DOI.
	RecordsDetected prometheus.Counter

	// CrossrefRequests counts Crossref HTTP requests by status code.
	CrossrefRequests *prometheus.CounterVec

	// LookupDuration observes the time spent searching for one record.
	LookupDuration prometheus.Histogram

	// CandidatesKept observes the number of retained candidates per record.
	CandidatesKept prometheus.Histogram

	// Decisions counts resolver outcomes: accepted, unmatched or skipped.
	Decisions *prometheus.CounterVec

	// Rejections counts rejected candidates by failed gate.
	Rejections *prometheus.CounterVec

	// Warnings counts advisory findings attached to decisions.
	Warnings prometheus.Counter

	// DOIsInserted counts doi lines written by the patcher.
	DOIsInserted prometheus.Counter
}

// NewMetrics creates a Metrics instance on a fresh registry. The namespace
// prefixes every metric name.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RecordsDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_detected_total",
			Help:      "Bibliography entries without a DOI",
		}),
		CrossrefRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossref_requests_total",
			Help:      "Crossref works requests by HTTP status",
		}, []string{"status"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Time spent searching Crossref for one record",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		CandidatesKept: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_kept",
			Help:      "Candidates retained per record after filtering",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Resolver decisions by outcome",
		}, []string{"outcome"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected candidates by failed check",
		}, []string{"reason"}),
		Warnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Advisory warnings attached to decisions",
		}),
		DOIsInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dois_inserted_total",
			Help:      "doi fields inserted into the bibliography",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordDetected records n records found by the detect stage.
func (m *Metrics) RecordDetected(n int) {
	if m == nil {
		return
	}
	m.RecordsDetected.Add(float64(n))
}

// RecordCrossrefRequest records one Crossref response status.
func (m *Metrics) RecordCrossrefRequest(status int) {
	if m == nil {
		return
	}
	m.CrossrefRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordLookup records the search for one record.
func (m *Metrics) RecordLookup(kept int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CandidatesKept.Observe(float64(kept))
	m.LookupDuration.Observe(durationSeconds)
}

// RecordDecision records a resolver outcome with its rejections and warnings.
func (m *Metrics) RecordDecision(d types.Decision, skipped bool) {
	if m == nil {
		return
	}
	switch {
	case skipped:
		m.Decisions.WithLabelValues("skipped").Inc()
	case d.Accepted():
		m.Decisions.WithLabelValues("accepted").Inc()
	default:
		m.Decisions.WithLabelValues("unmatched").Inc()
	}
	for _, r := range d.Rejections {
		m.Rejections.WithLabelValues(string(r.Reason)).Inc()
	}
	m.Warnings.Add(float64(len(d.Warnings)))
}

// RecordInserted records n doi lines written by the patcher.
func (m *Metrics) RecordInserted(n int) {
	if m == nil {
		return
	}
	m.DOIsInserted.Add(float64(n))
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// for collection by the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
