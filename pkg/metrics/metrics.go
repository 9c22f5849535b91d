// Package metrics defines the Prometheus collectors used by the n-gram
// counter and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a counting run.
type Metrics struct {
	DocumentsTotal        prometheus.Counter
	DocumentsSkippedTotal prometheus.Counter
	NgramsExtractedTotal  prometheus.Counter
	ChunksWrittenTotal    prometheus.Counter
	ChunkRecords          prometheus.Histogram
	MergeRoundsTotal      prometheus.Counter
	MergeGroupsTotal      *prometheus.CounterVec
	MergeDuration         prometheus.Histogram
	LiveChunks            prometheus.Gauge
	NgramsRetained        prometheus.Gauge
	StageDuration         *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Passing nil
// registers with the Prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocumentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ngram_documents_total",
				Help: "Total documents read from the source.",
			},
		),
		DocumentsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ngram_documents_skipped_total",
				Help: "Documents rejected as malformed and skipped.",
			},
		),
		NgramsExtractedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ngram_occurrences_total",
				Help: "Total n-gram occurrences extracted from documents.",
			},
		),
		ChunksWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ngram_chunks_written_total",
				Help: "Total sorted chunk files written, including merge outputs.",
			},
		),
		ChunkRecords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngram_chunk_records",
				Help:    "Number of records per chunk file written by the accumulator.",
				Buckets: prometheus.ExponentialBuckets(16, 4, 10),
			},
		),
		MergeRoundsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ngram_merge_rounds_total",
				Help: "Total external merge rounds executed.",
			},
		),
		MergeGroupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ngram_merge_groups_total",
				Help: "Merge groups by status (merged, carried, error).",
			},
			[]string{"status"},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ngram_merge_group_duration_seconds",
				Help:    "Time to merge one group of chunk files.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		LiveChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ngram_live_chunks",
				Help: "Chunk files currently live in the cache directory.",
			},
		),
		NgramsRetained: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ngram_top_retained",
				Help: "N-grams retained by the top-K selector, including ties.",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ngram_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds.",
				Buckets: []float64{0.01, 0.1, 1, 10, 60, 300, 1800, 7200},
			},
			[]string{"stage"},
		),
	}

	reg.MustRegister(
		m.DocumentsTotal,
		m.DocumentsSkippedTotal,
		m.NgramsExtractedTotal,
		m.ChunksWrittenTotal,
		m.ChunkRecords,
		m.MergeRoundsTotal,
		m.MergeGroupsTotal,
		m.MergeDuration,
		m.LiveChunks,
		m.NgramsRetained,
		m.StageDuration,
	)

	return m
}

// NewNop returns collectors registered with a private registry, for callers
// and tests that do not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
