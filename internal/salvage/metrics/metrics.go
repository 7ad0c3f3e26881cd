// Package metrics owns the salvage pipeline counters. Collectors are built
// against an injected registerer so multiple engines (and tests) do not share
// process-wide state.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vietddude/salvage/internal/core/domain"
)

// Sink records pipeline counters and exposes an in-process snapshot.
type Sink struct {
	processed  prometheus.Counter
	dispatched *prometheus.CounterVec
	byCategory *prometheus.CounterVec
	retryFate  *prometheus.CounterVec
	duration   prometheus.Histogram

	// Atomic mirrors for GetMetrics snapshots.
	nProcessed    atomic.Int64
	nRetried      atomic.Int64
	nReviewed     atomic.Int64
	nDiscarded    atomic.Int64
	nEscalated    atomic.Int64
	nRetryOK      atomic.Int64
	nRetryFailed  atomic.Int64
	categoryMu    sync.Mutex
	categoryCount map[domain.Category]int64
}

// Snapshot is a point-in-time copy of the running counters.
type Snapshot struct {
	Processed        int64                     `json:"processed"`
	Retried          int64                     `json:"retried"`
	ManualReview     int64                     `json:"manual_review"`
	Discarded        int64                     `json:"discarded"`
	Escalated        int64                     `json:"escalated"`
	ByCategory       map[domain.Category]int64 `json:"by_category"`
	RetrySubmitted   int64                     `json:"retry_submitted"`
	RetryDowngraded  int64                     `json:"retry_downgraded"`
	RetrySuccessRate float64                   `json:"retry_success_rate"`
}

// NewSink creates a sink registered against reg. A nil reg keeps the
// collectors unregistered, which is what tests want.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salvage_failures_processed_total",
			Help: "Total number of dead-lettered jobs processed",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salvage_dispositions_total",
			Help: "Terminal dispositions by outcome",
		}, []string{"disposition"}),
		byCategory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salvage_failures_by_category_total",
			Help: "Classified failures by category",
		}, []string{"category"}),
		retryFate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salvage_retry_submissions_total",
			Help: "Retry re-submissions by result",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salvage_processing_duration_seconds",
			Help:    "End-to-end processing duration per failure record",
			Buckets: prometheus.DefBuckets,
		}),
		categoryCount: make(map[domain.Category]int64),
	}
	if reg != nil {
		reg.MustRegister(s.processed, s.dispatched, s.byCategory, s.retryFate, s.duration)
	}
	return s
}

// RecordProcessed counts one record entering the pipeline, with its
// classified category.
func (s *Sink) RecordProcessed(category domain.Category) {
	s.processed.Inc()
	s.byCategory.WithLabelValues(string(category)).Inc()
	s.nProcessed.Add(1)

	s.categoryMu.Lock()
	s.categoryCount[category]++
	s.categoryMu.Unlock()
}

// RecordDisposition counts a terminal disposition.
func (s *Sink) RecordDisposition(d domain.Disposition) {
	s.dispatched.WithLabelValues(string(d)).Inc()
	switch d {
	case domain.DispositionRetried:
		s.nRetried.Add(1)
	case domain.DispositionManualReview:
		s.nReviewed.Add(1)
	case domain.DispositionDiscarded:
		s.nDiscarded.Add(1)
	case domain.DispositionEscalated:
		s.nEscalated.Add(1)
	}
}

// RecordRetrySubmission counts the fate of a retry re-submission.
func (s *Sink) RecordRetrySubmission(ok bool) {
	if ok {
		s.retryFate.WithLabelValues("submitted").Inc()
		s.nRetryOK.Add(1)
		return
	}
	s.retryFate.WithLabelValues("downgraded").Inc()
	s.nRetryFailed.Add(1)
}

// ObserveDuration records the end-to-end processing time of one record.
func (s *Sink) ObserveDuration(seconds float64) {
	s.duration.Observe(seconds)
}

// Snapshot returns a copy of the running counters.
func (s *Sink) Snapshot() Snapshot {
	s.categoryMu.Lock()
	byCat := make(map[domain.Category]int64, len(s.categoryCount))
	for k, v := range s.categoryCount {
		byCat[k] = v
	}
	s.categoryMu.Unlock()

	snap := Snapshot{
		Processed:       s.nProcessed.Load(),
		Retried:         s.nRetried.Load(),
		ManualReview:    s.nReviewed.Load(),
		Discarded:       s.nDiscarded.Load(),
		Escalated:       s.nEscalated.Load(),
		ByCategory:      byCat,
		RetrySubmitted:  s.nRetryOK.Load(),
		RetryDowngraded: s.nRetryFailed.Load(),
	}
	if total := snap.RetrySubmitted + snap.RetryDowngraded; total > 0 {
		snap.RetrySuccessRate = float64(snap.RetrySubmitted) / float64(total)
	}
	return snap
}
