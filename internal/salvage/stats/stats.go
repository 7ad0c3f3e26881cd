// Package stats aggregates the failure history for operational dashboards.
// Reports are computed on demand in one pass over the store and have no side
// effects.
package stats

import (
	"fmt"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/salvage/store"
)

// TimeRange selects the statistics window.
type TimeRange string

const (
	RangeHour TimeRange = "hour"
	RangeDay  TimeRange = "day"
	RangeWeek TimeRange = "week"
)

// Duration returns the window length for the range.
func (r TimeRange) Duration() (time.Duration, error) {
	switch r {
	case RangeHour:
		return time.Hour, nil
	case RangeDay:
		return 24 * time.Hour, nil
	case RangeWeek:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time range %q", r)
	}
}

// Report is an aggregated view of failures within a window.
type Report struct {
	Range         TimeRange                      `json:"range"`
	Since         time.Time                      `json:"since"`
	Total         int                            `json:"total"`
	ByCategory    map[domain.Category]int        `json:"by_category"`
	ByQueue       map[string]int                 `json:"by_queue"`
	ByRootCause   map[string]int                 `json:"by_root_cause"`
	ByDisposition map[domain.Disposition]int     `json:"by_disposition"`
}

// Reporter computes reports over a failure history.
type Reporter struct {
	history *store.History
}

// NewReporter creates a reporter bound to a history.
func NewReporter(history *store.History) *Reporter {
	return &Reporter{history: history}
}

// Report aggregates entries recorded within the window ending now.
func (r *Reporter) Report(tr TimeRange) (Report, error) {
	window, err := tr.Duration()
	if err != nil {
		return Report{}, err
	}
	since := time.Now().Add(-window)

	rep := Report{
		Range:         tr,
		Since:         since,
		ByCategory:    make(map[domain.Category]int),
		ByQueue:       make(map[string]int),
		ByRootCause:   make(map[string]int),
		ByDisposition: make(map[domain.Disposition]int),
	}

	for _, e := range r.history.Entries() {
		if e.RecordedAt.Before(since) {
			continue
		}
		rep.Total++
		if e.Category != "" {
			rep.ByCategory[e.Category]++
		}
		rep.ByQueue[e.Queue]++
		if e.RootCause != "" {
			rep.ByRootCause[e.RootCause]++
		}
		if e.Disposition != "" {
			rep.ByDisposition[e.Disposition]++
		}
	}

	return rep, nil
}
