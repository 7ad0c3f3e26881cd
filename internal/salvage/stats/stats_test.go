package stats

import (
	"testing"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/salvage/store"
)

func TestReport_Windows(t *testing.T) {
	h := store.NewHistory(100)
	now := time.Now()

	h.Append(store.Entry{JobID: "a", Queue: "push", Category: domain.CategoryTransient, RootCause: "Network connection failure", Disposition: domain.DispositionRetried, RecordedAt: now.Add(-30 * time.Minute)})
	h.Append(store.Entry{JobID: "b", Queue: "push", Category: domain.CategoryTransient, RootCause: "Network connection failure", Disposition: domain.DispositionRetried, RecordedAt: now.Add(-2 * time.Hour)})
	h.Append(store.Entry{JobID: "c", Queue: "moderation", Category: domain.CategoryPermanent, RootCause: "Payload failed validation", Disposition: domain.DispositionManualReview, RecordedAt: now.Add(-3 * 24 * time.Hour)})

	r := NewReporter(h)

	hour, err := r.Report(RangeHour)
	if err != nil {
		t.Fatalf("Report(hour) failed: %v", err)
	}
	if hour.Total != 1 || hour.ByQueue["push"] != 1 {
		t.Errorf("unexpected hourly report: %+v", hour)
	}

	day, err := r.Report(RangeDay)
	if err != nil {
		t.Fatalf("Report(day) failed: %v", err)
	}
	if day.Total != 2 || day.ByCategory[domain.CategoryTransient] != 2 {
		t.Errorf("unexpected daily report: %+v", day)
	}

	week, err := r.Report(RangeWeek)
	if err != nil {
		t.Fatalf("Report(week) failed: %v", err)
	}
	if week.Total != 3 {
		t.Errorf("expected 3 in weekly report, got %d", week.Total)
	}
	if week.ByRootCause["Payload failed validation"] != 1 {
		t.Errorf("unexpected weekly root causes: %+v", week.ByRootCause)
	}
	if week.ByDisposition[domain.DispositionRetried] != 2 {
		t.Errorf("unexpected weekly dispositions: %+v", week.ByDisposition)
	}
}

func TestReport_UnknownRange(t *testing.T) {
	r := NewReporter(store.NewHistory(10))
	if _, err := r.Report(TimeRange("month")); err == nil {
		t.Error("expected error for unknown range")
	}
}

func TestReport_NoSideEffects(t *testing.T) {
	h := store.NewHistory(10)
	h.Append(store.Entry{JobID: "a", Queue: "q", RecordedAt: time.Now()})

	r := NewReporter(h)
	r.Report(RangeDay)
	r.Report(RangeDay)

	if h.Len() != 1 {
		t.Errorf("report mutated the store: %d entries", h.Len())
	}
}
