package domain

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestFailureRecord_JSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	rec := FailureRecord{
		ID:            "rec-1",
		OriginalJobID: "job-42",
		OriginalQueue: "orders",
		Payload:       json.RawMessage(`{"order_id":42}`),
		Options:       json.RawMessage(`{"attempts":3}`),
		FailureReason: "connect ECONNREFUSED 10.0.0.1:5432",
		StackTrace:    "at process (worker.go:12)",
		FailureCount:  3,
		FirstFailedAt: now.Add(-time.Hour),
		LastFailedAt:  now,
		History: []ProcessingAttempt{
			{AttemptNumber: 1, Timestamp: now.Add(-time.Hour), Error: "ECONNREFUSED", DurationMs: 120, WorkerID: "w-1"},
			{AttemptNumber: 2, Timestamp: now, Error: "ECONNREFUSED", DurationMs: 95},
		},
		Tags:       []string{"connection", "queue:orders"},
		Priority:   PriorityHigh,
		Category:   CategoryTransient,
		Status:     StatusAnalyzed,
		ReceivedAt: now,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got FailureRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(rec, got) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestPriority_SchedulingWeight(t *testing.T) {
	cases := []struct {
		priority Priority
		want     int
	}{
		{PriorityCritical, 100},
		{PriorityHigh, 75},
		{PriorityMedium, 50},
		{PriorityLow, 25},
		{Priority("bogus"), 50},
	}
	for _, tc := range cases {
		if got := tc.priority.SchedulingWeight(); got != tc.want {
			t.Errorf("SchedulingWeight(%s) = %d, want %d", tc.priority, got, tc.want)
		}
	}
}

func TestDisposition_Status(t *testing.T) {
	cases := map[Disposition]RecordStatus{
		DispositionRetried:      StatusRetryScheduled,
		DispositionManualReview: StatusManualReview,
		DispositionDiscarded:    StatusDiscarded,
		DispositionEscalated:    StatusEscalated,
	}
	for d, want := range cases {
		if got := d.Status(); got != want {
			t.Errorf("Status(%s) = %s, want %s", d, got, want)
		}
	}
}
