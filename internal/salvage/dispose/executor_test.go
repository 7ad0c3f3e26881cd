package dispose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/queue"
	"github.com/vietddude/salvage/internal/infra/storage/memory"
	"github.com/vietddude/salvage/internal/salvage/events"
	"github.com/vietddude/salvage/internal/salvage/metrics"
	"github.com/vietddude/salvage/internal/salvage/store"
	"github.com/vietddude/salvage/internal/salvage/strategy"
)

// =============================================================================
// Mocks
// =============================================================================

type failingRequeuer struct{}

func (failingRequeuer) Requeue(ctx context.Context, task queue.RetryTask) error {
	return &queue.SubmissionError{Queue: task.Queue, JobID: task.OriginalJobID, Err: errors.New("redis down")}
}

type failingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *failingNotifier) Notify(ctx context.Context, entry domain.EscalationEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return errors.New("webhook unreachable")
}

type fixture struct {
	executor *Executor
	requeuer *queue.MemoryRequeuer
	mem      *memory.Storage
	history  *store.History
	sink     *metrics.Sink
	bus      *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStorage()
	history := store.NewHistory(100)
	requeuer := queue.NewMemoryRequeuer()
	sink := metrics.NewSink(nil)
	bus := events.NewBus()

	exec := NewExecutor(Deps{
		Strategies:  strategy.NewRegistry(),
		History:     history,
		Records:     memory.NewRecordRepo(mem),
		Reviews:     memory.NewReviewRepo(mem),
		Escalations: memory.NewEscalationRepo(mem),
		Archive:     memory.NewArchiveRepo(mem),
		Requeuer:    requeuer,
		Bus:         bus,
		Sink:        sink,
	})
	return &fixture{executor: exec, requeuer: requeuer, mem: mem, history: history, sink: sink, bus: bus}
}

func testRecord(id string) *domain.FailureRecord {
	return &domain.FailureRecord{
		ID:            id,
		OriginalJobID: id,
		OriginalQueue: "push",
		Payload:       []byte(`{"msg":"hi"}`),
		FailureReason: "ECONNREFUSED",
		FailureCount:  3,
		Priority:      domain.PriorityMedium,
		Status:        domain.StatusReceived,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestExecute_Retry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := testRecord("job-1")
	memory.NewRecordRepo(f.mem).Save(ctx, rec)
	f.history.Append(store.Entry{JobID: "job-1", Queue: "push"})

	analysis := domain.FailureAnalysis{
		RootCause:      "Network connection failure",
		Category:       domain.CategoryTransient,
		Recommendation: domain.RecommendRetry,
		Confidence:     0.8,
	}

	d, err := f.executor.Execute(ctx, rec, analysis)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if d != domain.DispositionRetried {
		t.Fatalf("expected retried, got %s", d)
	}

	tasks := f.requeuer.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 requeued task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Queue != "push" {
		t.Errorf("retry must target the origin queue, got %q", task.Queue)
	}
	if task.Strategy != "exponential" {
		t.Errorf("expected exponential strategy for non-critical transient, got %q", task.Strategy)
	}
	if task.AttemptNumber != 4 {
		t.Errorf("expected attempt 4, got %d", task.AttemptNumber)
	}
	if task.Priority != 50 {
		t.Errorf("expected scheduling weight 50 for medium, got %d", task.Priority)
	}
	if string(task.Payload) != `{"msg":"hi"}` {
		t.Errorf("payload must pass through unchanged, got %s", task.Payload)
	}
}

func TestExecute_CriticalTransientUsesAggressive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := testRecord("job-2")
	rec.Priority = domain.PriorityCritical
	memory.NewRecordRepo(f.mem).Save(ctx, rec)

	analysis := domain.FailureAnalysis{
		Category:       domain.CategoryTransient,
		Recommendation: domain.RecommendRetry,
		Confidence:     0.9,
	}
	if _, err := f.executor.Execute(ctx, rec, analysis); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	task := f.requeuer.Tasks()[0]
	if task.Strategy != "aggressive" {
		t.Errorf("expected aggressive strategy, got %q", task.Strategy)
	}
	if task.Priority != 100 {
		t.Errorf("expected scheduling weight 100, got %d", task.Priority)
	}
}

func TestExecute_RetrySubmissionFailureDowngrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mem := f.mem
	exec := NewExecutor(Deps{
		Strategies:  strategy.NewRegistry(),
		History:     f.history,
		Records:     memory.NewRecordRepo(mem),
		Reviews:     memory.NewReviewRepo(mem),
		Escalations: memory.NewEscalationRepo(mem),
		Archive:     memory.NewArchiveRepo(mem),
		Requeuer:    failingRequeuer{},
		Sink:        f.sink,
	})

	rec := testRecord("job-3")
	memory.NewRecordRepo(mem).Save(ctx, rec)

	d, err := exec.Execute(ctx, rec, domain.FailureAnalysis{
		Category:       domain.CategoryTransient,
		Recommendation: domain.RecommendRetry,
		Confidence:     0.8,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if d != domain.DispositionManualReview {
		t.Fatalf("expected manual_review downgrade, got %s", d)
	}

	reviews, _ := memory.NewReviewRepo(mem).List(ctx)
	if len(reviews) != 1 || reviews[0].JobID != "job-3" {
		t.Errorf("job not in review queue: %+v", reviews)
	}

	snap := f.sink.Snapshot()
	if snap.RetryDowngraded != 1 {
		t.Errorf("expected 1 downgraded retry, got %d", snap.RetryDowngraded)
	}
}

func TestExecute_ManualFix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := testRecord("job-4")
	rec.FailureReason = "validation failed: bad schema"
	memory.NewRecordRepo(f.mem).Save(ctx, rec)

	d, err := f.executor.Execute(ctx, rec, domain.FailureAnalysis{
		RootCause:      "Payload failed validation",
		Category:       domain.CategoryPermanent,
		Recommendation: domain.RecommendManualFix,
		Confidence:     0.9,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if d != domain.DispositionManualReview {
		t.Fatalf("expected manual_review, got %s", d)
	}

	reviews, _ := memory.NewReviewRepo(f.mem).List(ctx)
	if len(reviews) != 1 || reviews[0].FailureReason != "validation failed: bad schema" {
		t.Errorf("unexpected review entries: %+v", reviews)
	}
}

func TestExecute_DiscardArchivesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := testRecord("job-5")
	memory.NewRecordRepo(f.mem).Save(ctx, rec)

	d, err := f.executor.Execute(ctx, rec, domain.FailureAnalysis{
		RootCause:      "Referenced resource is gone",
		Category:       domain.CategoryPermanent,
		Recommendation: domain.RecommendDiscard,
		Confidence:     0.75,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if d != domain.DispositionDiscarded {
		t.Fatalf("expected discarded, got %s", d)
	}

	archived, _ := memory.NewArchiveRepo(f.mem).List(ctx)
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived record, got %d", len(archived))
	}
	if archived[0].Record.OriginalJobID != "job-5" {
		t.Errorf("archive holds wrong record: %+v", archived[0])
	}
	if archived[0].DiscardedAt.IsZero() {
		t.Error("archive missing audit timestamp")
	}
}

func TestExecute_EscalateSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	notifier := &failingNotifier{}
	exec := NewExecutor(Deps{
		Strategies:  strategy.NewRegistry(),
		History:     f.history,
		Records:     memory.NewRecordRepo(f.mem),
		Reviews:     memory.NewReviewRepo(f.mem),
		Escalations: memory.NewEscalationRepo(f.mem),
		Archive:     memory.NewArchiveRepo(f.mem),
		Requeuer:    f.requeuer,
		Notifier:    notifier,
		Sink:        f.sink,
	})

	rec := testRecord("job-6")
	memory.NewRecordRepo(f.mem).Save(ctx, rec)

	d, err := exec.Execute(ctx, rec, domain.FailureAnalysis{
		RootCause:      "Network connection failure",
		Category:       domain.CategoryTransient,
		Recommendation: domain.RecommendEscalate,
		Confidence:     0.9,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if d != domain.DispositionEscalated {
		t.Fatalf("expected escalated despite failed notification, got %s", d)
	}
	if notifier.calls != 1 {
		t.Errorf("expected 1 notification attempt, got %d", notifier.calls)
	}

	escalations, _ := memory.NewEscalationRepo(f.mem).List(ctx)
	if len(escalations) != 1 {
		t.Fatalf("expected 1 escalation, got %d", len(escalations))
	}
	if escalations[0].Notified {
		t.Error("entry must record that notification failed")
	}
}

func TestExecute_PublishesEventsAndCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var topics []string
	f.bus.Subscribe("", func(e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, e.Topic)
	})

	rec := testRecord("job-7")
	memory.NewRecordRepo(f.mem).Save(ctx, rec)
	f.executor.Execute(ctx, rec, domain.FailureAnalysis{
		Category:       domain.CategoryTransient,
		Recommendation: domain.RecommendRetry,
		Confidence:     0.8,
	})

	mu.Lock()
	defer mu.Unlock()
	if len(topics) != 1 || topics[0] != domain.EventRetried {
		t.Errorf("expected [failure:retried], got %v", topics)
	}

	snap := f.sink.Snapshot()
	if snap.Processed != 1 || snap.Retried != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.ByCategory[domain.CategoryTransient] != 1 {
		t.Errorf("unexpected category counters: %+v", snap.ByCategory)
	}
}

func TestExecute_HistoryAnnotated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.history.Append(store.Entry{JobID: "job-8", Queue: "push", RecordedAt: time.Now()})
	rec := testRecord("job-8")
	memory.NewRecordRepo(f.mem).Save(ctx, rec)

	f.executor.Execute(ctx, rec, domain.FailureAnalysis{
		RootCause:      "Network connection failure",
		Category:       domain.CategoryTransient,
		Recommendation: domain.RecommendRetry,
		Confidence:     0.8,
	})

	entries := f.history.Entries()
	if entries[0].RootCause != "Network connection failure" {
		t.Errorf("history not annotated: %+v", entries[0])
	}
	if entries[0].Disposition != domain.DispositionRetried {
		t.Errorf("history missing disposition: %+v", entries[0])
	}
}
