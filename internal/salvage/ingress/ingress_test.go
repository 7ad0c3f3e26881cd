package ingress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/storage"
	"github.com/vietddude/salvage/internal/infra/storage/memory"
	"github.com/vietddude/salvage/internal/salvage/events"
	"github.com/vietddude/salvage/internal/salvage/store"
)

type brokenRecordStore struct{}

func (brokenRecordStore) Save(ctx context.Context, rec *domain.FailureRecord) error {
	return errors.New("disk full")
}

func (brokenRecordStore) Get(ctx context.Context, id string) (*domain.FailureRecord, error) {
	return nil, storage.ErrRecordNotFound
}

func (brokenRecordStore) UpdateStatus(ctx context.Context, id string, status domain.RecordStatus) error {
	return nil
}

func newIngress() (*Ingress, *store.History, *events.Bus) {
	h := store.NewHistory(100)
	bus := events.NewBus()
	mem := memory.NewStorage()
	return New(memory.NewRecordRepo(mem), h, bus, nil), h, bus
}

func TestSubmit_BuildsRecord(t *testing.T) {
	ing, h, _ := newIngress()
	ctx := context.Background()

	attempts := []domain.ProcessingAttempt{
		{AttemptNumber: 1, Timestamp: time.Now().Add(-2 * time.Hour), Error: "timeout"},
		{AttemptNumber: 2, Timestamp: time.Now().Add(-time.Hour), Error: "timeout"},
		{AttemptNumber: 3, Timestamp: time.Now(), Error: "timeout"},
	}
	rec, err := ing.Submit(ctx, FailedJob{ID: "job-1", Queue: "moderation"}, errors.New("request timeout"), attempts)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if rec.FailureCount != 3 {
		t.Errorf("expected failure count 3, got %d", rec.FailureCount)
	}
	if !rec.FirstFailedAt.Equal(attempts[0].Timestamp) || !rec.LastFailedAt.Equal(attempts[2].Timestamp) {
		t.Errorf("failure window mismatch: %v .. %v", rec.FirstFailedAt, rec.LastFailedAt)
	}
	if rec.FirstFailedAt.After(rec.LastFailedAt) {
		t.Error("firstFailedAt must be <= lastFailedAt")
	}
	if rec.Status != domain.StatusReceived {
		t.Errorf("expected received status, got %s", rec.Status)
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 history entry, got %d", h.Len())
	}
}

func TestSubmit_PriorityHeuristics(t *testing.T) {
	ing, _, _ := newIngress()
	ctx := context.Background()

	cases := []struct {
		name   string
		job    FailedJob
		reason string
		want   domain.Priority
	}{
		{"explicit priority wins", FailedJob{ID: "a", Queue: "critical-payments", Priority: "low"}, "x", domain.PriorityLow},
		{"critical queue", FailedJob{ID: "b", Queue: "urgent-moderation"}, "x", domain.PriorityCritical},
		{"high queue", FailedJob{ID: "c", Queue: "important-emails"}, "x", domain.PriorityHigh},
		{"payment error", FailedJob{ID: "d", Queue: "jobs"}, "payment gateway rejected", domain.PriorityHigh},
		{"security error", FailedJob{ID: "e", Queue: "jobs"}, "security token expired", domain.PriorityHigh},
		{"default", FailedJob{ID: "f", Queue: "jobs"}, "something broke", domain.PriorityMedium},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, err := ing.Submit(ctx, c.job, errors.New(c.reason), nil)
			if err != nil {
				t.Fatalf("Submit failed: %v", err)
			}
			if rec.Priority != c.want {
				t.Errorf("expected %s, got %s", c.want, rec.Priority)
			}
		})
	}
}

func TestSubmit_TagsDeduplicated(t *testing.T) {
	ing, _, _ := newIngress()
	ctx := context.Background()

	rec, err := ing.Submit(ctx,
		FailedJob{ID: "job-1", Queue: "push", Tags: []string{"connection", "mobile"}},
		errors.New("connection timeout while validating permission"),
		nil,
	)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	want := []string{"connection", "mobile", "timeout", "validation", "permission", "queue:push"}
	if len(rec.Tags) != len(want) {
		t.Fatalf("expected tags %v, got %v", want, rec.Tags)
	}
	for i := range want {
		if rec.Tags[i] != want[i] {
			t.Errorf("tag %d: expected %q, got %q", i, want[i], rec.Tags[i])
		}
	}
}

func TestSubmit_PersistenceErrorSurfaces(t *testing.T) {
	h := store.NewHistory(100)
	ing := New(brokenRecordStore{}, h, events.NewBus(), nil)

	_, err := ing.Submit(context.Background(), FailedJob{ID: "job-1", Queue: "q"}, errors.New("x"), nil)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	var perr *storage.PersistenceError
	if !errors.As(err, &perr) {
		t.Errorf("expected PersistenceError, got %T", err)
	}
	if h.Len() != 0 {
		t.Error("history must not record a job that was never persisted")
	}
}

func TestSubmit_EmitsDeadLetteredBeforeProcessing(t *testing.T) {
	ing, _, bus := newIngress()

	var topics []string
	bus.Subscribe("", func(e domain.Event) { topics = append(topics, e.Topic) })

	if _, err := ing.Submit(context.Background(), FailedJob{ID: "job-1", Queue: "q"}, errors.New("x"), nil); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(topics) != 2 || topics[0] != domain.EventDeadLettered || topics[1] != domain.EventReceived {
		t.Errorf("expected [job:dead-lettered failure:received], got %v", topics)
	}
}

func TestSubmit_Validation(t *testing.T) {
	ing, _, _ := newIngress()
	ctx := context.Background()

	if _, err := ing.Submit(ctx, FailedJob{Queue: "q"}, errors.New("x"), nil); err == nil {
		t.Error("expected error for missing job ID")
	}
	if _, err := ing.Submit(ctx, FailedJob{ID: "a", Queue: "q"}, nil, nil); err == nil {
		t.Error("expected error for nil failure")
	}
}
