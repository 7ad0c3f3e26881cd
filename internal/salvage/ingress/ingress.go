// Package ingress turns a failed job into a failure record and hands it to
// the processing pipeline. This is the one place where persistence failure is
// loud: a swallowed error here silently loses the job.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/storage"
	"github.com/vietddude/salvage/internal/salvage/events"
	"github.com/vietddude/salvage/internal/salvage/store"
)

// FailedJob describes the dead-lettered job as reported by its producer.
// Payload and Options are opaque and pass through unchanged.
type FailedJob struct {
	ID       string          `json:"id"`
	Queue    string          `json:"queue"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Options  json.RawMessage `json:"options,omitempty"`
	Priority string          `json:"priority,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// Ingress builds and persists failure records.
type Ingress struct {
	records storage.RecordStore
	history *store.History
	bus     *events.Bus
	log     *slog.Logger
}

// New creates an ingress.
func New(records storage.RecordStore, history *store.History, bus *events.Bus, log *slog.Logger) *Ingress {
	if log == nil {
		log = slog.Default()
	}
	return &Ingress{records: records, history: history, bus: bus, log: log}
}

// Submit constructs a failure record from the failed job, persists it, and
// appends its metadata to the failure history. The job:dead-lettered event is
// emitted before processing so urgent failures stay observable even if later
// stages fail. A persistence error is returned to the caller, who must not
// consider the job handled.
func (i *Ingress) Submit(ctx context.Context, job FailedJob, failure error, attempts []domain.ProcessingAttempt) (*domain.FailureRecord, error) {
	if job.ID == "" {
		return nil, fmt.Errorf("failed job is missing an ID")
	}
	if failure == nil {
		return nil, fmt.Errorf("job %s: failure error is required", job.ID)
	}

	rec := i.build(job, failure, attempts)

	if err := i.records.Save(ctx, rec); err != nil {
		return nil, &storage.PersistenceError{Op: "ingress save", Err: err}
	}
	i.history.Append(store.Entry{
		JobID:      rec.OriginalJobID,
		Queue:      rec.OriginalQueue,
		Priority:   rec.Priority,
		RecordedAt: rec.ReceivedAt,
	})

	if i.bus != nil {
		i.bus.Publish(domain.Event{
			Topic: domain.EventDeadLettered,
			JobID: rec.OriginalJobID,
			Queue: rec.OriginalQueue,
			At:    rec.ReceivedAt,
		})
		i.bus.Publish(domain.Event{
			Topic: domain.EventReceived,
			JobID: rec.OriginalJobID,
			Queue: rec.OriginalQueue,
			At:    rec.ReceivedAt,
		})
	}

	i.log.Info("dead-lettered job received",
		"job", rec.OriginalJobID, "queue", rec.OriginalQueue,
		"priority", rec.Priority, "failures", rec.FailureCount)
	return rec, nil
}

func (i *Ingress) build(job FailedJob, failure error, attempts []domain.ProcessingAttempt) *domain.FailureRecord {
	now := time.Now()

	first, last := now, now
	if len(attempts) > 0 {
		first = attempts[0].Timestamp
		last = attempts[len(attempts)-1].Timestamp
	}
	count := len(attempts)
	if count == 0 {
		count = 1
	}

	reason := failure.Error()
	return &domain.FailureRecord{
		ID:            uuid.New().String(),
		OriginalJobID: job.ID,
		OriginalQueue: job.Queue,
		Payload:       job.Payload,
		Options:       job.Options,
		FailureReason: reason,
		StackTrace:    stackTrace(failure),
		FailureCount:  count,
		FirstFailedAt: first,
		LastFailedAt:  last,
		History:       attempts,
		Tags:          deriveTags(job, reason),
		Priority:      derivePriority(job, reason),
		Status:        domain.StatusReceived,
		ReceivedAt:    now,
	}
}

// stackTracer is implemented by errors that carry a stack trace.
type stackTracer interface {
	StackTrace() string
}

func stackTrace(err error) string {
	if st, ok := err.(stackTracer); ok {
		return st.StackTrace()
	}
	return ""
}

// derivePriority computes the record priority: the job's explicit priority if
// present, else keyword heuristics on the queue name, else on the error text,
// else medium.
func derivePriority(job FailedJob, reason string) domain.Priority {
	switch domain.Priority(strings.ToLower(job.Priority)) {
	case domain.PriorityLow:
		return domain.PriorityLow
	case domain.PriorityMedium:
		return domain.PriorityMedium
	case domain.PriorityHigh:
		return domain.PriorityHigh
	case domain.PriorityCritical:
		return domain.PriorityCritical
	}

	queue := strings.ToLower(job.Queue)
	if strings.Contains(queue, "critical") || strings.Contains(queue, "urgent") {
		return domain.PriorityCritical
	}
	if strings.Contains(queue, "high") || strings.Contains(queue, "important") {
		return domain.PriorityHigh
	}

	text := strings.ToLower(reason)
	if strings.Contains(text, "payment") || strings.Contains(text, "security") {
		return domain.PriorityHigh
	}

	return domain.PriorityMedium
}

// deriveTags merges job-supplied tags with keywords scanned from the error
// text and a queue marker tag, deduplicated in first-seen order.
func deriveTags(job FailedJob, reason string) []string {
	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, t := range job.Tags {
		add(t)
	}

	text := strings.ToLower(reason)
	for _, kw := range []string{"timeout", "connection", "validation", "permission"} {
		if strings.Contains(text, kw) {
			add(kw)
		}
	}

	add("queue:" + job.Queue)
	return tags
}
