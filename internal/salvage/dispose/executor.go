// Package dispose drives an analyzed failure record to exactly one terminal
// disposition: retry, manual review, discard, or escalation. Whatever
// happens, a record never leaves without one of those outcomes on record.
package dispose

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/notify"
	"github.com/vietddude/salvage/internal/infra/queue"
	"github.com/vietddude/salvage/internal/infra/storage"
	"github.com/vietddude/salvage/internal/salvage/events"
	"github.com/vietddude/salvage/internal/salvage/metrics"
	"github.com/vietddude/salvage/internal/salvage/store"
	"github.com/vietddude/salvage/internal/salvage/strategy"
)

// Executor applies a classifier verdict to a failure record.
type Executor struct {
	strategies  *strategy.Registry
	history     *store.History
	records     storage.RecordStore
	reviews     storage.ReviewStore
	escalations storage.EscalationStore
	archive     storage.ArchiveStore
	requeuer    queue.Requeuer
	notifier    notify.Notifier
	bus         *events.Bus
	sink        *metrics.Sink
	log         *slog.Logger
}

// Deps collects the executor's collaborators.
type Deps struct {
	Strategies  *strategy.Registry
	History     *store.History
	Records     storage.RecordStore
	Reviews     storage.ReviewStore
	Escalations storage.EscalationStore
	Archive     storage.ArchiveStore
	Requeuer    queue.Requeuer
	Notifier    notify.Notifier
	Bus         *events.Bus
	Sink        *metrics.Sink
	Log         *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(d Deps) *Executor {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NopNotifier{}
	}
	return &Executor{
		strategies:  d.Strategies,
		history:     d.History,
		records:     d.Records,
		reviews:     d.Reviews,
		escalations: d.Escalations,
		archive:     d.Archive,
		requeuer:    d.Requeuer,
		notifier:    d.Notifier,
		bus:         d.Bus,
		sink:        d.Sink,
		log:         d.Log,
	}
}

// Execute takes an analyzed record to its terminal disposition and records
// the outcome everywhere it needs to be visible: the durable store for the
// chosen disposition, the failure history, the record status, counters and
// the event bus.
func (e *Executor) Execute(ctx context.Context, rec *domain.FailureRecord, analysis domain.FailureAnalysis) (domain.Disposition, error) {
	rec.Status = domain.StatusAnalyzed
	rec.Category = analysis.Category
	e.history.Annotate(rec.OriginalJobID, analysis.Category, analysis.RootCause)
	e.sink.RecordProcessed(analysis.Category)

	var (
		disposition domain.Disposition
		err         error
	)
	switch analysis.Recommendation {
	case domain.RecommendRetry:
		disposition, err = e.retry(ctx, rec, analysis)
	case domain.RecommendDiscard:
		disposition, err = e.discard(ctx, rec, analysis)
	case domain.RecommendEscalate:
		disposition, err = e.escalate(ctx, rec, analysis)
	default:
		disposition, err = e.review(ctx, rec, analysis)
	}
	if err != nil {
		return "", err
	}

	rec.Status = disposition.Status()
	if statusErr := e.records.UpdateStatus(ctx, rec.ID, rec.Status); statusErr != nil {
		// The disposition is already durably recorded; a stale status
		// annotation is tolerable.
		e.log.Warn("failed to annotate record status", "record", rec.ID, "error", statusErr)
	}

	e.history.MarkDisposed(rec.OriginalJobID, disposition)
	e.sink.RecordDisposition(disposition)
	e.publish(disposition, rec, analysis)

	return disposition, nil
}

// retry re-submits the original payload onto the origin queue with the
// computed backoff. A failed re-submission downgrades to manual review
// rather than dropping the job.
func (e *Executor) retry(ctx context.Context, rec *domain.FailureRecord, analysis domain.FailureAnalysis) (domain.Disposition, error) {
	strat := e.strategies.Select(analysis, rec.Priority)
	delay := strategy.Delay(strat, rec.FailureCount)

	task := queue.RetryTask{
		OriginalJobID: rec.OriginalJobID,
		Queue:         rec.OriginalQueue,
		Payload:       rec.Payload,
		Options:       rec.Options,
		AttemptNumber: rec.FailureCount + 1,
		Strategy:      strat.Name,
		Analysis:      analysis,
		Priority:      rec.Priority.SchedulingWeight(),
		Delay:         delay,
		RetryAt:       time.Now().Add(delay),
	}

	if err := e.requeuer.Requeue(ctx, task); err != nil {
		e.log.Warn("retry re-submission failed, flagging for manual review",
			"job", rec.OriginalJobID, "queue", rec.OriginalQueue, "error", err)
		e.sink.RecordRetrySubmission(false)
		return e.review(ctx, rec, analysis)
	}

	e.sink.RecordRetrySubmission(true)
	e.log.Info("retry scheduled",
		"job", rec.OriginalJobID, "queue", rec.OriginalQueue,
		"strategy", strat.Name, "delay", delay, "attempt", task.AttemptNumber)
	return domain.DispositionRetried, nil
}

func (e *Executor) review(ctx context.Context, rec *domain.FailureRecord, analysis domain.FailureAnalysis) (domain.Disposition, error) {
	entry := domain.ReviewEntry{
		ID:            uuid.New().String(),
		JobID:         rec.OriginalJobID,
		Queue:         rec.OriginalQueue,
		Payload:       rec.Payload,
		FailureReason: rec.FailureReason,
		Analysis:      analysis,
		Priority:      rec.Priority,
		FlaggedAt:     time.Now(),
	}
	if err := e.reviews.Add(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to flag job %s for review: %w", rec.OriginalJobID, err)
	}
	e.log.Info("flagged for manual review", "job", rec.OriginalJobID, "queue", rec.OriginalQueue, "root_cause", analysis.RootCause)
	return domain.DispositionManualReview, nil
}

// discard archives the full record before anything is dropped.
func (e *Executor) discard(ctx context.Context, rec *domain.FailureRecord, analysis domain.FailureAnalysis) (domain.Disposition, error) {
	archived := domain.ArchivedRecord{
		ID:          uuid.New().String(),
		Record:      *rec,
		Analysis:    analysis,
		DiscardedAt: time.Now(),
	}
	if err := e.archive.Add(ctx, archived); err != nil {
		return "", fmt.Errorf("failed to archive job %s: %w", rec.OriginalJobID, err)
	}
	e.log.Info("discarded with archive", "job", rec.OriginalJobID, "queue", rec.OriginalQueue, "root_cause", analysis.RootCause)
	return domain.DispositionDiscarded, nil
}

// escalate records the escalation durably, then fires the advisory alert.
// A failed notification is logged and does not change the disposition.
func (e *Executor) escalate(ctx context.Context, rec *domain.FailureRecord, analysis domain.FailureAnalysis) (domain.Disposition, error) {
	entry := domain.EscalationEntry{
		ID:          uuid.New().String(),
		JobID:       rec.OriginalJobID,
		Queue:       rec.OriginalQueue,
		Reason:      analysis.RootCause,
		Analysis:    analysis,
		Priority:    rec.Priority,
		EscalatedAt: time.Now(),
	}

	if err := e.notifier.Notify(ctx, entry); err != nil {
		e.log.Warn("escalation notification failed", "job", rec.OriginalJobID, "error", err)
	} else {
		entry.Notified = true
	}

	if err := e.escalations.Add(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to record escalation for job %s: %w", rec.OriginalJobID, err)
	}
	e.log.Warn("escalated to operators",
		"job", rec.OriginalJobID, "queue", rec.OriginalQueue,
		"root_cause", analysis.RootCause, "notified", entry.Notified)
	return domain.DispositionEscalated, nil
}

func (e *Executor) publish(d domain.Disposition, rec *domain.FailureRecord, analysis domain.FailureAnalysis) {
	if e.bus == nil {
		return
	}
	topic := map[domain.Disposition]string{
		domain.DispositionRetried:      domain.EventRetried,
		domain.DispositionManualReview: domain.EventFlaggedReview,
		domain.DispositionDiscarded:    domain.EventDiscarded,
		domain.DispositionEscalated:    domain.EventEscalated,
	}[d]
	e.bus.Publish(domain.Event{
		Topic:    topic,
		JobID:    rec.OriginalJobID,
		Queue:    rec.OriginalQueue,
		Analysis: &analysis,
		At:       time.Now(),
	})
}
