package domain

import (
	"encoding/json"
	"time"
)

// Priority ranks how urgently a dead-lettered job should be handled.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// SchedulingWeight maps a priority to the numeric weight used when a job is
// re-submitted to its origin queue.
func (p Priority) SchedulingWeight() int {
	switch p {
	case PriorityCritical:
		return 100
	case PriorityHigh:
		return 75
	case PriorityLow:
		return 25
	default:
		return 50
	}
}

// Category is the classifier's verdict on the nature of a failure.
type Category string

const (
	CategoryTransient Category = "transient"
	CategoryPermanent Category = "permanent"
	CategoryUnknown   Category = "unknown"
)

// RecordStatus tracks a failure record through the processing state machine.
type RecordStatus string

const (
	StatusReceived       RecordStatus = "received"
	StatusAnalyzed       RecordStatus = "analyzed"
	StatusRetryScheduled RecordStatus = "retry_scheduled"
	StatusManualReview   RecordStatus = "manual_review"
	StatusDiscarded      RecordStatus = "discarded"
	StatusEscalated      RecordStatus = "escalated"
)

// Disposition is the terminal outcome of processing a failure record.
type Disposition string

const (
	DispositionRetried      Disposition = "retried"
	DispositionManualReview Disposition = "manual_review"
	DispositionDiscarded    Disposition = "discarded"
	DispositionEscalated    Disposition = "escalated"
)

// Status returns the record status corresponding to a terminal disposition.
func (d Disposition) Status() RecordStatus {
	switch d {
	case DispositionRetried:
		return StatusRetryScheduled
	case DispositionDiscarded:
		return StatusDiscarded
	case DispositionEscalated:
		return StatusEscalated
	default:
		return StatusManualReview
	}
}

// ProcessingAttempt is one prior execution of the job before it dead-lettered.
type ProcessingAttempt struct {
	AttemptNumber int       `json:"attempt_number"`
	Timestamp     time.Time `json:"timestamp"`
	Error         string    `json:"error"`
	DurationMs    int64     `json:"duration_ms"`
	WorkerID      string    `json:"worker_id,omitempty"`
}

// FailureRecord is the unit of work of the salvage pipeline: one per
// dead-lettered job. Payload and Options are opaque and passed through
// unchanged when the job is retried.
type FailureRecord struct {
	ID            string              `json:"id"`
	OriginalJobID string              `json:"original_job_id"`
	OriginalQueue string              `json:"original_queue"`
	Payload       json.RawMessage     `json:"payload,omitempty"`
	Options       json.RawMessage     `json:"options,omitempty"`
	FailureReason string              `json:"failure_reason"`
	StackTrace    string              `json:"stack_trace,omitempty"`
	FailureCount  int                 `json:"failure_count"`
	FirstFailedAt time.Time           `json:"first_failed_at"`
	LastFailedAt  time.Time           `json:"last_failed_at"`
	History       []ProcessingAttempt `json:"processing_history,omitempty"`
	Tags          []string            `json:"tags,omitempty"`
	Priority      Priority            `json:"priority"`
	Category      Category            `json:"category"`
	Status        RecordStatus        `json:"status"`
	ReceivedAt    time.Time           `json:"received_at"`
}

// ReviewEntry is a failure flagged for a human operator.
type ReviewEntry struct {
	ID            string          `json:"id"`
	JobID         string          `json:"job_id"`
	Queue         string          `json:"queue"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	FailureReason string          `json:"failure_reason"`
	Analysis      FailureAnalysis `json:"analysis"`
	Priority      Priority        `json:"priority"`
	FlaggedAt     time.Time       `json:"flagged_at"`
}

// EscalationEntry records a failure handed to operators with an alert.
// The entry itself is the source of truth; the notification is advisory.
type EscalationEntry struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	Queue       string          `json:"queue"`
	Reason      string          `json:"reason"`
	Analysis    FailureAnalysis `json:"analysis"`
	Priority    Priority        `json:"priority"`
	EscalatedAt time.Time       `json:"escalated_at"`
	Notified    bool            `json:"notified"`
}

// ArchivedRecord is a discarded failure kept for forensic inspection.
// Records are never deleted without being archived first.
type ArchivedRecord struct {
	ID          string          `json:"id"`
	Record      FailureRecord   `json:"record"`
	Analysis    FailureAnalysis `json:"analysis"`
	DiscardedAt time.Time       `json:"discarded_at"`
}
