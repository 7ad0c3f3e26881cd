package domain

import "time"

// Event topics published for external subscribers.
const (
	EventDeadLettered    = "job:dead-lettered"
	EventReceived        = "failure:received"
	EventRetried         = "failure:retried"
	EventFlaggedReview   = "failure:flagged_for_review"
	EventDiscarded       = "failure:discarded"
	EventEscalated       = "failure:escalated"
)

// Event is a pipeline notification carrying the originating job identity and,
// once classification has run, the analysis that drove the disposition.
type Event struct {
	Topic    string           `json:"topic"`
	JobID    string           `json:"job_id"`
	Queue    string           `json:"queue"`
	Analysis *FailureAnalysis `json:"analysis,omitempty"`
	At       time.Time        `json:"at"`
}
