// Package queue re-submits salvaged jobs onto their origin queues.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
)

// RetryTask is the envelope placed back on the origin queue. The original
// payload and options pass through unchanged; everything else is retry
// metadata for the consuming worker.
type RetryTask struct {
	OriginalJobID string                  `json:"original_job_id"`
	Queue         string                  `json:"queue"`
	Payload       []byte                  `json:"payload,omitempty"`
	Options       []byte                  `json:"options,omitempty"`
	AttemptNumber int                     `json:"attempt_number"`
	Strategy      string                  `json:"strategy"`
	Analysis      domain.FailureAnalysis  `json:"analysis"`
	Priority      int                     `json:"priority"`
	Delay         time.Duration           `json:"delay"`
	RetryAt       time.Time               `json:"retry_at"`
}

// SubmissionError reports a failed re-submission. The executor downgrades the
// record to manual review instead of dropping it.
type SubmissionError struct {
	Queue string
	JobID string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("re-submission of job %s to queue %s failed: %v", e.JobID, e.Queue, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Requeuer schedules a retry task onto the job's origin queue.
type Requeuer interface {
	Requeue(ctx context.Context, task RetryTask) error
}
