package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeRetry is the asynq task type of re-submitted jobs. The hosting
// worker unwraps the RetryTask envelope and dispatches the original payload.
const TaskTypeRetry = "salvage:retry"

// AsynqRequeuer re-submits jobs through an asynq client. The task lands on
// the origin queue with the computed backoff applied via ProcessIn; asynq's
// own retry machinery is disabled so the salvage pipeline stays the single
// authority on retries.
type AsynqRequeuer struct {
	client *asynq.Client
}

// NewAsynqRequeuer creates a requeuer backed by the given Redis connection.
func NewAsynqRequeuer(redisOpt asynq.RedisClientOpt) *AsynqRequeuer {
	return &AsynqRequeuer{client: asynq.NewClient(redisOpt)}
}

// Requeue enqueues the retry task onto the origin queue.
func (r *AsynqRequeuer) Requeue(ctx context.Context, task RetryTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return &SubmissionError{Queue: task.Queue, JobID: task.OriginalJobID, Err: fmt.Errorf("marshal retry task: %w", err)}
	}

	t := asynq.NewTask(TaskTypeRetry, payload)
	_, err = r.client.EnqueueContext(ctx, t,
		asynq.Queue(task.Queue),
		asynq.ProcessIn(task.Delay),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return &SubmissionError{Queue: task.Queue, JobID: task.OriginalJobID, Err: err}
	}
	return nil
}

// Close closes the underlying asynq client.
func (r *AsynqRequeuer) Close() error {
	return r.client.Close()
}
