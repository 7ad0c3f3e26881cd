package queue

import (
	"context"
	"sync"
)

// MemoryRequeuer collects retry tasks in memory. Used when no queue backend
// is configured, and in tests.
type MemoryRequeuer struct {
	mu    sync.Mutex
	tasks []RetryTask
}

// NewMemoryRequeuer creates an empty in-memory requeuer.
func NewMemoryRequeuer() *MemoryRequeuer {
	return &MemoryRequeuer{}
}

// Requeue records the task.
func (r *MemoryRequeuer) Requeue(ctx context.Context, task RetryTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

// Tasks returns a copy of the recorded tasks.
func (r *MemoryRequeuer) Tasks() []RetryTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RetryTask, len(r.tasks))
	copy(out, r.tasks)
	return out
}
