// Package store keeps a bounded, append-only history of recent failures.
// It backs the classifier's pattern counting and the statistics reporter.
package store

import (
	"sync"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
)

// DefaultCapacity bounds the history under sustained failure storms.
const DefaultCapacity = 10000

// Entry is the lightweight metadata kept per failure. The classifier
// annotates it with its verdict and the executor with the terminal
// disposition; everything else is append-only.
type Entry struct {
	JobID       string             `json:"job_id"`
	Queue       string             `json:"queue"`
	Priority    domain.Priority    `json:"priority"`
	Category    domain.Category    `json:"category"`
	RootCause   string             `json:"root_cause"`
	Disposition domain.Disposition `json:"disposition"`
	RecordedAt  time.Time          `json:"recorded_at"`
}

// History is a fixed-capacity ring buffer of failure entries. Appends evict
// the oldest entry once the buffer is full. Safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	buf  []Entry
	head int // index of the oldest entry
	size int
}

// NewHistory creates a history bounded to the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]Entry, capacity)}
}

// Append records an entry, evicting the oldest if the buffer is full.
func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = e
		h.size++
		return
	}
	h.buf[h.head] = e
	h.head = (h.head + 1) % len(h.buf)
}

// Annotate sets the classifier verdict on the most recent entry for a job.
func (h *History) Annotate(jobID string, category domain.Category, rootCause string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i, ok := h.indexOf(jobID); ok {
		h.buf[i].Category = category
		h.buf[i].RootCause = rootCause
	}
}

// MarkDisposed sets the terminal disposition on the most recent entry for a
// job. Marking an already-disposed entry overwrites it, so re-processing
// converges instead of compounding.
func (h *History) MarkDisposed(jobID string, d domain.Disposition) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i, ok := h.indexOf(jobID); ok {
		h.buf[i].Disposition = d
	}
}

// indexOf returns the buffer index of the newest entry for jobID.
// Caller must hold the lock.
func (h *History) indexOf(jobID string) (int, bool) {
	for n := h.size - 1; n >= 0; n-- {
		i := (h.head + n) % len(h.buf)
		if h.buf[i].JobID == jobID {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of entries currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, 0, h.size)
	for n := 0; n < h.size; n++ {
		out = append(out, h.buf[(h.head+n)%len(h.buf)])
	}
	return out
}

// CountSimilar counts entries in the same queue and category sharing a root
// cause, excluding the given job.
func (h *History) CountSimilar(queue string, category domain.Category, rootCause, excludeJobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for n := 0; n < h.size; n++ {
		e := h.buf[(h.head+n)%len(h.buf)]
		if e.JobID == excludeJobID {
			continue
		}
		if e.Queue == queue && e.Category == category && e.RootCause == rootCause {
			count++
		}
	}
	return count
}

// CountRecent counts entries in a queue recorded at or after the cutoff,
// excluding the given job.
func (h *History) CountRecent(queue string, since time.Time, excludeJobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for n := 0; n < h.size; n++ {
		e := h.buf[(h.head+n)%len(h.buf)]
		if e.JobID == excludeJobID {
			continue
		}
		if e.Queue == queue && !e.RecordedAt.Before(since) {
			count++
		}
	}
	return count
}
