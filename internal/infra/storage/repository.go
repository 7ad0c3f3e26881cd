// Package storage defines the persistence contracts of the salvage pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
)

// ErrRecordNotFound is returned when a failure record doesn't exist.
var ErrRecordNotFound = errors.New("failure record not found")

// PersistenceError wraps a failed durable write. It is always surfaced to the
// caller: a swallowed persistence error here means a dead-lettered job
// disappears entirely.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RecordStore persists full failure records by ID.
type RecordStore interface {
	// Save persists a record, overwriting any previous version.
	Save(ctx context.Context, rec *domain.FailureRecord) error

	// Get retrieves a record by ID. Returns ErrRecordNotFound if absent.
	Get(ctx context.Context, id string) (*domain.FailureRecord, error)

	// UpdateStatus annotates a persisted record with its current status.
	UpdateStatus(ctx context.Context, id string, status domain.RecordStatus) error
}

// ReviewStore holds failures awaiting a human operator.
type ReviewStore interface {
	// Add appends a review entry.
	Add(ctx context.Context, entry domain.ReviewEntry) error

	// List returns current review entries, oldest first.
	List(ctx context.Context) ([]domain.ReviewEntry, error)

	// Prune removes entries flagged before the cutoff, returning how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// EscalationStore holds failures escalated to operators.
type EscalationStore interface {
	// Add appends an escalation entry.
	Add(ctx context.Context, entry domain.EscalationEntry) error

	// List returns current escalations, oldest first.
	List(ctx context.Context) ([]domain.EscalationEntry, error)

	// Prune removes entries escalated before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// ArchiveStore holds discarded records for forensic inspection. A record is
// never dropped without being archived first.
type ArchiveStore interface {
	// Add archives a discarded record.
	Add(ctx context.Context, rec domain.ArchivedRecord) error

	// List returns archived records, oldest first.
	List(ctx context.Context) ([]domain.ArchivedRecord, error)

	// Prune removes records discarded before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}
