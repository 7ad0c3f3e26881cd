// Package memory provides in-memory implementations of the storage
// contracts, used by default and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/storage"
)

// maxEntries bounds the operator-facing lists so a failure storm cannot grow
// memory without limit; the oldest entries are evicted first.
const maxEntries = 1000

// Storage is the shared backing state of the in-memory repositories.
type Storage struct {
	mu          sync.RWMutex
	records     map[string]*domain.FailureRecord
	reviews     []domain.ReviewEntry
	escalations []domain.EscalationEntry
	archive     []domain.ArchivedRecord
}

// NewStorage creates an empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{records: make(map[string]*domain.FailureRecord)}
}

// -----------------------------------------------------------------------------
// Record store
// -----------------------------------------------------------------------------

type RecordRepo struct {
	store *Storage
}

func NewRecordRepo(store *Storage) *RecordRepo {
	return &RecordRepo{store: store}
}

func (r *RecordRepo) Save(ctx context.Context, rec *domain.FailureRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *rec
	r.store.records[rec.ID] = &cp
	return nil
}

func (r *RecordRepo) Get(ctx context.Context, id string) (*domain.FailureRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *RecordRepo) UpdateStatus(ctx context.Context, id string, status domain.RecordStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	rec.Status = status
	return nil
}

// -----------------------------------------------------------------------------
// Review store
// -----------------------------------------------------------------------------

type ReviewRepo struct {
	store *Storage
}

func NewReviewRepo(store *Storage) *ReviewRepo {
	return &ReviewRepo{store: store}
}

func (r *ReviewRepo) Add(ctx context.Context, entry domain.ReviewEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.reviews = append(r.store.reviews, entry)
	if len(r.store.reviews) > maxEntries {
		r.store.reviews = r.store.reviews[len(r.store.reviews)-maxEntries:]
	}
	return nil
}

func (r *ReviewRepo) List(ctx context.Context) ([]domain.ReviewEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.ReviewEntry, len(r.store.reviews))
	copy(out, r.store.reviews)
	return out, nil
}

func (r *ReviewRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.reviews[:0]
	removed := 0
	for _, e := range r.store.reviews {
		if e.FlaggedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.store.reviews = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Escalation store
// -----------------------------------------------------------------------------

type EscalationRepo struct {
	store *Storage
}

func NewEscalationRepo(store *Storage) *EscalationRepo {
	return &EscalationRepo{store: store}
}

func (r *EscalationRepo) Add(ctx context.Context, entry domain.EscalationEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.escalations = append(r.store.escalations, entry)
	if len(r.store.escalations) > maxEntries {
		r.store.escalations = r.store.escalations[len(r.store.escalations)-maxEntries:]
	}
	return nil
}

func (r *EscalationRepo) List(ctx context.Context) ([]domain.EscalationEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.EscalationEntry, len(r.store.escalations))
	copy(out, r.store.escalations)
	return out, nil
}

func (r *EscalationRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.escalations[:0]
	removed := 0
	for _, e := range r.store.escalations {
		if e.EscalatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.store.escalations = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Archive store
// -----------------------------------------------------------------------------

type ArchiveRepo struct {
	store *Storage
}

func NewArchiveRepo(store *Storage) *ArchiveRepo {
	return &ArchiveRepo{store: store}
}

func (r *ArchiveRepo) Add(ctx context.Context, rec domain.ArchivedRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.archive = append(r.store.archive, rec)
	if len(r.store.archive) > maxEntries {
		r.store.archive = r.store.archive[len(r.store.archive)-maxEntries:]
	}
	return nil
}

func (r *ArchiveRepo) List(ctx context.Context) ([]domain.ArchivedRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.ArchivedRecord, len(r.store.archive))
	copy(out, r.store.archive)
	return out, nil
}

func (r *ArchiveRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.archive[:0]
	removed := 0
	for _, e := range r.store.archive {
		if e.DiscardedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.store.archive = kept
	return removed, nil
}
