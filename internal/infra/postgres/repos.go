package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/storage"
)

// -----------------------------------------------------------------------------
// Review store
// -----------------------------------------------------------------------------

// ReviewRepo implements storage.ReviewStore using PostgreSQL.
type ReviewRepo struct {
	db *DB
}

// NewReviewRepo creates a PostgreSQL review repository.
func NewReviewRepo(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

func (r *ReviewRepo) Add(ctx context.Context, entry domain.ReviewEntry) error {
	analysis, err := json.Marshal(entry.Analysis)
	if err != nil {
		return &storage.PersistenceError{Op: "review marshal", Err: err}
	}

	query := `
		INSERT INTO manual_review (id, job_id, queue, payload, failure_reason, analysis, priority, flagged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.JobID, entry.Queue, []byte(entry.Payload),
		entry.FailureReason, analysis, string(entry.Priority), entry.FlaggedAt,
	)
	if err != nil {
		return &storage.PersistenceError{Op: "review insert", Err: err}
	}
	return nil
}

func (r *ReviewRepo) List(ctx context.Context) ([]domain.ReviewEntry, error) {
	query := `
		SELECT id, job_id, queue, payload, failure_reason, analysis, priority, flagged_at
		FROM manual_review
		ORDER BY flagged_at ASC
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list review entries: %w", err)
	}
	defer rows.Close()

	var out []domain.ReviewEntry
	for rows.Next() {
		var dest struct {
			ID            string    `db:"id"`
			JobID         string    `db:"job_id"`
			Queue         string    `db:"queue"`
			Payload       []byte    `db:"payload"`
			FailureReason string    `db:"failure_reason"`
			Analysis      []byte    `db:"analysis"`
			Priority      string    `db:"priority"`
			FlaggedAt     time.Time `db:"flagged_at"`
		}
		if err := rows.StructScan(&dest); err != nil {
			return nil, fmt.Errorf("failed to scan review entry: %w", err)
		}

		entry := domain.ReviewEntry{
			ID:            dest.ID,
			JobID:         dest.JobID,
			Queue:         dest.Queue,
			Payload:       dest.Payload,
			FailureReason: dest.FailureReason,
			Priority:      domain.Priority(dest.Priority),
			FlaggedAt:     dest.FlaggedAt,
		}
		if err := json.Unmarshal(dest.Analysis, &entry.Analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *ReviewRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM manual_review WHERE flagged_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune review entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// -----------------------------------------------------------------------------
// Escalation store
// -----------------------------------------------------------------------------

// EscalationRepo implements storage.EscalationStore using PostgreSQL.
type EscalationRepo struct {
	db *DB
}

// NewEscalationRepo creates a PostgreSQL escalation repository.
func NewEscalationRepo(db *DB) *EscalationRepo {
	return &EscalationRepo{db: db}
}

func (r *EscalationRepo) Add(ctx context.Context, entry domain.EscalationEntry) error {
	analysis, err := json.Marshal(entry.Analysis)
	if err != nil {
		return &storage.PersistenceError{Op: "escalation marshal", Err: err}
	}

	query := `
		INSERT INTO escalations (id, job_id, queue, reason, analysis, priority, escalated_at, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.JobID, entry.Queue, entry.Reason,
		analysis, string(entry.Priority), entry.EscalatedAt, entry.Notified,
	)
	if err != nil {
		return &storage.PersistenceError{Op: "escalation insert", Err: err}
	}
	return nil
}

func (r *EscalationRepo) List(ctx context.Context) ([]domain.EscalationEntry, error) {
	query := `
		SELECT id, job_id, queue, reason, analysis, priority, escalated_at, notified
		FROM escalations
		ORDER BY escalated_at ASC
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var out []domain.EscalationEntry
	for rows.Next() {
		var dest struct {
			ID          string    `db:"id"`
			JobID       string    `db:"job_id"`
			Queue       string    `db:"queue"`
			Reason      string    `db:"reason"`
			Analysis    []byte    `db:"analysis"`
			Priority    string    `db:"priority"`
			EscalatedAt time.Time `db:"escalated_at"`
			Notified    bool      `db:"notified"`
		}
		if err := rows.StructScan(&dest); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}

		entry := domain.EscalationEntry{
			ID:          dest.ID,
			JobID:       dest.JobID,
			Queue:       dest.Queue,
			Reason:      dest.Reason,
			Priority:    domain.Priority(dest.Priority),
			EscalatedAt: dest.EscalatedAt,
			Notified:    dest.Notified,
		}
		if err := json.Unmarshal(dest.Analysis, &entry.Analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *EscalationRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM escalations WHERE escalated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune escalations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// -----------------------------------------------------------------------------
// Archive store
// -----------------------------------------------------------------------------

// ArchiveRepo implements storage.ArchiveStore using PostgreSQL.
type ArchiveRepo struct {
	db *DB
}

// NewArchiveRepo creates a PostgreSQL discard archive.
func NewArchiveRepo(db *DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

func (r *ArchiveRepo) Add(ctx context.Context, rec domain.ArchivedRecord) error {
	record, err := json.Marshal(rec.Record)
	if err != nil {
		return &storage.PersistenceError{Op: "archive marshal record", Err: err}
	}
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return &storage.PersistenceError{Op: "archive marshal analysis", Err: err}
	}

	query := `
		INSERT INTO discard_archive (id, job_id, queue, record, analysis, discarded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.Record.OriginalJobID, rec.Record.OriginalQueue,
		record, analysis, rec.DiscardedAt,
	)
	if err != nil {
		return &storage.PersistenceError{Op: "archive insert", Err: err}
	}
	return nil
}

func (r *ArchiveRepo) List(ctx context.Context) ([]domain.ArchivedRecord, error) {
	query := `
		SELECT id, record, analysis, discarded_at
		FROM discard_archive
		ORDER BY discarded_at ASC
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	defer rows.Close()

	var out []domain.ArchivedRecord
	for rows.Next() {
		var dest struct {
			ID          string    `db:"id"`
			Record      []byte    `db:"record"`
			Analysis    []byte    `db:"analysis"`
			DiscardedAt time.Time `db:"discarded_at"`
		}
		if err := rows.StructScan(&dest); err != nil {
			return nil, fmt.Errorf("failed to scan archived record: %w", err)
		}

		rec := domain.ArchivedRecord{ID: dest.ID, DiscardedAt: dest.DiscardedAt}
		if err := json.Unmarshal(dest.Record, &rec.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		if err := json.Unmarshal(dest.Analysis, &rec.Analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ArchiveRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discard_archive WHERE discarded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune archive: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
