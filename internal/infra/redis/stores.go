package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/storage"
)

// Retention windows per disposition. Discarded records are kept longest for
// forensic inspection.
const (
	RecordTTL     = 7 * 24 * time.Hour
	ReviewTTL     = 7 * 24 * time.Hour
	EscalationTTL = 7 * 24 * time.Hour
	ArchiveTTL    = 30 * 24 * time.Hour
)

// listStore is the shared shape of the Redis-backed stores: each entry lives
// in its own TTL'd key, indexed by a sorted set scored on the entry
// timestamp. Listing walks the index oldest-first; pruning removes index
// members below a score cutoff.
type listStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *listStore) indexKey() string {
	return fmt.Sprintf("salvage:%s:index", s.prefix)
}

func (s *listStore) entryKey(id string) string {
	return fmt.Sprintf("salvage:%s:%s", s.prefix, id)
}

func (s *listStore) add(ctx context.Context, id string, v any, at time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &storage.PersistenceError{Op: s.prefix + " marshal", Err: err}
	}
	if err := s.rdb.Set(ctx, s.entryKey(id), data, s.ttl).Err(); err != nil {
		return &storage.PersistenceError{Op: s.prefix + " set", Err: err}
	}
	if err := s.rdb.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(at.UnixNano()),
		Member: id,
	}).Err(); err != nil {
		return &storage.PersistenceError{Op: s.prefix + " index", Err: err}
	}
	return nil
}

// forEach walks index members oldest-first, unmarshalling each entry into a
// value produced by fn. Expired entries still present in the index are
// dropped from it.
func (s *listStore) forEach(ctx context.Context, fn func(data []byte) error) error {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange failed: %w", err)
	}
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, s.entryKey(id)).Bytes()
		if err == redis.Nil {
			s.rdb.ZRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return fmt.Errorf("get %s failed: %w", id, err)
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return nil
}

func (s *listStore) prune(ctx context.Context, before time.Time) (int, error) {
	cutoff := fmt.Sprintf("%d", before.UnixNano())
	ids, err := s.rdb.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	for _, id := range ids {
		if err := s.rdb.Del(ctx, s.entryKey(id)).Err(); err != nil {
			return 0, fmt.Errorf("del %s failed: %w", id, err)
		}
	}
	if err := s.rdb.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+cutoff).Err(); err != nil {
		return 0, fmt.Errorf("zremrangebyscore failed: %w", err)
	}
	return len(ids), nil
}

// -----------------------------------------------------------------------------
// Record store
// -----------------------------------------------------------------------------

// RecordRepo implements storage.RecordStore on Redis.
type RecordRepo struct {
	rdb *redis.Client
}

// NewRecordRepo creates a Redis-backed record store.
func NewRecordRepo(client *Client) *RecordRepo {
	return &RecordRepo{rdb: client.rdb}
}

func recordKey(id string) string {
	return "salvage:record:" + id
}

func (r *RecordRepo) Save(ctx context.Context, rec *domain.FailureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &storage.PersistenceError{Op: "record marshal", Err: err}
	}
	if err := r.rdb.Set(ctx, recordKey(rec.ID), data, RecordTTL).Err(); err != nil {
		return &storage.PersistenceError{Op: "record set", Err: err}
	}
	return nil
}

func (r *RecordRepo) Get(ctx context.Context, id string) (*domain.FailureRecord, error) {
	data, err := r.rdb.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var rec domain.FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepo) UpdateStatus(ctx context.Context, id string, status domain.RecordStatus) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Status = status
	return r.Save(ctx, rec)
}

// -----------------------------------------------------------------------------
// Review store
// -----------------------------------------------------------------------------

// ReviewRepo implements storage.ReviewStore on Redis.
type ReviewRepo struct {
	ls listStore
}

// NewReviewRepo creates a Redis-backed review store.
func NewReviewRepo(client *Client) *ReviewRepo {
	return &ReviewRepo{ls: listStore{rdb: client.rdb, prefix: "review", ttl: ReviewTTL}}
}

func (r *ReviewRepo) Add(ctx context.Context, entry domain.ReviewEntry) error {
	return r.ls.add(ctx, entry.ID, entry, entry.FlaggedAt)
}

func (r *ReviewRepo) List(ctx context.Context) ([]domain.ReviewEntry, error) {
	var out []domain.ReviewEntry
	err := r.ls.forEach(ctx, func(data []byte) error {
		var e domain.ReviewEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unmarshal review entry: %w", err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (r *ReviewRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	return r.ls.prune(ctx, before)
}

// -----------------------------------------------------------------------------
// Escalation store
// -----------------------------------------------------------------------------

// EscalationRepo implements storage.EscalationStore on Redis.
type EscalationRepo struct {
	ls listStore
}

// NewEscalationRepo creates a Redis-backed escalation store.
func NewEscalationRepo(client *Client) *EscalationRepo {
	return &EscalationRepo{ls: listStore{rdb: client.rdb, prefix: "escalation", ttl: EscalationTTL}}
}

func (r *EscalationRepo) Add(ctx context.Context, entry domain.EscalationEntry) error {
	return r.ls.add(ctx, entry.ID, entry, entry.EscalatedAt)
}

func (r *EscalationRepo) List(ctx context.Context) ([]domain.EscalationEntry, error) {
	var out []domain.EscalationEntry
	err := r.ls.forEach(ctx, func(data []byte) error {
		var e domain.EscalationEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unmarshal escalation entry: %w", err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (r *EscalationRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	return r.ls.prune(ctx, before)
}

// -----------------------------------------------------------------------------
// Archive store
// -----------------------------------------------------------------------------

// ArchiveRepo implements storage.ArchiveStore on Redis.
type ArchiveRepo struct {
	ls listStore
}

// NewArchiveRepo creates a Redis-backed discard archive.
func NewArchiveRepo(client *Client) *ArchiveRepo {
	return &ArchiveRepo{ls: listStore{rdb: client.rdb, prefix: "archive", ttl: ArchiveTTL}}
}

func (r *ArchiveRepo) Add(ctx context.Context, rec domain.ArchivedRecord) error {
	return r.ls.add(ctx, rec.ID, rec, rec.DiscardedAt)
}

func (r *ArchiveRepo) List(ctx context.Context) ([]domain.ArchivedRecord, error) {
	var out []domain.ArchivedRecord
	err := r.ls.forEach(ctx, func(data []byte) error {
		var e domain.ArchivedRecord
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unmarshal archived record: %w", err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func (r *ArchiveRepo) Prune(ctx context.Context, before time.Time) (int, error) {
	return r.ls.prune(ctx, before)
}
