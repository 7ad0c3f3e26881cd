// Package worker hosts background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/salvage/internal/infra/storage"
)

// Retention windows per disposition store.
type Retention struct {
	Review     time.Duration
	Escalation time.Duration
	Archive    time.Duration
}

// DefaultRetention keeps operator queues for a week and the discard archive
// for 30 days.
func DefaultRetention() Retention {
	return Retention{
		Review:     7 * 24 * time.Hour,
		Escalation: 7 * 24 * time.Hour,
		Archive:    30 * 24 * time.Hour,
	}
}

// Pruner deletes expired disposition records based on the retention policy.
type Pruner struct {
	retention   Retention
	reviews     storage.ReviewStore
	escalations storage.EscalationStore
	archive     storage.ArchiveStore
	interval    time.Duration
	log         *slog.Logger
}

// NewPruner creates a pruner. A non-positive interval defaults to one hour.
func NewPruner(
	retention Retention,
	reviews storage.ReviewStore,
	escalations storage.EscalationStore,
	archive storage.ArchiveStore,
	interval time.Duration,
	log *slog.Logger,
) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		retention:   retention,
		reviews:     reviews,
		escalations: escalations,
		archive:     archive,
		interval:    interval,
		log:         log,
	}
}

// Start runs the pruner loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	now := time.Now()

	if n, err := p.reviews.Prune(ctx, now.Add(-p.retention.Review)); err != nil {
		p.log.Error("failed to prune review entries", "error", err)
	} else if n > 0 {
		p.log.Info("pruned review entries", "count", n)
	}

	if n, err := p.escalations.Prune(ctx, now.Add(-p.retention.Escalation)); err != nil {
		p.log.Error("failed to prune escalations", "error", err)
	} else if n > 0 {
		p.log.Info("pruned escalations", "count", n)
	}

	if n, err := p.archive.Prune(ctx, now.Add(-p.retention.Archive)); err != nil {
		p.log.Error("failed to prune archive", "error", err)
	} else if n > 0 {
		p.log.Info("pruned archived records", "count", n)
	}
}
