package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/salvage/internal/infra/storage"
	"github.com/vietddude/salvage/internal/salvage/metrics"
)

const (
	reviewDegradedThreshold = 50
	reviewCriticalThreshold = 200
	escalationCriticalCount = 20
	retrySuccessFloor       = 0.5
)

// Monitor aggregates health status from the stores and the metrics sink.
type Monitor struct {
	reviews     storage.ReviewStore
	escalations storage.EscalationStore
	snapshot    func() metrics.Snapshot

	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(reviews storage.ReviewStore, escalations storage.EscalationStore, snapshot func() metrics.Snapshot) *Monitor {
	return &Monitor{
		reviews:     reviews,
		escalations: escalations,
		snapshot:    snapshot,
	}
}

// Check performs a health check, rate limited to once per 10s.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Status != "" {
		return m.lastReport
	}

	snap := m.snapshot()
	report := Report{
		Status:       StatusHealthy,
		Processed:    snap.Processed,
		RetrySuccess: snap.RetrySuccessRate,
	}

	if entries, err := m.reviews.List(ctx); err != nil {
		report.Status = StatusDegraded
	} else {
		report.ReviewBacklog = len(entries)
	}

	if entries, err := m.escalations.List(ctx); err != nil {
		report.Status = StatusDegraded
	} else {
		report.Escalations = len(entries)
	}

	switch {
	case report.ReviewBacklog > reviewCriticalThreshold || report.Escalations > escalationCriticalCount:
		report.Status = StatusCritical
	case report.ReviewBacklog > reviewDegradedThreshold:
		report.Status = StatusDegraded
	case snap.RetrySubmitted > 10 && snap.RetrySuccessRate < retrySuccessFloor:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
