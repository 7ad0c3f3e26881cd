// Package control wires the salvage pipeline together and exposes its
// programmatic boundary: failure submission, strategy and rule registration,
// operator queues, statistics and metrics.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/infra/notify"
	"github.com/vietddude/salvage/internal/infra/queue"
	"github.com/vietddude/salvage/internal/infra/storage"
	"github.com/vietddude/salvage/internal/salvage/classify"
	"github.com/vietddude/salvage/internal/salvage/dispose"
	"github.com/vietddude/salvage/internal/salvage/events"
	"github.com/vietddude/salvage/internal/salvage/ingress"
	"github.com/vietddude/salvage/internal/salvage/metrics"
	"github.com/vietddude/salvage/internal/salvage/stats"
	"github.com/vietddude/salvage/internal/salvage/store"
	"github.com/vietddude/salvage/internal/salvage/strategy"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 1024
	defaultTimeout   = 30 * time.Second

	// A record that errors or times out is put back for another pass; after
	// maxPasses it is force-flagged for review so it cannot cycle forever.
	maxPasses = 3
)

// Config tunes the engine.
type Config struct {
	// Workers is the size of the processing pool; minimum 2.
	Workers int
	// QueueSize bounds the internal dead-letter intake channel.
	QueueSize int
	// ProcessTimeout bounds end-to-end processing of one record.
	ProcessTimeout time.Duration
	// HistoryCapacity bounds the failure history ring buffer.
	HistoryCapacity int
	// ShortDelay and DefaultDelay stagger non-critical records into the
	// pipeline; critical records are processed immediately.
	ShortDelay   time.Duration
	DefaultDelay time.Duration
}

func (c *Config) fill() {
	if c.Workers < defaultWorkers {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = defaultTimeout
	}
	if c.ShortDelay <= 0 {
		c.ShortDelay = time.Second
	}
	if c.DefaultDelay <= 0 {
		c.DefaultDelay = 5 * time.Second
	}
}

// Deps collects the engine's pluggable collaborators.
type Deps struct {
	Records     storage.RecordStore
	Reviews     storage.ReviewStore
	Escalations storage.EscalationStore
	Archive     storage.ArchiveStore
	Requeuer    queue.Requeuer
	Notifier    notify.Notifier
	Registerer  prometheus.Registerer
	Log         *slog.Logger
}

type workItem struct {
	rec    *domain.FailureRecord
	passes int
}

// Engine is the dead-letter salvage pipeline.
type Engine struct {
	cfg  Config
	log  *slog.Logger
	deps Deps

	strategies *strategy.Registry
	history    *store.History
	classifier *classify.Engine
	executor   *dispose.Executor
	ingress    *ingress.Ingress
	reporter   *stats.Reporter
	bus        *events.Bus
	sink       *metrics.Sink

	intake chan workItem

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	workers sync.WaitGroup
	timers  sync.WaitGroup
}

// NewEngine creates an engine. Missing dependencies fall back to no-op or
// in-memory implementations.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	cfg.fill()
	if deps.Records == nil || deps.Reviews == nil || deps.Escalations == nil || deps.Archive == nil {
		return nil, fmt.Errorf("record, review, escalation and archive stores are required")
	}
	if deps.Requeuer == nil {
		deps.Requeuer = queue.NewMemoryRequeuer()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	history := store.NewHistory(cfg.HistoryCapacity)
	bus := events.NewBus()
	sink := metrics.NewSink(deps.Registerer)
	strategies := strategy.NewRegistry()

	e := &Engine{
		cfg:        cfg,
		log:        deps.Log,
		deps:       deps,
		strategies: strategies,
		history:    history,
		classifier: classify.NewEngine(history, deps.Log),
		ingress:    ingress.New(deps.Records, history, bus, deps.Log),
		reporter:   stats.NewReporter(history),
		bus:        bus,
		sink:       sink,
		intake:     make(chan workItem, cfg.QueueSize),
	}
	e.executor = dispose.NewExecutor(dispose.Deps{
		Strategies:  strategies,
		History:     history,
		Records:     deps.Records,
		Reviews:     deps.Reviews,
		Escalations: deps.Escalations,
		Archive:     deps.Archive,
		Requeuer:    deps.Requeuer,
		Notifier:    deps.Notifier,
		Bus:         bus,
		Sink:        sink,
		Log:         deps.Log,
	})
	return e, nil
}

// Start launches the worker pool. Processing of dead-lettered records runs
// independently of the origin queues' own workers.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return fmt.Errorf("engine already stopped")
	}
	if e.started {
		return fmt.Errorf("engine already started")
	}
	e.started = true

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for i := 0; i < e.cfg.Workers; i++ {
		e.workers.Add(1)
		go e.worker(runCtx, i)
	}
	e.log.Info("salvage engine started", "workers", e.cfg.Workers, "queue_size", e.cfg.QueueSize)
	return nil
}

// Stop drains the pipeline, waiting for in-flight records up to the context
// deadline. Accepted records are never abandoned: once submission is fenced
// off, pending timers fire, the intake channel is closed, and the workers
// drain everything still buffered before they exit.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.timers.Wait()
		close(e.intake)
		e.workers.Wait()
		cancel()
		close(done)
	}()

	select {
	case <-done:
		e.log.Info("salvage engine stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("engine shutdown timed out: %w", ctx.Err())
	}
}

// SubmitFailure is the producer-facing entry point: a job has exhausted its
// retry budget with the given terminal error and attempt history. A returned
// error means the job is not yet safely recorded and remains the caller's
// responsibility.
func (e *Engine) SubmitFailure(ctx context.Context, job ingress.FailedJob, failure error, attempts []domain.ProcessingAttempt) error {
	rec, err := e.ingress.Submit(ctx, job, failure, attempts)
	if err != nil {
		return err
	}
	if !e.schedule(workItem{rec: rec}, e.submitDelay(rec)) {
		return fmt.Errorf("engine is stopped; job %s was not accepted", job.ID)
	}
	return nil
}

// submitDelay staggers records into the pipeline so urgent failures are not
// stuck behind a generic queue wait: critical jobs go straight in,
// transient-looking ones shortly after, the rest at the default delay.
func (e *Engine) submitDelay(rec *domain.FailureRecord) time.Duration {
	if rec.Priority == domain.PriorityCritical {
		return 0
	}
	for _, tag := range rec.Tags {
		if tag == "timeout" || tag == "connection" {
			return e.cfg.ShortDelay
		}
	}
	return e.cfg.DefaultDelay
}

// schedule queues the item after the delay. It reports false once Stop has
// begun: registering with the timer group is fenced by the same mutex Stop
// holds before waiting on it, so every accepted item sends to intake before
// the channel closes, and nothing registers after.
func (e *Engine) schedule(item workItem, delay time.Duration) bool {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return false
	}
	e.timers.Add(1)
	e.mu.Unlock()

	if delay <= 0 {
		go func() {
			defer e.timers.Done()
			e.intake <- item
		}()
		return true
	}
	time.AfterFunc(delay, func() {
		defer e.timers.Done()
		e.intake <- item
	})
	return true
}

// worker drains intake until the channel is closed, so records buffered at
// shutdown are still processed.
func (e *Engine) worker(ctx context.Context, id int) {
	defer e.workers.Done()
	for item := range e.intake {
		e.process(ctx, item)
	}
	e.log.Debug("worker drained intake", "worker", id)
}

// process runs one record end-to-end within a single worker: classify, then
// dispose. A record that errors or times out is re-queued for another pass;
// after maxPasses it is force-flagged for review so nothing vanishes.
func (e *Engine) process(ctx context.Context, item workItem) {
	start := time.Now()
	procCtx, cancel := context.WithTimeout(ctx, e.cfg.ProcessTimeout)
	defer cancel()

	rec := item.rec
	analysis := e.classifier.Classify(rec)
	_, err := e.executor.Execute(procCtx, rec, analysis)
	e.sink.ObserveDuration(time.Since(start).Seconds())
	if err == nil {
		return
	}

	item.passes++
	if item.passes < maxPasses {
		e.log.Warn("processing failed, re-queuing record",
			"job", rec.OriginalJobID, "pass", item.passes, "error", err)
		if e.schedule(item, time.Second*time.Duration(item.passes)) {
			return
		}
		// Stop has begun; no more passes are coming, so flag the
		// record for review now rather than leave it non-terminal.
	}

	// Last resort: force the record into the review queue with a fresh
	// context so it surfaces to an operator instead of vanishing.
	e.log.Error("processing failed, forcing manual review",
		"job", rec.OriginalJobID, "pass", item.passes, "error", err)
	forced := analysis
	forced.Recommendation = domain.RecommendManualFix
	fallbackCtx, fallbackCancel := context.WithTimeout(context.Background(), e.cfg.ProcessTimeout)
	defer fallbackCancel()
	if _, reviewErr := e.executor.Execute(fallbackCtx, rec, forced); reviewErr != nil {
		e.log.Error("failed to flag record for review, re-queuing",
			"job", rec.OriginalJobID, "error", reviewErr)
		item.passes = 0
		if !e.schedule(item, 30*time.Second) {
			e.log.Error("record left with non-terminal status at shutdown",
				"job", rec.OriginalJobID, "record", rec.ID)
		}
	}
}

// RegisterStrategy adds or replaces a named retry strategy at runtime.
func (e *Engine) RegisterStrategy(s domain.RetryStrategy) error {
	return e.strategies.Register(s)
}

// RegisterRule appends a classification rule at runtime.
func (e *Engine) RegisterRule(name string, fn classify.RuleFunc) error {
	return e.classifier.RegisterRule(name, fn)
}

// Subscribe registers an event handler; an empty topic receives every event.
func (e *Engine) Subscribe(topic string, h events.Handler) {
	e.bus.Subscribe(topic, h)
}

// ListManualReview returns the current manual-review queue.
func (e *Engine) ListManualReview(ctx context.Context) ([]domain.ReviewEntry, error) {
	return e.deps.Reviews.List(ctx)
}

// ListEscalations returns the current escalation list.
func (e *Engine) ListEscalations(ctx context.Context) ([]domain.EscalationEntry, error) {
	return e.deps.Escalations.List(ctx)
}

// GetStatistics aggregates the failure history over the given window.
func (e *Engine) GetStatistics(tr stats.TimeRange) (stats.Report, error) {
	return e.reporter.Report(tr)
}

// GetMetrics returns the running pipeline counters.
func (e *Engine) GetMetrics() metrics.Snapshot {
	return e.sink.Snapshot()
}
