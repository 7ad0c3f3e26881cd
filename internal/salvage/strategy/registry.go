// Package strategy holds named retry strategies and computes backoff delays.
package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
)

// Registry is a concurrency-safe, append-only store of named retry
// strategies. Strategies may be added or replaced at runtime; registered
// values are never mutated in place.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]domain.RetryStrategy
}

// NewRegistry creates a registry pre-loaded with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]domain.RetryStrategy)}
	for _, s := range builtins() {
		r.strategies[s.Name] = s
	}
	return r
}

func builtins() []domain.RetryStrategy {
	return []domain.RetryStrategy{
		{
			Name:        "immediate",
			MaxAttempts: 3,
			Backoff:     domain.BackoffFixed,
			BaseDelay:   1 * time.Second,
		},
		{
			Name:        "exponential",
			MaxAttempts: 5,
			Backoff:     domain.BackoffExponential,
			BaseDelay:   2 * time.Second,
			MaxDelay:    300 * time.Second,
			Jitter:      true,
		},
		{
			Name:        "linear",
			MaxAttempts: 4,
			Backoff:     domain.BackoffLinear,
			BaseDelay:   5 * time.Second,
			MaxDelay:    60 * time.Second,
		},
		{
			Name:        "aggressive",
			MaxAttempts: 10,
			Backoff:     domain.BackoffExponential,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    600 * time.Second,
			Jitter:      true,
		},
	}
}

// Register adds or replaces a named strategy.
func (r *Registry) Register(s domain.RetryStrategy) error {
	if s.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("strategy %q: max attempts must be >= 1", s.Name)
	}
	if s.BaseDelay < 0 {
		return fmt.Errorf("strategy %q: base delay must be >= 0", s.Name)
	}
	if s.MaxDelay != 0 && s.MaxDelay < s.BaseDelay {
		return fmt.Errorf("strategy %q: max delay %v < base delay %v", s.Name, s.MaxDelay, s.BaseDelay)
	}
	if (s.Backoff == domain.BackoffCustom) != (s.CustomFn != nil) {
		return fmt.Errorf("strategy %q: custom fn must be set iff backoff is custom", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name] = s
	return nil
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (domain.RetryStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the names of all registered strategies.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}

// Select picks the strategy for an analyzed failure. The rule is
// deterministic: critical transient failures get the aggressive schedule,
// other transient failures back off exponentially, low-confidence verdicts
// retry conservatively, and everything else retries immediately.
func (r *Registry) Select(analysis domain.FailureAnalysis, priority domain.Priority) domain.RetryStrategy {
	switch {
	case analysis.Category == domain.CategoryTransient && priority == domain.PriorityCritical:
		return r.mustGet("aggressive")
	case analysis.Category == domain.CategoryTransient:
		return r.mustGet("exponential")
	case analysis.Confidence < 0.7:
		return r.mustGet("linear")
	default:
		return r.mustGet("immediate")
	}
}

func (r *Registry) mustGet(name string) domain.RetryStrategy {
	s, ok := r.Get(name)
	if !ok {
		// Built-ins are loaded at construction; a miss means an operator
		// replaced one with an invalid entry, fall back to a safe default.
		return domain.RetryStrategy{
			Name:        name,
			MaxAttempts: 3,
			Backoff:     domain.BackoffFixed,
			BaseDelay:   time.Second,
		}
	}
	return s
}
