// Package classify turns failure records into root-cause analyses using an
// ordered table of pattern and heuristic rules, enhanced with history drawn
// from the failure store.
package classify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vietddude/salvage/internal/core/domain"
	"github.com/vietddude/salvage/internal/salvage/store"
)

const (
	// similarThreshold is how many matching root causes in the same queue
	// and category it takes to boost confidence.
	similarThreshold = 5
	// highVolumeThreshold is how many failures in one queue within
	// highVolumeWindow it takes to escalate a transient failure. A
	// transient-looking failure recurring at this volume is treated as a
	// systemic outage rather than a one-off blip.
	highVolumeThreshold = 10
	highVolumeWindow    = 24 * time.Hour

	analysisCacheSize = 1024
	analysisCacheTTL  = 15 * time.Minute
)

// RuleError reports a single rule that failed to evaluate. It is isolated
// and skipped; it never aborts classification.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("classification rule %q failed: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Engine evaluates the rule table against failure records.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	history *store.History
	cache   *expirable.LRU[string, domain.FailureAnalysis]
	log     *slog.Logger
}

// NewEngine creates an engine with the built-in rule table.
func NewEngine(history *store.History, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		rules:   defaultRules(),
		history: history,
		cache:   expirable.NewLRU[string, domain.FailureAnalysis](analysisCacheSize, nil, analysisCacheTTL),
		log:     log,
	}
}

// RegisterRule appends a caller-supplied rule to the table at runtime.
func (e *Engine) RegisterRule(name string, fn RuleFunc) error {
	if name == "" {
		return fmt.Errorf("rule name is required")
	}
	if fn == nil {
		return fmt.Errorf("rule %q: fn is required", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, Rule{Name: name, Eval: fn})
	return nil
}

// Classify produces an analysis for a record. Recently analyzed records are
// served from a bounded TTL cache, so re-processing the same record converges
// to the same verdict.
func (e *Engine) Classify(rec *domain.FailureRecord) domain.FailureAnalysis {
	if cached, ok := e.cache.Get(rec.ID); ok {
		return cached
	}

	analysis := e.evaluate(rec)
	e.enhance(rec, &analysis)

	e.cache.Add(rec.ID, analysis)
	return analysis
}

// evaluate runs the ordered rule table and keeps the best-scoring match.
// Ties keep the earlier rule. A failing rule is skipped and never downgrades
// an already-computed best match.
func (e *Engine) evaluate(rec *domain.FailureRecord) domain.FailureAnalysis {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	best := domain.FailureAnalysis{
		RootCause:      "Unknown error",
		Category:       domain.CategoryUnknown,
		Recommendation: domain.RecommendManualFix,
		Confidence:     0.1,
	}
	matched := false

	haystack := strings.ToLower(rec.FailureReason + "\n" + rec.StackTrace)

	for i := range rules {
		candidate, err := evalRule(&rules[i], rec, haystack)
		if err != nil {
			e.log.Warn("skipping classification rule", "rule", rules[i].Name, "error", err)
			continue
		}
		if candidate == nil {
			continue
		}
		if !matched || candidate.Confidence > best.Confidence {
			best = *candidate
			matched = true
		}
	}

	return best
}

// evalRule evaluates one rule, converting panics into errors.
func evalRule(r *Rule, rec *domain.FailureRecord, haystack string) (a *domain.FailureAnalysis, err error) {
	defer func() {
		if p := recover(); p != nil {
			a = nil
			err = &RuleError{Rule: r.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if r.Eval != nil {
		got, evalErr := r.Eval(rec)
		if evalErr != nil {
			return nil, &RuleError{Rule: r.Name, Err: evalErr}
		}
		return got, nil
	}

	var hits []string
	for _, p := range r.Patterns {
		if strings.Contains(haystack, p) {
			hits = append(hits, p)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// Confidence scales with the fraction of declared patterns that
	// matched. A strong single-pattern match against a long pattern list
	// therefore scores low; intentional, do not change without confirming
	// scoring semantics downstream.
	confidence := r.Confidence * float64(len(hits)) / float64(len(r.Patterns))

	return &domain.FailureAnalysis{
		RootCause:       r.RootCause,
		Category:        r.Category,
		Recommendation:  r.Recommendation,
		Confidence:      confidence,
		MatchedPatterns: hits,
	}, nil
}

// enhance folds failure-store history into the rule verdict: repeated root
// causes boost confidence, and a high-volume burst of transient failures in
// one queue bypasses further silent retries.
func (e *Engine) enhance(rec *domain.FailureRecord, analysis *domain.FailureAnalysis) {
	if e.history == nil {
		return
	}

	similar := e.history.CountSimilar(rec.OriginalQueue, analysis.Category, analysis.RootCause, rec.OriginalJobID)
	analysis.SimilarFailures = similar
	if similar > similarThreshold {
		analysis.Confidence = capConfidence(analysis.Confidence + 0.2)
	}

	recent := e.history.CountRecent(rec.OriginalQueue, time.Now().Add(-highVolumeWindow), "")
	if recent > highVolumeThreshold && analysis.Category == domain.CategoryTransient {
		analysis.Recommendation = domain.RecommendEscalate
		analysis.Confidence = capConfidence(analysis.Confidence + 0.1)
	}
}

func capConfidence(c float64) float64 {
	if c > 1.0 {
		return 1.0
	}
	return c
}
