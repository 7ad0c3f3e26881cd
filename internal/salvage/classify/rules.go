package classify

import (
	"github.com/vietddude/salvage/internal/core/domain"
)

// RuleFunc is a caller-supplied classification rule. It returns the analysis
// it proposes for the record, or nil when the rule does not match. A rule
// that errors or panics is skipped without affecting other rules.
type RuleFunc func(rec *domain.FailureRecord) (*domain.FailureAnalysis, error)

// Rule is one ordered entry of the classification table. Pattern rules
// (Patterns set, Eval nil) match case-insensitive substrings against the
// failure reason and stack trace; their confidence is the base confidence
// scaled by the fraction of declared patterns that matched. Func rules
// (Eval set) propose a full analysis themselves.
type Rule struct {
	Name           string
	RootCause      string
	Category       domain.Category
	Recommendation domain.Recommendation
	Confidence     float64
	Patterns       []string
	Eval           RuleFunc
}

// defaultRules is the built-in ordered rule table. Earlier rules win ties.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:           "network-connection",
			RootCause:      "Network connection failure",
			Category:       domain.CategoryTransient,
			Recommendation: domain.RecommendRetry,
			Confidence:     0.9,
			Patterns: []string{
				"econnrefused", "econnreset", "etimedout",
				"socket hang up", "connection refused", "network unreachable",
			},
		},
		{
			Name:           "timeout",
			RootCause:      "Operation timed out",
			Category:       domain.CategoryTransient,
			Recommendation: domain.RecommendRetry,
			Confidence:     0.85,
			Patterns:       []string{"timeout", "timed out", "deadline exceeded"},
		},
		{
			Name:           "rate-limit",
			RootCause:      "Rate limited by upstream",
			Category:       domain.CategoryTransient,
			Recommendation: domain.RecommendRetry,
			Confidence:     0.8,
			Patterns:       []string{"rate limit", "too many requests", "429"},
		},
		{
			Name:           "database-contention",
			RootCause:      "Database contention",
			Category:       domain.CategoryTransient,
			Recommendation: domain.RecommendRetry,
			Confidence:     0.8,
			Patterns:       []string{"deadlock", "connection pool", "database is locked", "too many connections"},
		},
		{
			Name:           "validation",
			RootCause:      "Payload failed validation",
			Category:       domain.CategoryPermanent,
			Recommendation: domain.RecommendManualFix,
			Confidence:     0.9,
			Patterns:       []string{"validation failed", "invalid payload", "malformed", "schema"},
		},
		{
			Name:           "permission",
			RootCause:      "Permission denied",
			Category:       domain.CategoryPermanent,
			Recommendation: domain.RecommendManualFix,
			Confidence:     0.85,
			Patterns:       []string{"permission denied", "unauthorized", "forbidden", "access denied"},
		},
		{
			Name:           "missing-resource",
			RootCause:      "Referenced resource is gone",
			Category:       domain.CategoryPermanent,
			Recommendation: domain.RecommendDiscard,
			Confidence:     0.75,
			Patterns:       []string{"not found", "no such", "does not exist"},
		},
		{
			Name:           "resource-exhaustion",
			RootCause:      "Resource exhaustion",
			Category:       domain.CategoryTransient,
			Recommendation: domain.RecommendEscalate,
			Confidence:     0.8,
			Patterns:       []string{"out of memory", "resource exhausted", "no space left"},
		},
	}
}
