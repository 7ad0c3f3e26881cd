package domain

// Recommendation is the classifier's suggested disposition.
type Recommendation string

const (
	RecommendRetry     Recommendation = "retry"
	RecommendManualFix Recommendation = "manual_fix"
	RecommendDiscard   Recommendation = "discard"
	RecommendEscalate  Recommendation = "escalate"
)

// FailureAnalysis is the classifier's verdict on a failure record.
type FailureAnalysis struct {
	RootCause       string         `json:"root_cause"`
	Category        Category       `json:"category"`
	Recommendation  Recommendation `json:"recommendation"`
	Confidence      float64        `json:"confidence"`
	SimilarFailures int            `json:"similar_failures"`
	MatchedPatterns []string       `json:"matched_patterns,omitempty"`
}
