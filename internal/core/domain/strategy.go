package domain

import "time"

// BackoffType selects the delay curve of a retry strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
	BackoffLinear      BackoffType = "linear"
	BackoffCustom      BackoffType = "custom"
)

// BackoffFunc computes a delay for a custom strategy. Attempt is 1-based.
type BackoffFunc func(attempt int) time.Duration

// RetryStrategy is an immutable description of how a job is retried.
// CustomFn must be set iff Backoff is BackoffCustom.
type RetryStrategy struct {
	Name        string        `json:"name"`
	MaxAttempts int           `json:"max_attempts"`
	Backoff     BackoffType   `json:"backoff"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay,omitempty"` // 0 = uncapped
	Jitter      bool          `json:"jitter"`
	CustomFn    BackoffFunc   `json:"-"`
}
