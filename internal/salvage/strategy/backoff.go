package strategy

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/vietddude/salvage/internal/core/domain"
)

// Delay computes the backoff before the given attempt. Attempt is 1-based;
// values below 1 are treated as 1. The raw curve is clamped to
// [0, MaxDelay] when a cap is set, then jitter (if enabled) perturbs the
// clamped value by up to +-10%.
func Delay(s domain.RetryStrategy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch s.Backoff {
	case domain.BackoffExponential:
		delay = time.Duration(float64(s.BaseDelay) * math.Pow(2, float64(attempt-1)))
	case domain.BackoffLinear:
		delay = s.BaseDelay * time.Duration(attempt)
	case domain.BackoffCustom:
		if s.CustomFn != nil {
			delay = s.CustomFn(attempt)
		} else {
			delay = s.BaseDelay
		}
	default: // fixed
		delay = s.BaseDelay
	}

	if s.MaxDelay > 0 && delay > s.MaxDelay {
		delay = s.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}

	if s.Jitter && delay > 0 {
		// Uniform offset in [-10%, +10%] of the clamped delay.
		offset := (rand.Float64()*2 - 1) * 0.1 * float64(delay)
		delay += time.Duration(offset)
		if s.MaxDelay > 0 && delay > s.MaxDelay {
			delay = s.MaxDelay
		}
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}
