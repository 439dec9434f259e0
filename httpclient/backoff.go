package httpclient

import (
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how retry delays grow across attempts
type BackoffStrategy string

const (
	// BackoffLinear grows the delay as baseDelay * attempt
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential doubles the delay each attempt with ±25% jitter
	BackoffExponential BackoffStrategy = "exponential"
)

const (
	// DefaultBaseDelay seeds backoff curves when no base delay is configured
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps backoff delays when no maximum is configured
	DefaultMaxDelay = 30 * time.Second

	// jitterFraction is the symmetric jitter band applied to exponential delays
	jitterFraction = 0.25
)

// CalculateBackoff computes the delay before the next attempt. attempt is
// 1-based: the delay after the first failed attempt uses attempt=1.
//
// Linear delays are baseDelay*attempt. Exponential delays (the default for
// unknown strategies) are min(baseDelay*2^(attempt-1), maxDelay) with a
// uniform jitter offset in [-25%, +25%] of the value. The final delay is
// clamped to [0, maxDelay] regardless of strategy. Non-positive baseDelay
// or maxDelay fall back to the package defaults.
func CalculateBackoff(attempt int, strategy BackoffStrategy, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	var delay time.Duration
	switch strategy {
	case BackoffLinear:
		delay = baseDelay * time.Duration(attempt)
		if delay < 0 {
			// multiplication overflow
			delay = maxDelay
		}
	default:
		delay = baseDelay
		for i := 1; i < attempt; i++ {
			if delay > maxDelay/2 {
				delay = maxDelay
				break
			}
			delay *= 2
		}
		if delay > maxDelay {
			delay = maxDelay
		}
		offset := (rand.Float64()*2 - 1) * jitterFraction * float64(delay)
		delay += time.Duration(offset)
	}

	if delay < 0 {
		return 0
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// backoffFor resolves the delay for a retry policy, applying policy defaults.
func backoffFor(attempt int, policy *RetryPolicy) time.Duration {
	return CalculateBackoff(attempt, policy.Strategy, policy.BaseDelay, policy.MaxDelay)
}
