package outbox

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy computes the dispatcher's next_attempt_at deadline after
// a retryable failure (spec §4.4 retry policy — exponential backoff with
// jitter, honoring Retry-After when the transport supplies one).
type BackoffPolicy struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration
}

// NewBackoffPolicy builds a BackoffPolicy from the resolved Settings.
func NewBackoffPolicy(maxAttempts int, base, max time.Duration) *BackoffPolicy {
	return &BackoffPolicy{maxAttempts: maxAttempts, base: base, max: max}
}

// MaxAttempts is the hard cap that demotes a row to FAILED.
func (p *BackoffPolicy) MaxAttempts() int { return p.maxAttempts }

// NextDelay returns the delay to wait before attempt number attemptsSoFar+1,
// honoring retryAfter when the transport provided one.
func (p *BackoffPolicy) NextDelay(attemptsSoFar int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.base
	eb.MaxInterval = p.max
	eb.RandomizationFactor = 0.5
	eb.Multiplier = 2
	eb.Reset()

	delay := eb.InitialInterval
	for i := 0; i < attemptsSoFar; i++ {
		delay = eb.NextBackOff()
		if delay == backoff.Stop {
			return p.max
		}
	}
	if delay > p.max {
		return p.max
	}
	return delay
}
