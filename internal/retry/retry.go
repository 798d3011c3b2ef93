package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultPolicy is used when a caller leaves fields unset
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseBackoff: 20 * time.Millisecond,
	MaxBackoff:  time.Second,
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultPolicy.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultPolicy.MaxBackoff
	}
	return p
}

// Backoff returns the wait before the given retry (0-based)
func (p Policy) Backoff(retry int) time.Duration {
	p = p.normalize()
	backoff := p.BaseBackoff << uint(retry)
	if backoff <= 0 || backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

// WithBackoff runs fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error from fn is returned.
func WithBackoff(ctx context.Context, policy Policy, retryable func(error) bool, fn func(attempt int) error) error {
	policy = policy.normalize()
	var err error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		// Wait for backoff duration or context cancellation
		select {
		case <-time.After(policy.Backoff(attempt)):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
