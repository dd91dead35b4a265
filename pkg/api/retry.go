package api

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures bounded retries with exponential backoff for
// external service calls. The orchestrator itself never retries; clients
// apply a policy around each call.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts; <= 0 means 1.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Zero retries
	// immediately.
	InitialBackoff time.Duration

	// BackoffMultiplier grows the delay each attempt; <= 0 means 2.0.
	BackoffMultiplier float64

	// MaxBackoff caps the delay; <= 0 means no cap.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy mirrors the 1s, 2s, 4s schedule used for generation calls.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:       3,
	InitialBackoff:    time.Second,
	BackoffMultiplier: 2.0,
	MaxBackoff:        30 * time.Second,
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry calls fn until it succeeds, returns a Permanent error, the policy
// runs out of attempts, or ctx is done. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := p.InitialBackoff
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			var perm *permanentError
			errors.As(lastErr, &perm)
			return perm.err
		}
		if attempt == maxAttempts {
			break
		}

		if backoff > 0 {
			delay := backoff
			if p.MaxBackoff > 0 && delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}

			next := time.Duration(float64(backoff) * multiplier)
			if p.MaxBackoff > 0 && next > p.MaxBackoff {
				next = p.MaxBackoff
			}
			backoff = next
		}
	}
	return lastErr
}
