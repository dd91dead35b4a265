package auraflow

import (
	"context"
	"time"

	"github.com/petrijr/auraflow/pkg/api"
)

// RetryBuilder assembles the RetryPolicy handed to the OpenAI, Reddit and
// Vercel clients. Stripe retries inside its SDK and does not use it.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry starts a builder allowing attempts calls in total.
// attempts <= 0 means a single call.
func Retry(attempts int) RetryBuilder {
	if attempts <= 0 {
		attempts = 1
	}
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: attempts}}
}

// DefaultRetry starts from api.DefaultRetryPolicy: three attempts, 1s
// doubling, capped at 30s.
func DefaultRetry() RetryBuilder {
	return RetryBuilder{policy: api.DefaultRetryPolicy}
}

// WithExponentialBackoff waits initial before the first retry and grows the
// wait by multiplier (2.0 when <= 0), never beyond max (no cap when <= 0).
//
//	Retry(3).WithExponentialBackoff(time.Second, 2, 30*time.Second)
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) RetryBuilder {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	r.policy.InitialBackoff = initial
	r.policy.BackoffMultiplier = multiplier
	r.policy.MaxBackoff = max
	return r
}

// WithConstantBackoff waits delay between every attempt.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	r.policy.InitialBackoff = delay
	r.policy.BackoffMultiplier = 1.0
	r.policy.MaxBackoff = 0
	return r
}

// Immediate retries without waiting. Useful against local fakes.
func (r RetryBuilder) Immediate() RetryBuilder {
	r.policy.InitialBackoff = 0
	r.policy.BackoffMultiplier = 0
	r.policy.MaxBackoff = 0
	return r
}

func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}

// Do calls fn under the built policy; see api.Retry.
func (r RetryBuilder) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return api.Retry(ctx, r.policy, fn)
}
