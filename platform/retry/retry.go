// Package retry wraps external calls with bounded exponential backoff.
// Transient failures (provider outages, timeouts, rate limits) are retried;
// domain errors fail fast so invalid requests are never retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"estatebot_backend/platform/apperr"
)

const (
	// DefaultMaxAttempts is the total number of attempts (first try included).
	DefaultMaxAttempts = 3
	// DefaultInitialInterval is the delay before the first retry.
	DefaultInitialInterval = 500 * time.Millisecond
)

// Policy retries an operation with exponential backoff and jitter.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewPolicy returns a policy with the default attempt and backoff settings.
func NewPolicy() *Policy {
	return &Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     5 * time.Second,
	}
}

// Retryable reports whether an error is worth retrying. Domain errors
// (validation, conflicts, lifecycle violations, missing resources) are
// permanent; everything else is treated as transient.
func Retryable(err error) bool {
	switch apperr.GetKind(err) {
	case apperr.KindValidation, apperr.KindBadRequest, apperr.KindConflict,
		apperr.KindState, apperr.KindNotFound:
		return false
	}
	return true
}

// Do runs fn, retrying transient failures up to MaxAttempts total tries.
// The last error is returned once the attempts are exhausted.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialInterval
	expo.MaxInterval = p.MaxInterval

	op := func() (struct{}, error) {
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
	)
	return err
}
