// Package retry runs an operation with exponential backoff, retrying only the
// errors a Classifier marks as transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// ErrExhausted wraps the last transient error once every attempt has been used.
var ErrExhausted = errors.New("retries exhausted")

// Classifier decides whether err is worth retrying. A positive retryAfter
// overrides the computed backoff for the next wait.
type Classifier func(err error) (transient bool, retryAfter time.Duration)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor applied to every interval.
	Jitter float64
}

// DefaultPolicy is five attempts starting at 500ms, doubling up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Jitter:          0.5,
	}
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	if p.Jitter >= 0 {
		b.RandomizationFactor = p.Jitter
	}
	return b
}

// Do calls op until it succeeds, returns a non-transient error, ctx ends, or
// the policy runs out of attempts. Non-transient errors are returned as is;
// exhaustion returns an error matching ErrExhausted that still wraps the last
// failure.
func Do[T any](ctx context.Context, p Policy, classify Classifier, log zerolog.Logger, op func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var (
		attempt   uint
		lastErr   error
		transient bool
	)
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var wait time.Duration
		transient, wait = classify(err)
		if !transient {
			return res, backoff.Permanent(err)
		}
		if wait > 0 {
			return res, &backoff.RetryAfterError{Duration: wait}
		}
		return res, err
	}

	notify := func(err error, next time.Duration) {
		log.Warn().Err(lastErr).Uint("attempt", attempt).Dur("wait", next).Msg("Transient failure, retrying")
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return res, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr == nil {
		return zero, ctxErr
	}
	if lastErr == nil {
		return zero, err
	}
	if transient {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("after %d attempts: %w", attempt, errors.Join(ctx.Err(), lastErr))
		}
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
	}
	return zero, lastErr
}
