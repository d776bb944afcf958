package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackoffFunc maps a 1-based attempt number to a wait duration.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits 2^attempt seconds: 2s, 4s, 8s, ...
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// RetryPolicy re-runs an operation up to Attempts times, logging each retry
// with its cause. Applied uniformly to publishing and consumer processing.
type RetryPolicy struct {
	Attempts int
	Backoff  BackoffFunc
	Log      zerolog.Logger
}

func NewRetryPolicy(log zerolog.Logger) RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: ExponentialBackoff, Log: log}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is cancelled.
// The last failure is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}
		wait := p.Backoff(attempt)
		p.Log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("operation failed, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
