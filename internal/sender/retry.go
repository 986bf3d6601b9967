package sender

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig shapes an exponential backoff schedule.
type RetryConfig struct {
	MaxRetries int           // attempts beyond the first
	BaseDelay  time.Duration // first backoff
	MaxDelay   time.Duration // backoff cap
	JitterFrac float64       // symmetric jitter, e.g. 0.2 for ±20%
}

// permanentError stops a retry loop early.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// retryDo runs fn until it succeeds, the attempts are exhausted, fn
// returns a permanent error, or the context is cancelled. Returns the
// last error and the number of attempts made.
func retryDo(ctx context.Context, cfg RetryConfig, fn func() error) (int, error) {
	attempts := 0
	var err error
	for try := 0; try <= cfg.MaxRetries; try++ {
		attempts++
		err = fn()
		if err == nil {
			return attempts, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return attempts, perm.err
		}
		if try == cfg.MaxRetries {
			break
		}

		delay := cfg.BaseDelay << uint(try)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if cfg.JitterFrac > 0 {
			spread := (rand.Float64()*2 - 1) * cfg.JitterFrac
			delay = time.Duration(float64(delay) * (1 + spread))
		}

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(delay):
		}
	}
	return attempts, err
}
