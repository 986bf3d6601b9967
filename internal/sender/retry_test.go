package sender

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testRetry = RetryConfig{
	MaxRetries: 2,
	BaseDelay:  time.Millisecond,
	MaxDelay:   5 * time.Millisecond,
	JitterFrac: 0.2,
}

func TestRetry_FirstTrySucceeds(t *testing.T) {
	attempts, err := retryDo(context.Background(), testRetry, func() error { return nil })
	if err != nil || attempts != 1 {
		t.Errorf("attempts = %d, err = %v", attempts, err)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	fails := 2
	attempts, err := retryDo(context.Background(), testRetry, func() error {
		if fails > 0 {
			fails--
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("attempts = %d, err = %v", attempts, err)
	}
}

func TestRetry_Exhaustion(t *testing.T) {
	boom := errors.New("boom")
	attempts, err := retryDo(context.Background(), testRetry, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	boom := errors.New("fatal")
	attempts, err := retryDo(context.Background(), testRetry, func() error { return Permanent(boom) })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want fatal", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}
	_, err := retryDo(ctx, cfg, func() error { return errors.New("transient") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
