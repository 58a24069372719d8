package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, zeroBackoff, alwaysRetryable, func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, zeroBackoff, alwaysRetryable, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, zeroBackoff, alwaysRetryable, func(attempt int) error {
		calls++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected the last error to be returned")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (maxAttempts)", calls)
	}
}

func TestDoStopsEarlyOnNonRetryableError(t *testing.T) {
	calls := 0
	nonRetryable := errors.New("fatal")
	err := Do(context.Background(), 5, zeroBackoff, func(err error) bool {
		return err != nonRetryable
	}, func(attempt int) error {
		calls++
		return nonRetryable
	})
	if err != nonRetryable {
		t.Errorf("err = %v, want %v", err, nonRetryable)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry past a non-retryable error)", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, zeroBackoff, alwaysRetryable, func(attempt int) error {
		calls++
		if attempt == 1 {
			cancel()
		}
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected an error after context cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancellation should stop further attempts)", calls)
	}
}

func TestDoChecksContextBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, 3, zeroBackoff, alwaysRetryable, func(attempt int) error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatal("expected an error from an already-cancelled context")
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 (should never call fn with a cancelled context)", calls)
	}
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	backoff := ExponentialBackoff(10*time.Millisecond, 100*time.Millisecond, 2.0)
	if got := backoff(1); got != 10*time.Millisecond {
		t.Errorf("backoff(1) = %v, want 10ms", got)
	}
	if got := backoff(2); got != 20*time.Millisecond {
		t.Errorf("backoff(2) = %v, want 20ms", got)
	}
	if got := backoff(3); got != 40*time.Millisecond {
		t.Errorf("backoff(3) = %v, want 40ms", got)
	}
	if got := backoff(10); got != 100*time.Millisecond {
		t.Errorf("backoff(10) = %v, want capped at 100ms", got)
	}
}

func zeroBackoff(attempt int) time.Duration { return 0 }

func alwaysRetryable(error) bool { return true }
