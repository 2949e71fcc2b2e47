package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}
}

func TestWithRetry_Success(t *testing.T) {
	callCount := 0
	err := withRetry(context.Background(), fastRetryConfig(), "test", func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestWithRetry_EventualSuccess(t *testing.T) {
	callCount := 0
	err := withRetry(context.Background(), fastRetryConfig(), "test", func() error {
		callCount++
		if callCount < 3 {
			return &apiError{StatusCode: 503, ErrorType: "NetworkException"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestWithRetry_TransientExhaustsCeiling(t *testing.T) {
	config := fastRetryConfig()
	config.MaxRetries = 2

	callCount := 0
	err := withRetry(context.Background(), config, "test", func() error {
		callCount++
		return &apiError{StatusCode: 500}
	})

	if !errors.Is(err, ErrTransientUpstream) {
		t.Errorf("err = %v, want ErrTransientUpstream", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls (initial + 2 retries), got %d", callCount)
	}
}

func TestWithRetry_TerminalNotRetried(t *testing.T) {
	callCount := 0
	err := withRetry(context.Background(), fastRetryConfig(), "test", func() error {
		callCount++
		return &apiError{StatusCode: 400, ErrorType: "InputException"}
	})

	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("err = %v, want ErrOrderRejected", err)
	}
	if callCount != 1 {
		t.Errorf("terminal error retried: %d calls, want 1", callCount)
	}
}

func TestWithRetry_401NotRetried(t *testing.T) {
	callCount := 0
	err := withRetry(context.Background(), fastRetryConfig(), "test", func() error {
		callCount++
		return &apiError{StatusCode: 401, ErrorType: "TokenException"}
	})

	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
	if callCount != 1 {
		t.Errorf("auth failure retried: %d calls, want 1", callCount)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	callCount := 0
	err := withRetry(ctx, fastRetryConfig(), "test", func() error {
		callCount++
		return &apiError{StatusCode: 500}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", callCount)
	}
}
