package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastRetry keeps backoff waits negligible in tests.
func fastRetry(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d, want 10", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(10), nil, zerolog.Nop(), func() (Outcome, ErrorClass, error) {
		calls++
		return OutcomeSuccess, "", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(10), nil, zerolog.Nop(), func() (Outcome, ErrorClass, error) {
		calls++
		if calls < 4 {
			return OutcomeRetry, ErrorClassRateLimit, errors.New("rate limited")
		}
		return OutcomeSuccess, "", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetryWithBackoff_FatalStopsImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(10), nil, zerolog.Nop(), func() (Outcome, ErrorClass, error) {
		calls++
		return OutcomeFatal, ErrorClassClient, fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_Exhaustion(t *testing.T) {
	limited := errors.New("rate limited")
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(10), nil, zerolog.Nop(), func() (Outcome, ErrorClass, error) {
		calls++
		return OutcomeRetry, ErrorClassRateLimit, limited
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, limited) {
		t.Errorf("exhaustion error should wrap the last failure, got %v", err)
	}
	if calls != 10 {
		t.Errorf("calls = %d, want 10", calls)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := RetryConfig{
		MaxAttempts:       10,
		InitialBackoff:    10 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	done := make(chan error, 1)
	go func() {
		done <- retryWithBackoff(ctx, cfg, nil, zerolog.Nop(), func() (Outcome, ErrorClass, error) {
			return OutcomeRetry, ErrorClassRateLimit, errors.New("rate limited")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrContextCancelled) {
			t.Errorf("error = %v, want ErrContextCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop after cancellation")
	}
}

func TestRetryWithBackoff_CooldownExtendsWait(t *testing.T) {
	cooldown := func(context.Context) time.Duration { return 50 * time.Millisecond }

	calls := 0
	start := time.Now()
	err := retryWithBackoff(context.Background(), fastRetry(2), cooldown, zerolog.Nop(), func() (Outcome, ErrorClass, error) {
		calls++
		if calls == 1 {
			return OutcomeRetry, ErrorClassRateLimit, errors.New("rate limited")
		}
		return OutcomeSuccess, "", nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 50ms (cooldown overrides backoff)", elapsed)
	}
}
