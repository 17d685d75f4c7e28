package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Outcome is the explicit result of one attempt: success, a transient failure
// worth retrying in place, or a fatal failure surfaced immediately.
type Outcome int

const (
	// OutcomeSuccess ends the retry loop with a nil error.
	OutcomeSuccess Outcome = iota

	// OutcomeRetry schedules another attempt after a backoff wait.
	OutcomeRetry

	// OutcomeFatal ends the retry loop with the attempt's error.
	OutcomeFatal
)

// RetryConfig holds the configuration for the backoff schedule.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait of any single attempt.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait between attempts.
	BackoffMultiplier float64
}

// DefaultRetryConfig matches the API's rate-limit discipline: exponential
// from 1s, doubling, capped at 10s per attempt, 10 attempts in total.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       10,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// attemptFunc runs one attempt. class reports the error class of a failed
// attempt for metrics and logging; it is ignored on success.
type attemptFunc func() (outcome Outcome, class ErrorClass, err error)

// cooldownFunc reports an externally imposed minimum wait before the next
// attempt (e.g. a server Retry-After deadline). May be nil.
type cooldownFunc func(ctx context.Context) time.Duration

// retryWithBackoff runs op until it succeeds, fails fatally, or the attempt
// ceiling is reached. Waits grow exponentially with ±20% jitter and respect
// context cancellation; a server-imposed cooldown extends a shorter wait.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, cooldown cooldownFunc, logger zerolog.Logger, op attemptFunc) error {
	var lastErr error
	var lastClass ErrorClass
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		outcome, class, err := op()

		switch outcome {
		case OutcomeSuccess:
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		case OutcomeFatal:
			return err
		}

		lastErr = err
		lastClass = class

		if attempt >= cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter to avoid thundering herd
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if cooldown != nil {
			if cd := cooldown(ctx); cd > wait {
				wait = cd
			}
		}
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
