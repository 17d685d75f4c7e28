// Package ratelimit tracks server-imposed cooldowns. When the Meridian API
// answers 429 with a Retry-After header, the tracker remembers the deadline
// so every cooperating process pauses instead of stacking further 429s onto
// the same window.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key for shared cooldown state.
const redisKeyCooldownUntil = "meridian:rate_limit:cooldown_until"

// Prometheus metrics for rate limit tracking.
var (
	rateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_rate_limit_hits_total",
		Help: "Total number of 429 responses received",
	})

	rateLimitCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_rate_limit_cooldown_seconds",
		Help: "Most recent server-imposed cooldown duration in seconds",
	})
)

// Tracker remembers the most recent rate-limit cooldown. State lives in Redis
// when a client is provided (shared across processes), otherwise in process
// memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	until time.Time
}

// NewTracker creates a tracker. redisClient may be nil for in-process state.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// RecordRateLimit notes a 429 response. When the headers carry Retry-After
// (delay seconds), the cooldown deadline is stored; without the header only
// the hit is counted and the caller falls back to its own backoff schedule.
func (t *Tracker) RecordRateLimit(ctx context.Context, headers http.Header) {
	rateLimitHitsTotal.Inc()

	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return
	}

	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds <= 0 {
		t.logger.Debug().Str("retry_after", retryAfter).Msg("Unusable Retry-After header")
		return
	}

	cooldown := time.Duration(seconds) * time.Second
	deadline := time.Now().Add(cooldown)
	rateLimitCooldownSeconds.Set(cooldown.Seconds())

	t.logger.Warn().
		Dur("cooldown", cooldown).
		Time("until", deadline).
		Msg("Server-imposed rate limit cooldown")

	if t.redis != nil {
		if err := t.redis.Set(ctx, redisKeyCooldownUntil, deadline.Unix(), cooldown).Err(); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to share cooldown state via Redis")
		}
		return
	}

	t.mu.Lock()
	if deadline.After(t.until) {
		t.until = deadline
	}
	t.mu.Unlock()
}

// Cooldown returns how long callers should still pause before the next
// attempt, or zero when no cooldown is active.
func (t *Tracker) Cooldown(ctx context.Context) time.Duration {
	if t.redis != nil {
		unix, err := t.redis.Get(ctx, redisKeyCooldownUntil).Int64()
		if err != nil {
			if err != redis.Nil {
				t.logger.Warn().Err(err).Msg("Failed to read cooldown state from Redis")
			}
			return 0
		}
		return remaining(time.Unix(unix, 0))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return remaining(t.until)
}

func remaining(until time.Time) time.Duration {
	d := time.Until(until)
	if d < 0 {
		return 0
	}
	return d
}
