package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for token lifecycle.
var (
	authRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_auth_refreshes_total",
		Help: "Total number of token refreshes performed",
	})

	authFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_auth_failures_total",
		Help: "Total number of failed authentication attempts",
	})
)

// SessionConfig holds session construction parameters.
type SessionConfig struct {
	// BaseURL is the API origin, e.g. "https://api.meridianhq.com".
	BaseURL string

	// Credentials is the client ID / secret pair.
	Credentials Credentials

	// HTTPClient issues the token request. Required.
	HTTPClient *http.Client

	// Store persists the token between refreshes. Defaults to MemoryStore.
	Store TokenStore

	// Logger for token lifecycle events. Token values are never logged.
	Logger zerolog.Logger
}

// Session owns the token lifecycle: it caches the current token, refreshes it
// when expired, and drops it on demand when the server rejects it. Safe for
// concurrent use; at most one refresh runs at a time.
type Session struct {
	cfg SessionConfig

	mu sync.Mutex
}

// NewSession creates a session. The first token is fetched lazily on the
// first call to Token.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	return &Session{cfg: cfg}
}

// Token returns a valid bearer token, re-authenticating when the stored token
// is missing or inside the refresh margin.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.cfg.Store.Get(ctx)
	if err != nil {
		return "", err
	}

	if token.Valid(time.Now()) {
		return token.AccessToken, nil
	}

	token, err = Authenticate(ctx, s.cfg.HTTPClient, s.cfg.BaseURL, s.cfg.Credentials)
	if err != nil {
		authFailuresTotal.Inc()
		s.cfg.Logger.Error().Err(err).Msg("Authentication failed")
		return "", err
	}

	authRefreshesTotal.Inc()
	s.cfg.Logger.Info().
		Time("expires_at", token.ExpiresAt).
		Msg("Obtained access token")

	if err := s.cfg.Store.Set(ctx, token); err != nil {
		// A store failure must not discard a freshly issued token.
		s.cfg.Logger.Warn().Err(err).Msg("Failed to persist token")
	}

	return token.AccessToken, nil
}

// Invalidate drops the stored token so the next Token call re-authenticates.
// Called by the executor when the server answers 401.
func (s *Session) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.Logger.Warn().Msg("Invalidating access token")
	return s.cfg.Store.Clear(ctx)
}
