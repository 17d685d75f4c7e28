// Package client provides the core Meridian HTTP client: token-authenticated
// requests, rate-limit-aware retry, and lazily paginated endpoint helpers.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/meridianhq/meridian-api-client/pkg/api"
	"github.com/meridianhq/meridian-api-client/pkg/auth"
	"github.com/meridianhq/meridian-api-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the production Meridian API origin.
const DefaultBaseURL = "https://api.meridianhq.com"

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client is the Meridian API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    *auth.Session
	limiter    *ratelimit.Tracker
	retry      RetryConfig
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API origin. Defaults to DefaultBaseURL.
	BaseURL string

	// Credentials is the client ID / secret pair. Required.
	Credentials auth.Credentials

	// HTTPClient is the underlying HTTP client. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Redis enables shared token and cooldown state across processes.
	// Optional; in-process state is used when nil.
	Redis *redis.Client

	// TokenStore overrides the token storage selected from Redis.
	TokenStore auth.TokenStore

	// Retry is the backoff schedule for rate-limited calls.
	Retry RetryConfig
}

// DefaultConfig returns a configuration with production defaults.
func DefaultConfig(creds auth.Credentials) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Credentials: creds,
		Retry:       DefaultRetryConfig(),
	}
}

// New creates a Meridian client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("base URL must be a valid http(s) origin: %q", cfg.BaseURL)
	}

	if cfg.Credentials.ClientID == "" || cfg.Credentials.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "meridian-client").Logger()

	store := cfg.TokenStore
	if store == nil {
		if cfg.Redis != nil {
			store = auth.NewRedisStore(cfg.Redis)
		} else {
			store = auth.NewMemoryStore()
		}
	}

	session := auth.NewSession(auth.SessionConfig{
		BaseURL:     cfg.BaseURL,
		Credentials: cfg.Credentials,
		HTTPClient:  cfg.HTTPClient,
		Store:       store,
		Logger:      logger,
	})

	return &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		session:    session,
		limiter:    ratelimit.NewTracker(cfg.Redis, logger),
		retry:      cfg.Retry,
		logger:     logger,
	}, nil
}

// Do executes one logical API call with the full retry discipline: 429 is
// retried with exponential backoff, 401 triggers a token refresh and a
// retry, any other non-2xx status is fatal immediately. On success the raw
// envelope is returned undecoded.
func (c *Client) Do(ctx context.Context, req api.Request) (*api.Envelope, error) {
	endpoint := req.Endpoint

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing API request")

	var env *api.Envelope

	err := retryWithBackoff(ctx, c.retry, c.limiter.Cooldown, c.logger, func() (Outcome, ErrorClass, error) {
		result, err := c.attempt(ctx, req)
		if err != nil {
			return OutcomeFatal, "", err
		}

		if result.IsSuccess() {
			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", result.StatusCode)).Inc()
			env = result
			return OutcomeSuccess, "", nil
		}

		class := classifyStatus(result.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", result.StatusCode)).Inc()

		apiErr := &APIError{
			StatusCode: result.StatusCode,
			Class:      class,
			Endpoint:   endpoint,
			Body:       result.Body,
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", result.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")

		if !shouldRetry(class) {
			return OutcomeFatal, class, apiErr
		}

		switch class {
		case ErrorClassRateLimit:
			c.limiter.RecordRateLimit(ctx, result.Header)
		case ErrorClassAuth:
			// Server rejected the token; force a refresh before the retry.
			if err := c.session.Invalidate(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to invalidate token")
			}
		}

		return OutcomeRetry, class, apiErr
	})
	if err != nil {
		return nil, err
	}

	return env, nil
}

// attempt performs a single HTTP round trip: token attach, send, full body
// read. Network and authentication failures are returned as errors; HTTP
// statuses of any kind come back inside the envelope.
func (c *Client) attempt(ctx context.Context, req api.Request) (*api.Envelope, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := req.HTTPRequest(ctx, c.baseURL, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		errorsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &api.Envelope{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Get performs a GET request against an endpoint with query parameters.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*api.Envelope, error) {
	return c.Do(ctx, api.NewGet(endpoint, query))
}

// Post performs a POST request against an endpoint with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body []byte) (*api.Envelope, error) {
	return c.Do(ctx, api.NewPost(endpoint, body))
}

// Token returns a valid bearer token from the session, authenticating on
// first use. Exposed for callers that talk to the API outside this client.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.session.Token(ctx)
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}
