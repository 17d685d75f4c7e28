// Package metrics provides the central Prometheus registry reference for the
// Meridian client. All metrics are defined in their respective packages
// (client, auth, ratelimit, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the Meridian client.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - meridian_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - meridian_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - meridian_errors_total{class} (Counter): Errors by class (rate_limit, auth, client, server, network)
//
// Retry Metrics (pkg/client):
//   - meridian_retries_total{error_class} (Counter): Retry attempts by error class
//   - meridian_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - meridian_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Auth Metrics (pkg/auth):
//   - meridian_auth_refreshes_total (Counter): Token refreshes performed
//   - meridian_auth_failures_total (Counter): Failed authentication attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - meridian_rate_limit_hits_total (Counter): 429 responses received
//   - meridian_rate_limit_cooldown_seconds (Gauge): Most recent server-imposed cooldown
//
// Pagination Metrics (pkg/pagination):
//   - meridian_pages_fetched_total{endpoint} (Counter): Pages fetched by endpoint
//
// Example Prometheus Queries:
//
//   # Rate limit pressure
//   rate(meridian_rate_limit_hits_total[5m])
//
//   # Retry exhaustion (should stay at zero)
//   increase(meridian_retry_exhausted_total[1h])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(meridian_request_duration_seconds_bucket[5m]))
//
//   # Token refresh frequency (roughly one per 24h per process)
//   increase(meridian_auth_refreshes_total[24h])
