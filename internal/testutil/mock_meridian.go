// Package testutil provides testing utilities for the Meridian API client.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultAccessToken is the token issued by the mock auth endpoint.
const DefaultAccessToken = "mock-access-token"

// RecordedRequest captures one request received by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   []byte
	Header http.Header
}

// MockMeridian is a configurable mock Meridian API server for testing. It
// serves the token endpoint by default and per-path handlers for everything
// else.
type MockMeridian struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Auth behavior
	FailAuth    bool
	AccessToken string

	// Tracking
	RequestCount int
	AuthCalls    int
	Requests     []RecordedRequest
}

// NewMockMeridian creates a new mock API server.
func NewMockMeridian() *MockMeridian {
	mock := &MockMeridian{
		handlers:    make(map[string]http.HandlerFunc),
		AccessToken: DefaultAccessToken,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.Requests = append(mock.Requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Body:   body,
			Header: r.Header.Clone(),
		})
		mock.mu.Unlock()

		if r.URL.Path == "/auth/token" {
			mock.authHandler(w, r)
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if !exists {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"errors":[["not_found","%s"]]}`, r.URL.Path)
			return
		}

		// Hand the handler a body it can re-read.
		handler(w, requestWithBody(r, body))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockMeridian) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMeridian) Close() {
	m.server.Close()
}

// SetAccessToken rotates the token issued by the auth endpoint.
func (m *MockMeridian) SetAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccessToken = token
}

// SetHandler installs a handler for a path, e.g. "/entities".
func (m *MockMeridian) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// LastRequest returns the most recent request for a path, or nil.
func (m *MockMeridian) LastRequest(path string) *RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.Requests) - 1; i >= 0; i-- {
		if m.Requests[i].Path == path {
			req := m.Requests[i]
			return &req
		}
	}
	return nil
}

// RequestsFor returns all recorded requests for a path.
func (m *MockMeridian) RequestsFor(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordedRequest
	for _, req := range m.Requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (m *MockMeridian) authHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.AuthCalls++
	fail := m.FailAuth
	token := m.AccessToken
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
		return
	}
	fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":86400}`, token)
}

// PaginatedJSON builds a handler serving the given page payloads in cursor
// order. Every page but the last gets a "next-cursor" injected; requests are
// routed by the "from-cursor" query parameter (GET) or body field (POST),
// with an absent cursor selecting the first page.
func PaginatedJSON(pages ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("from-cursor")
		if cursor == "" && r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			cursor = gjson.GetBytes(body, "from-cursor").String()
		}

		index := 0
		if cursor != "" {
			if _, err := fmt.Sscanf(cursor, "cursor-%d", &index); err != nil || index <= 0 || index >= len(pages) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"errors":[["invalid_cursor","%s"]]}`, cursor)
				return
			}
		}

		page := pages[index]
		if index < len(pages)-1 {
			page, _ = sjson.Set(page, "next-cursor", fmt.Sprintf("cursor-%d", index+1))
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, page)
	}
}

// RateLimitedThen builds a handler answering 429 for the first n requests and
// delegating afterwards. retryAfter is sent as the Retry-After header when
// non-empty.
func RateLimitedThen(n int, retryAfter string, next http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	served := 0

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		limited := served < n
		served++
		mu.Unlock()

		if limited {
			if retryAfter != "" {
				w.Header().Set("Retry-After", retryAfter)
			}
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"errors":[["rate_limited","slow down"]]}`)
			return
		}
		next(w, r)
	}
}

// JSON builds a handler answering every request with the given body.
func JSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

// requestWithBody returns r with its consumed body restored.
func requestWithBody(r *http.Request, body []byte) *http.Request {
	clone := r.Clone(r.Context())
	clone.Body = io.NopCloser(bytes.NewReader(body))
	return clone
}
