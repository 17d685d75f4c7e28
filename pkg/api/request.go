// Package api defines the wire-level data model shared by the Meridian
// client and paginator: the immutable request descriptor and the decoded
// response envelope.
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/sjson"
)

// Cursor field names used by the Meridian API.
const (
	// CursorParam is the request-side continuation field. GET requests carry
	// it as a query parameter, POST requests as a top-level body field.
	CursorParam = "from-cursor"

	// CursorField is the response-side continuation field. Its absence on a
	// page signals the final page.
	CursorField = "next-cursor"
)

// Request describes one logical API call: method, endpoint path, and either
// query parameters (GET) or a JSON body (POST). A Request is a value; methods
// that derive new requests return copies and never mutate the receiver.
type Request struct {
	// Method is the HTTP method, GET or POST.
	Method string

	// Endpoint is the path relative to the API origin, e.g. "entities".
	Endpoint string

	// Query holds the query parameters for GET requests.
	Query url.Values

	// Body holds the JSON body for POST requests.
	Body []byte

	// Header holds additional headers merged over the client defaults.
	Header http.Header
}

// NewGet builds a GET request descriptor.
func NewGet(endpoint string, query url.Values) Request {
	return Request{Method: http.MethodGet, Endpoint: endpoint, Query: query}
}

// NewPost builds a POST request descriptor with a JSON body.
func NewPost(endpoint string, body []byte) Request {
	return Request{Method: http.MethodPost, Endpoint: endpoint, Body: body}
}

// WithCursor returns a copy of the request with the continuation cursor set,
// leaving every other parameter untouched. GET requests receive the cursor as
// the "from-cursor" query parameter, POST requests as the "from-cursor" body
// field.
func (r Request) WithCursor(cursor string) (Request, error) {
	next := r.clone()

	switch r.Method {
	case http.MethodGet:
		if next.Query == nil {
			next.Query = url.Values{}
		}
		next.Query.Set(CursorParam, cursor)
	case http.MethodPost:
		body := next.Body
		if len(body) == 0 {
			body = []byte("{}")
		}
		updated, err := sjson.SetBytes(body, CursorParam, cursor)
		if err != nil {
			return Request{}, fmt.Errorf("set cursor in body: %w", err)
		}
		next.Body = updated
	default:
		return Request{}, fmt.Errorf("%s method not supported for pagination", r.Method)
	}

	return next, nil
}

// HTTPRequest materializes the descriptor into an *http.Request against the
// given API origin, attaching the bearer token and JSON content type. The
// descriptor itself is not modified.
func (r Request) HTTPRequest(ctx context.Context, baseURL, token string) (*http.Request, error) {
	target := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(r.Endpoint, "/")

	var body *bytes.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(r.Query) > 0 {
		req.URL.RawQuery = r.Query.Encode()
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	return req, nil
}

// clone deep-copies the mutable parts of the descriptor.
func (r Request) clone() Request {
	next := r

	if r.Query != nil {
		next.Query = url.Values{}
		for key, values := range r.Query {
			next.Query[key] = append([]string(nil), values...)
		}
	}

	if r.Body != nil {
		next.Body = append([]byte(nil), r.Body...)
	}

	if r.Header != nil {
		next.Header = r.Header.Clone()
	}

	return next
}
