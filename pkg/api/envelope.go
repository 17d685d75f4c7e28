package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Envelope is the decoded result of one HTTP call: status, headers, and the
// raw JSON body. It is created per call and consumed by the caller and the
// paginator; the body is treated as opaque apart from the well-known
// continuation field.
type Envelope struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (e *Envelope) IsSuccess() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// NextCursor returns the continuation token from the well-known top-level
// field, or the empty string when the server reports no further pages.
func (e *Envelope) NextCursor() string {
	return gjson.GetBytes(e.Body, CursorField).String()
}

// Get looks up a field in the body by gjson path, e.g. "stats.total".
func (e *Envelope) Get(path string) gjson.Result {
	return gjson.GetBytes(e.Body, path)
}

// Decode unmarshals the body into v.
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
