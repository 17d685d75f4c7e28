package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meridianhq/meridian-api-client/pkg/api"
	"github.com/meridianhq/meridian-api-client/pkg/pagination"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Paginate wraps an already-executed request in a pager that fetches the
// remaining pages through this client, for endpoints without a dedicated
// helper.
func (c *Client) Paginate(req api.Request, first *api.Envelope) *pagination.Pager {
	return pagination.NewPager(c.Do, req, first)
}

// Entities finds knowledge-graph entities by any combination of name and
// type, yielding one entity per item across all pages.
func (c *Client) Entities(ctx context.Context, params url.Values) (*pagination.Items, error) {
	return c.itemsGet(ctx, "entities", params, "entities")
}

// Topics finds trained topics by name.
func (c *Client) Topics(ctx context.Context, params url.Values) (*pagination.Items, error) {
	return c.itemsGet(ctx, "topics", params, "topics")
}

// Sources finds publication sources.
func (c *Client) Sources(ctx context.Context, params url.Values) (*pagination.Items, error) {
	return c.itemsGet(ctx, "sources", params, "sources")
}

// Source fetches a single publication source by ID.
func (c *Client) Source(ctx context.Context, sourceID string) (json.RawMessage, error) {
	env, err := c.Get(ctx, "sources/"+url.PathEscape(sourceID), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(env.Body), nil
}

// SourceLocations returns the regions, subregions and countries of
// publication. Single page, no pagination.
func (c *Client) SourceLocations(ctx context.Context) (json.RawMessage, error) {
	env, err := c.Get(ctx, "source-locations", url.Values{})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(env.Body), nil
}

// Document fetches a single document by ID.
func (c *Client) Document(ctx context.Context, documentID string) (json.RawMessage, error) {
	return c.getField(ctx, "documents/"+url.PathEscape(documentID), "document")
}

// Metrics returns aggregated metrics sliced along the dimensions named in
// the query body: date, source, country, topics, entities, sentiment.
func (c *Client) Metrics(ctx context.Context, body []byte) (json.RawMessage, error) {
	env, err := c.Post(ctx, "metrics", body)
	if err != nil {
		return nil, err
	}
	aggregations := env.Get("aggregations")
	if !aggregations.Exists() {
		return nil, fmt.Errorf("%w: metrics response missing aggregations", ErrMalformedResponse)
	}
	return json.RawMessage(aggregations.Raw), nil
}

// Event fetches a single event by hash.
func (c *Client) Event(ctx context.Context, eventHash string) (json.RawMessage, error) {
	return c.getField(ctx, "events/"+url.PathEscape(eventHash), "event")
}

// Events searches events, yielding one event per item across all pages.
// Extra headers are merged over the client defaults.
func (c *Client) Events(ctx context.Context, body []byte, header http.Header) (*pagination.Items, error) {
	req := api.NewPost("events", body)
	req.Header = header
	first, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewItems(pagination.NewPager(c.Do, req, first), "events"), nil
}

// SearchResults iterates the documents matched by a search query. The total
// match count reported by the server is available up front, since consuming
// every page can take a long time and the caller may not want all of them.
type SearchResults struct {
	items *pagination.Items
	total int64
}

// Search queries document metadata. The body is an opaque passthrough,
// including any page-size field.
func (c *Client) Search(ctx context.Context, body []byte) (*SearchResults, error) {
	req := api.NewPost("search", body)
	first, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	total := first.Get("stats.total")
	if !total.Exists() {
		return nil, fmt.Errorf("%w: search response missing stats.total", ErrMalformedResponse)
	}

	return &SearchResults{
		items: pagination.NewItems(pagination.NewPager(c.Do, req, first), "documents"),
		total: total.Int(),
	}, nil
}

// Total returns the number of documents the server reports for the query.
func (r *SearchResults) Total() int64 {
	return r.total
}

// Next advances to the next matched document.
func (r *SearchResults) Next(ctx context.Context) bool {
	return r.items.Next(ctx)
}

// Document returns the document produced by the last successful Next.
func (r *SearchResults) Document() gjson.Result {
	return r.items.Item()
}

// Err returns the first error encountered during iteration.
func (r *SearchResults) Err() error {
	return r.items.Err()
}

// AffinityResults iterates knowledge-graph affinity results. Every item is
// annotated with the source concept the server reports per page.
type AffinityResults struct {
	items *pagination.Items
}

// Affinity queries the knowledge graph for concepts related to the one named
// in the body.
func (c *Client) Affinity(ctx context.Context, body []byte) (*AffinityResults, error) {
	items, err := c.itemsPost(ctx, "affinity", body, "results")
	if err != nil {
		return nil, err
	}
	return &AffinityResults{items: items}, nil
}

// Next advances to the next affinity result.
func (r *AffinityResults) Next(ctx context.Context) bool {
	return r.items.Next(ctx)
}

// Result returns the current item with the page's source concept injected
// under "source-concept".
func (r *AffinityResults) Result() (json.RawMessage, error) {
	sourceConcept := r.items.Page().Get("source-concept")
	if !sourceConcept.Exists() {
		return nil, fmt.Errorf("%w: affinity page missing source-concept", ErrMalformedResponse)
	}

	annotated, err := sjson.SetRawBytes([]byte(r.items.Item().Raw), "source-concept", []byte(sourceConcept.Raw))
	if err != nil {
		return nil, fmt.Errorf("annotate affinity result: %w", err)
	}
	return json.RawMessage(annotated), nil
}

// Err returns the first error encountered during iteration.
func (r *AffinityResults) Err() error {
	return r.items.Err()
}

func (c *Client) itemsGet(ctx context.Context, endpoint string, params url.Values, key string) (*pagination.Items, error) {
	req := api.NewGet(endpoint, params)
	first, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewItems(pagination.NewPager(c.Do, req, first), key), nil
}

func (c *Client) itemsPost(ctx context.Context, endpoint string, body []byte, key string) (*pagination.Items, error) {
	req := api.NewPost(endpoint, body)
	first, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return pagination.NewItems(pagination.NewPager(c.Do, req, first), key), nil
}

func (c *Client) getField(ctx context.Context, endpoint, field string) (json.RawMessage, error) {
	env, err := c.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	result := env.Get(field)
	if !result.Exists() {
		return nil, fmt.Errorf("%w: response missing %s", ErrMalformedResponse, field)
	}
	return json.RawMessage(result.Raw), nil
}
