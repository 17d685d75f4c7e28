package pagination

import (
	"context"
	"fmt"

	"github.com/meridianhq/meridian-api-client/pkg/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_pages_fetched_total",
		Help: "Total pages fetched by endpoint",
	}, []string{"endpoint"})
)

// FetchFunc executes one request descriptor and returns its envelope. The
// client's Do method satisfies this signature, bringing its retry and
// rate-limit handling along.
type FetchFunc func(ctx context.Context, req api.Request) (*api.Envelope, error)

// Pager iterates over the pages of one logical query. It holds an explicit
// copy of the original request descriptor and threads the continuation cursor
// forward; sent requests are never introspected. Single-pass and not
// restartable.
type Pager struct {
	fetch FetchFunc
	req   api.Request

	page    *api.Envelope // page emitted by the last Next
	pending *api.Envelope // first page, not yet emitted
	err     error
	started bool
	done    bool
}

// NewPager creates a pager over the query described by req, seeded with the
// already-fetched first envelope. The first call to Next emits that envelope
// without network I/O.
func NewPager(fetch FetchFunc, req api.Request, first *api.Envelope) *Pager {
	return &Pager{
		fetch:   fetch,
		req:     req,
		pending: first,
	}
}

// Next advances to the next page. It returns false when the sequence is
// exhausted or an error occurred; Err distinguishes the two.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done {
		return false
	}

	if !p.started {
		p.started = true
		if p.pending == nil {
			p.done = true
			return false
		}
		if !p.emit(p.pending) {
			return false
		}
		p.pending = nil
		return true
	}

	cursor := p.page.NextCursor()
	if cursor == "" {
		// The absence of next-cursor signifies the final page.
		p.done = true
		return false
	}

	next, err := p.req.WithCursor(cursor)
	if err != nil {
		p.fail(err)
		return false
	}

	env, err := p.fetch(ctx, next)
	if err != nil {
		p.fail(err)
		return false
	}

	return p.emit(env)
}

// Page returns the page produced by the last successful Next.
func (p *Pager) Page() *api.Envelope {
	return p.page
}

// Err returns the first error encountered, or nil after a normal exhaustion.
func (p *Pager) Err() error {
	return p.err
}

func (p *Pager) emit(env *api.Envelope) bool {
	if !env.IsSuccess() {
		p.fail(fmt.Errorf("page request failed with status %d", env.StatusCode))
		return false
	}
	pagesFetchedTotal.WithLabelValues(p.req.Endpoint).Inc()
	p.page = env
	return true
}

func (p *Pager) fail(err error) {
	p.err = err
	p.done = true
}
