package pagination

import (
	"context"

	"github.com/meridianhq/meridian-api-client/pkg/api"
	"github.com/tidwall/gjson"
)

// Items flattens a paged response sequence into the individual elements of
// one payload array, e.g. the "entities" of every page of an entity query.
// Like the Pager it wraps, it is lazy, forward-only, and single-pass.
type Items struct {
	pager *Pager
	key   string

	buf  []gjson.Result
	idx  int
	item gjson.Result
	done bool
}

// NewItems creates an item iterator over pager, drawing elements from the
// array at key on every page.
func NewItems(pager *Pager, key string) *Items {
	return &Items{
		pager: pager,
		key:   key,
	}
}

// Next advances to the next item, fetching further pages as needed. A page
// whose payload array is empty ends the sequence even when a continuation
// token is present; the server occasionally serves such a trailing page.
func (it *Items) Next(ctx context.Context) bool {
	if it.done {
		return false
	}

	for it.idx >= len(it.buf) {
		if !it.pager.Next(ctx) {
			it.done = true
			return false
		}
		it.buf = it.pager.Page().Get(it.key).Array()
		it.idx = 0
		if len(it.buf) == 0 {
			it.done = true
			return false
		}
	}

	it.item = it.buf[it.idx]
	it.idx++
	return true
}

// Item returns the item produced by the last successful Next.
func (it *Items) Item() gjson.Result {
	return it.item
}

// Page returns the envelope the current item was drawn from, for access to
// page-level fields.
func (it *Items) Page() *api.Envelope {
	return it.pager.Page()
}

// Err returns the first error encountered during pagination.
func (it *Items) Err() error {
	return it.pager.Err()
}
