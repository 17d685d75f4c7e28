// Package pagination walks cursor-paginated Meridian endpoints.
//
// The API returns results page by page: every page except the last carries an
// opaque continuation token in the top-level "next-cursor" field, and the
// next page is requested by replaying the same request with that token in the
// "from-cursor" query parameter (GET) or body field (POST).
//
// Pager is a forward-only, single-pass iterator in the scanner idiom:
//
//	env, err := c.Do(ctx, req)
//	if err != nil {
//		return err
//	}
//	pager := pagination.NewPager(c.Do, req, env)
//	for pager.Next(ctx) {
//		page := pager.Page()
//		// ...
//	}
//	if err := pager.Err(); err != nil {
//		return err
//	}
//
// Pagination is strictly sequential: page N+1 is never requested before page
// N's cursor is known, and abandoning a pager mid-sequence leaves the
// remaining pages unfetched at no cost. Fetches go through the fetch function
// the pager was built with, so they share the client's rate-limit backoff
// discipline.
//
// Items flattens the pages of one payload key ("entities", "documents", ...)
// into a single item sequence.
package pagination
