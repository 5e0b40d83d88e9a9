// Package fetch wraps net/http for the crawl workers. A Fetcher issues one
// GET or HEAD per work item, follows redirects while checking every hop
// against the admission policy, and maps every failure mode onto a
// FetchStatus instead of returning transport errors to the caller.
package fetch
