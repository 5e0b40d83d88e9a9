// Package model contains the crawl data model: fetch statuses, page
// references, pages, and the SiteModel that accumulates the result of one
// crawl invocation.
//
// The SiteModel is the sole shared mutable structure of a crawl. Its methods
// do not lock; the caller serializes mutations (the thread backend holds the
// crawl mutex, the green and process backends mutate from a single
// goroutine). After the crawl returns, the model is read-only.
package model
