// Package crawl implements the crawl engine: the work queue with its
// deduplicating admission, the fetch-parse-admit worker loop, the three
// interchangeable concurrency backends (thread, process, green), and the
// coordinator that owns the termination protocol.
//
// # Architecture
//
// The Crawler seeds the queue with the start URLs at depth zero. Workers
// pull an item, fetch it, record the outcome in the SiteModel and, when the
// response is an HTML document on a crawled host within the depth limit,
// extract its references and admit the newly-seen ones at depth+1. The run
// ends when the queue is empty and no worker is busy, which the queue
// tracks with an outstanding counter covering both queued and in-flight
// items.
//
// # Backends
//
// All three backends execute the same per-item work; they differ only in
// how the shared SiteModel and queue are serialized:
//
//   - thread: N workers share memory; one mutex guards the combined
//     admission and status critical sections and is never held across I/O.
//   - green: a single event loop owns all shared state without locks; M
//     lightweight tasks perform only the HTTP and parsing work and exchange
//     items and outcomes over channels.
//   - process: N child processes fetch and parse; the master owns the
//     SiteModel exclusively and applies the outcomes it receives over
//     newline-delimited JSON pipes.
package crawl
